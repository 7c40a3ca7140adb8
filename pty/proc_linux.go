//go:build linux

package pty

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
)

// CurrentDir returns the working directory of the process.
func CurrentDir(pid int) (string, error) {
	return os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
}

// IsIdle reports whether the shell with the given pid is in the foreground
// of its terminal, meaning no job it started is running in front of it.
func IsIdle(pid int) (bool, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false, err
	}
	pgrp, tpgid, err := parseStat(data)
	if err != nil {
		return false, err
	}
	return pgrp == tpgid, nil
}

// parseStat extracts pgrp and tpgid from a /proc/<pid>/stat line. The
// command name is parenthesized and may contain spaces, so fields are
// counted from the last ')'.
func parseStat(data []byte) (pgrp, tpgid int, err error) {
	end := bytes.LastIndexByte(data, ')')
	if end < 0 {
		return 0, 0, fmt.Errorf("malformed stat: no command name")
	}
	// After the name: state ppid pgrp session tty_nr tpgid ...
	fields := bytes.Fields(data[end+1:])
	if len(fields) < 6 {
		return 0, 0, fmt.Errorf("malformed stat: %d fields", len(fields))
	}
	if pgrp, err = strconv.Atoi(string(fields[2])); err != nil {
		return 0, 0, fmt.Errorf("malformed stat pgrp: %w", err)
	}
	if tpgid, err = strconv.Atoi(string(fields[5])); err != nil {
		return 0, 0, fmt.Errorf("malformed stat tpgid: %w", err)
	}
	return pgrp, tpgid, nil
}
