//go:build !linux

package pty

import "errors"

// CurrentDir is only available on Linux.
func CurrentDir(pid int) (string, error) {
	return "", errors.ErrUnsupported
}

// IsIdle is only available on Linux.
func IsIdle(pid int) (bool, error) {
	return false, errors.ErrUnsupported
}
