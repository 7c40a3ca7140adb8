package pty

import (
	"os"
	"strings"
)

// Environment variables that identify the terminal to the child. Any value
// for these in the base environment is replaced.
const (
	envTerm        = "TERM=xterm-256color"
	envColorTerm   = "COLORTERM=truecolor"
	envTermProgram = "TERM_PROGRAM=tideterm"
)

var fallbackShells = []string{"/bin/zsh", "/bin/bash", "/bin/sh"}

// DefaultShell returns $SHELL if it names an executable, otherwise the
// first of /bin/zsh, /bin/bash and /bin/sh that exists.
func DefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" && isExecutable(shell) {
		return shell
	}
	for _, shell := range fallbackShells {
		if isExecutable(shell) {
			return shell
		}
	}
	return "/bin/sh"
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "/"
}

// BuildEnv returns base with the terminal identification variables set.
// COLORFGBG tells programs whether the background is dark ("15;0") or
// light ("0;15").
func BuildEnv(base []string, dark bool) []string {
	colorFgBg := "COLORFGBG=0;15"
	if dark {
		colorFgBg = "COLORFGBG=15;0"
	}
	overrides := []string{envTerm, envColorTerm, colorFgBg, envTermProgram}

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		if !overridden(kv, overrides) {
			env = append(env, kv)
		}
	}
	return append(env, overrides...)
}

func overridden(kv string, overrides []string) bool {
	name, _, _ := strings.Cut(kv, "=")
	for _, o := range overrides {
		if oname, _, _ := strings.Cut(o, "="); oname == name {
			return true
		}
	}
	return false
}
