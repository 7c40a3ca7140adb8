package pty

import "errors"

var (
	// ErrSpawnFailed is returned by Open when the pseudo-terminal could not
	// be allocated or the child could not be started.
	ErrSpawnFailed = errors.New("pty: spawn failed")

	// ErrIO wraps read, write and resize failures on the master side.
	ErrIO = errors.New("pty: i/o error")

	// ErrClosed is returned by Write and Resize after Close.
	ErrClosed = errors.New("pty: closed")
)
