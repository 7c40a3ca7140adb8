// Package pty runs a child process on a pseudo-terminal.
//
// The child gets the slave side as its controlling terminal in a new
// session, so the whole job tree it starts shares one process group that
// Close can signal at once. The master side is exposed through Read and
// Write. On Linux a read from the master after the child closed the slave
// fails with EIO; Read reports that as io.EOF.
package pty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	creackpty "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const (
	// hangupGrace is how long Close waits after SIGHUP before SIGKILL.
	hangupGrace = 200 * time.Millisecond
	// killGrace bounds the wait for the child to be reaped after SIGKILL.
	killGrace = time.Second
)

// Options describes the child to start.
type Options struct {
	Rows int
	Cols int

	// Command is the program to run. Empty means DefaultShell().
	Command string
	Args    []string
	// Login prepends "--login" to Args.
	Login bool
	// Dir is the working directory. Empty means $HOME.
	Dir string
	// Env is the base environment. Nil means os.Environ(). Terminal
	// identification variables are added by BuildEnv.
	Env []string
	// Dark selects the COLORFGBG hint for a dark background.
	Dark bool
}

// PTY is a running child attached to a pseudo-terminal master.
type PTY struct {
	cmd    *exec.Cmd
	master *os.File

	mu   sync.Mutex
	rows int
	cols int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	exited  chan struct{}
	waitErr error
}

// Open starts the child on a new pseudo-terminal of the requested size.
func Open(ctx context.Context, opts Options) (*PTY, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}
	if opts.Rows <= 0 || opts.Cols <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrSpawnFailed, opts.Rows, opts.Cols)
	}

	command := opts.Command
	if command == "" {
		command = DefaultShell()
	}
	args := opts.Args
	if opts.Login {
		args = append([]string{"--login"}, args...)
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	if cmd.Dir == "" {
		cmd.Dir = homeDir()
	}
	base := opts.Env
	if base == nil {
		base = os.Environ()
	}
	cmd.Env = BuildEnv(base, opts.Dark)

	master, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, command, err)
	}

	p := &PTY{
		cmd:    cmd,
		master: master,
		rows:   opts.Rows,
		cols:   opts.Cols,
		exited: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// Pid returns the child's process id. The child leads its own process group.
func (p *PTY) Pid() int {
	return p.cmd.Process.Pid
}

// Read reads child output. It returns io.EOF once the child side is gone
// or the PTY was closed.
func (p *PTY) Read(b []byte) (int, error) {
	n, err := p.master.Read(b)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, unix.EIO) || p.closed.Load() || errors.Is(err, os.ErrClosed) {
		return n, io.EOF
	}
	return n, fmt.Errorf("%w: read: %w", ErrIO, err)
}

// Write sends bytes to the child's input.
func (p *PTY) Write(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := p.master.Write(b)
	if err != nil {
		if p.closed.Load() {
			return n, ErrClosed
		}
		return n, fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	return n, nil
}

// Size returns the size last applied to the terminal.
func (p *PTY) Size() (rows, cols int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows, p.cols
}

// Resize sets the window size; the kernel sends SIGWINCH to the foreground
// job. Setting the current size again does nothing.
func (p *PTY) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrIO, rows, cols)
	}
	if p.closed.Load() {
		return ErrClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if rows == p.rows && cols == p.cols {
		return nil
	}
	err := creackpty.Setsize(p.master, &creackpty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return fmt.Errorf("%w: resize: %w", ErrIO, err)
	}
	p.rows, p.cols = rows, cols
	return nil
}

// Exited returns a channel closed once the child has been reaped.
func (p *PTY) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the child exits and returns its exit status.
func (p *PTY) Wait() error {
	<-p.exited
	return p.waitErr
}

// ExitCode returns the child's exit code, or -1 while it is running or if
// it was killed by a signal.
func (p *PTY) ExitCode() int {
	select {
	case <-p.exited:
		return p.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Close hangs up the child's process group, escalates to SIGKILL if it has
// not exited within 200ms, and releases the master. It is safe to call more
// than once.
func (p *PTY) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.terminate()
		if err := p.master.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.closeErr = fmt.Errorf("%w: close: %w", ErrIO, err)
		}
	})
	return p.closeErr
}

func (p *PTY) terminate() {
	select {
	case <-p.exited:
		return
	default:
	}

	pgid := -p.Pid()
	// ESRCH means the group is already gone.
	_ = unix.Kill(pgid, unix.SIGHUP)

	select {
	case <-p.exited:
		return
	case <-time.After(hangupGrace):
	}

	_ = unix.Kill(pgid, unix.SIGKILL)
	select {
	case <-p.exited:
	case <-time.After(killGrace):
	}
}
