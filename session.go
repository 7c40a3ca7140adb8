package tideterm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tidehq/tideterm/pty"
)

const (
	// DefaultResizeDebounce is how long a Session waits for resizes to
	// settle before telling the child.
	DefaultResizeDebounce = 50 * time.Millisecond

	readChunkSize      = 64 * 1024
	defaultEventBuffer = 64

	maxReadRetries = 5
	readRetryDelay = 10 * time.Millisecond
)

// SessionOptions configures Open.
type SessionOptions struct {
	Rows int
	Cols int

	// Command, Args, Login, Dir and Env describe the child; see pty.Options.
	Command string
	Args    []string
	Login   bool
	Dir     string
	Env     []string
	// Dark selects the dark theme and is advertised to the child in
	// COLORFGBG.
	Dark bool

	// Scrollback is the number of lines kept. Zero means
	// DefaultScrollbackLines; negative disables scrollback.
	Scrollback int

	// ResizeDebounce delays the PTY resize. Zero means
	// DefaultResizeDebounce; negative applies resizes immediately.
	ResizeDebounce time.Duration

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int

	Logger    *slog.Logger
	Recording RecordingProvider
}

// Session is a Terminal connected to a child process on a PTY. A reader
// goroutine feeds child output into the grid; the caller renders with Sync
// and sends keystrokes with WriteInput.
type Session struct {
	term   *Terminal
	pty    *pty.PTY
	logger *slog.Logger

	events  chan Event
	done    chan struct{}
	closing chan struct{}

	writeMu sync.Mutex
	exited  atomic.Bool

	resizeMu    sync.Mutex
	resizeTimer *time.Timer
	debounce    time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Open starts the child and begins reading its output. Canceling ctx
// closes the session.
func Open(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Rows <= 0 {
		opts.Rows = DEFAULT_ROWS
	}
	if opts.Cols <= 0 {
		opts.Cols = DEFAULT_COLS
	}
	opts.Rows, opts.Cols = clampSize(opts.Rows, opts.Cols)

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p, err := pty.Open(ctx, pty.Options{
		Rows:    opts.Rows,
		Cols:    opts.Cols,
		Command: opts.Command,
		Args:    opts.Args,
		Login:   opts.Login,
		Dir:     opts.Dir,
		Env:     opts.Env,
		Dark:    opts.Dark,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		pty:      p,
		logger:   logger.With("pid", p.Pid()),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
		debounce: opts.ResizeDebounce,
	}
	if s.debounce == 0 {
		s.debounce = DefaultResizeDebounce
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	s.events = make(chan Event, buffer)

	scrollback := opts.Scrollback
	if scrollback == 0 {
		scrollback = DefaultScrollbackLines
	}
	termOpts := []Option{
		WithSize(opts.Rows, opts.Cols),
		WithResponse(sessionResponder{s}),
		WithTitle(sessionNotifier{s}),
		WithBell(sessionNotifier{s}),
		WithLogger(s.logger),
		WithDarkMode(opts.Dark),
	}
	if scrollback > 0 {
		termOpts = append(termOpts, WithScrollback(NewRingScrollback(scrollback)))
	}
	if opts.Recording != nil {
		termOpts = append(termOpts, WithRecording(opts.Recording))
	}
	s.term = New(termOpts...)

	s.logger.Debug("session started", "rows", opts.Rows, "cols", opts.Cols)

	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Terminal returns the grid the session feeds.
func (s *Session) Terminal() *Terminal {
	return s.term
}

// Pid returns the child's process id.
func (s *Session) Pid() int {
	return s.pty.Pid()
}

// Events delivers title, bell, output and exit notifications. Only the
// exit event is guaranteed; others are dropped when the channel is full,
// and evicted to make room for the exit event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Exited reports whether the child's output has ended.
func (s *Session) Exited() bool {
	return s.exited.Load()
}

// Done returns a channel closed after the reader has stopped and the exit
// event was queued. It never waits for the caller to drain Events.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the reader stops or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync returns the render diff since the previous call.
func (s *Session) Sync() RenderDiff {
	return s.term.Sync()
}

// WriteInput sends bytes to the child. It returns ErrExited once the
// child's output has ended.
func (s *Session) WriteInput(p []byte) error {
	if s.exited.Load() {
		return ErrExited
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.pty.Write(p); err != nil {
		if errors.Is(err, pty.ErrClosed) {
			return ErrExited
		}
		return err
	}
	return nil
}

// Resize resizes the grid now and the PTY after the debounce window. Each
// effective resize bumps the terminal generation; a pending PTY resize
// whose generation is no longer current is dropped, so only the last size
// in a burst reaches the child. A size equal to the current one does
// nothing.
func (s *Session) Resize(rows, cols int) error {
	if !s.term.Resize(rows, cols) {
		return nil
	}
	s.term.mu.RLock()
	gen, rows, cols := s.term.generation, s.term.rows, s.term.cols
	s.term.mu.RUnlock()

	if s.debounce < 0 {
		return s.applyResize(gen, rows, cols)
	}

	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	if s.resizeTimer != nil {
		s.resizeTimer.Stop()
	}
	s.resizeTimer = time.AfterFunc(s.debounce, func() {
		_ = s.applyResize(gen, rows, cols)
	})
	return nil
}

func (s *Session) applyResize(gen uint64, rows, cols int) error {
	if gen != s.term.Generation() {
		s.logger.Debug("dropping stale resize", "generation", gen)
		return nil
	}
	if s.exited.Load() {
		return nil
	}
	if err := s.pty.Resize(rows, cols); err != nil {
		s.logger.Warn("pty resize failed", "rows", rows, "cols", cols, "error", err)
		return err
	}
	s.logger.Debug("pty resized", "rows", rows, "cols", cols, "generation", gen)
	return nil
}

// CurrentDir returns the child's working directory, falling back to the
// last directory reported with OSC 7.
func (s *Session) CurrentDir() string {
	if dir, err := pty.CurrentDir(s.Pid()); err == nil {
		return dir
	}
	return s.term.WorkingDirectoryPath()
}

// IsIdle reports whether the shell has no foreground job.
func (s *Session) IsIdle() bool {
	idle, err := pty.IsIdle(s.Pid())
	return err == nil && idle
}

// Close stops the child and waits for the reader to finish.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)

		s.resizeMu.Lock()
		if s.resizeTimer != nil {
			s.resizeTimer.Stop()
		}
		s.resizeMu.Unlock()

		s.closeErr = s.pty.Close()
		<-s.done
		s.logger.Debug("session closed")
	})
	return s.closeErr
}

func (s *Session) readLoop() {
	defer close(s.done)

	buf := make([]byte, readChunkSize)
	retries := 0
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			s.term.Feed(buf[:n])
			s.notify(Event{Kind: EventOutput})
		}
		if err == nil {
			retries = 0
			continue
		}
		if transientReadError(err) && retries < maxReadRetries {
			retries++
			s.logger.Debug("retrying pty read", "attempt", retries, "error", err)
			time.Sleep(time.Duration(retries) * readRetryDelay)
			continue
		}

		s.exited.Store(true)
		exit := Event{Kind: EventExit, ExitCode: -1}
		if !errors.Is(err, io.EOF) {
			s.logger.Warn("pty read failed", "error", err)
			exit.Err = err
		}
		select {
		case <-s.pty.Exited():
			exit.ExitCode = s.pty.ExitCode()
		case <-s.closing:
		case <-time.After(time.Second):
		}
		s.logger.Debug("child exited", "code", exit.ExitCode)
		s.deliverExit(exit)
		return
	}
}

// transientReadError reports whether a failed read is worth retrying.
func transientReadError(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

// deliverExit queues the exit event without blocking. Pending non-exit
// events are evicted to make room; the reader is the only producer once
// output has ended.
func (s *Session) deliverExit(exit Event) {
	for {
		select {
		case s.events <- exit:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// notify delivers ev without blocking the reader.
func (s *Session) notify(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// sessionResponder writes terminal responses back to the child.
type sessionResponder struct{ s *Session }

func (r sessionResponder) Write(p []byte) (int, error) {
	if err := r.s.WriteInput(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// sessionNotifier turns terminal callbacks into events.
type sessionNotifier struct{ s *Session }

func (n sessionNotifier) SetTitle(title string) {
	n.s.notify(Event{Kind: EventTitle, Title: title})
}

func (n sessionNotifier) Ring() {
	n.s.notify(Event{Kind: EventBell})
}

var (
	_ ResponseProvider = sessionResponder{}
	_ TitleProvider    = sessionNotifier{}
	_ BellProvider     = sessionNotifier{}
)
