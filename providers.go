package tideterm

import (
	"io"
	"sync"
)

// DefaultScrollbackLines is the scrollback capacity used by sessions.
const DefaultScrollbackLines = 10000

// ResponseProvider writes terminal responses (e.g., cursor position reports) back to the PTY.
// Typically an io.Writer connected to the PTY input.
type ResponseProvider = io.Writer

// NoopResponse discards all response data (useful when responses are not needed).
type NoopResponse struct{}

func (NoopResponse) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// --- Bell Provider ---

// BellProvider handles bell events triggered by BEL (0x07) characters.
type BellProvider interface {
	// Ring is called when a bell character is received.
	Ring()
}

// NoopBell ignores all bell events.
type NoopBell struct{}

func (NoopBell) Ring() {}

// --- Title Provider ---

// TitleProvider is notified when the window title changes (OSC 0 and 2,
// and title stack pops).
type TitleProvider interface {
	SetTitle(title string)
}

// NoopTitle ignores all title operations.
type NoopTitle struct{}

func (NoopTitle) SetTitle(title string) {}

// --- Scrollback Provider ---

// ScrollbackProvider stores lines scrolled off the top of the primary buffer.
type ScrollbackProvider interface {
	// Push appends a line. The provider must copy it; the caller reuses the slice.
	// The oldest line is dropped when MaxLines is exceeded.
	Push(line []Cell)
	// Len returns the current number of stored lines.
	Len() int
	// Line returns the line at index, where 0 is the oldest line. Returns nil if out of range.
	Line(index int) []Cell
	// Clear removes all stored lines.
	Clear()
	// SetMaxLines sets the maximum capacity, trimming the oldest lines if needed.
	SetMaxLines(max int)
	// MaxLines returns the current maximum capacity.
	MaxLines() int
}

// NoopScrollback discards all scrollback lines.
type NoopScrollback struct{}

func (NoopScrollback) Push(line []Cell)      {}
func (NoopScrollback) Len() int              { return 0 }
func (NoopScrollback) Line(index int) []Cell { return nil }
func (NoopScrollback) Clear()                {}
func (NoopScrollback) SetMaxLines(max int)   {}
func (NoopScrollback) MaxLines() int         { return 0 }

// RingScrollback is a bounded in-memory scrollback. Once full, each push
// overwrites the oldest line and reuses its storage.
//
// Example:
//
//	term := tideterm.New(tideterm.WithScrollback(tideterm.NewRingScrollback(10000)))
type RingScrollback struct {
	lines    [][]Cell
	start    int
	count    int
	maxLines int
}

// NewRingScrollback creates a ring holding at most maxLines lines.
func NewRingScrollback(maxLines int) *RingScrollback {
	if maxLines < 0 {
		maxLines = 0
	}
	return &RingScrollback{maxLines: maxLines}
}

// Push stores a copy of line, evicting the oldest line when full.
func (r *RingScrollback) Push(line []Cell) {
	if r.maxLines == 0 {
		return
	}
	if len(r.lines) < r.maxLines && r.count == len(r.lines) {
		r.lines = append(r.lines, append([]Cell(nil), line...))
		r.count++
		return
	}
	var slot int
	if r.count < r.maxLines {
		slot = (r.start + r.count) % len(r.lines)
		r.count++
	} else {
		slot = r.start
		r.start = (r.start + 1) % len(r.lines)
	}
	dst := r.lines[slot]
	if cap(dst) >= len(line) {
		dst = dst[:len(line)]
	} else {
		dst = make([]Cell, len(line))
	}
	copy(dst, line)
	r.lines[slot] = dst
}

// Len returns the number of stored lines.
func (r *RingScrollback) Len() int {
	return r.count
}

// Line returns the line at index, where 0 is the oldest line.
// The returned slice must not be modified.
func (r *RingScrollback) Line(index int) []Cell {
	if index < 0 || index >= r.count {
		return nil
	}
	return r.lines[(r.start+index)%len(r.lines)]
}

// Clear removes all stored lines and releases their memory.
func (r *RingScrollback) Clear() {
	r.lines = nil
	r.start = 0
	r.count = 0
}

// SetMaxLines changes the capacity, keeping the newest lines.
func (r *RingScrollback) SetMaxLines(max int) {
	if max < 0 {
		max = 0
	}
	keep := r.count
	if keep > max {
		keep = max
	}
	lines := make([][]Cell, 0, keep)
	for i := r.count - keep; i < r.count; i++ {
		lines = append(lines, r.Line(i))
	}
	r.lines = lines
	r.start = 0
	r.count = keep
	r.maxLines = max
}

// MaxLines returns the current capacity.
func (r *RingScrollback) MaxLines() int {
	return r.maxLines
}

// --- Recording Provider ---

// RecordingProvider captures raw input bytes before parsing, for replay or debugging.
type RecordingProvider interface {
	// Record appends raw bytes to the recording.
	Record(data []byte)
	// Data returns all captured bytes since the last Clear call.
	Data() []byte
	// Clear discards all recorded data.
	Clear()
}

// NoopRecording discards all input recordings.
type NoopRecording struct{}

func (NoopRecording) Record([]byte) {}
func (NoopRecording) Data() []byte  { return nil }
func (NoopRecording) Clear()        {}

// MemoryRecording stores raw input bytes in memory. It is safe for
// concurrent use so a recording can be read while a session is live.
//
// Example:
//
//	recorder := tideterm.NewMemoryRecording()
//	term := tideterm.New(tideterm.WithRecording(recorder))
//	// ... process terminal output ...
//	os.WriteFile("session.raw", recorder.Data(), 0o644)
type MemoryRecording struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryRecording creates a new in-memory recording buffer.
func NewMemoryRecording() *MemoryRecording {
	return &MemoryRecording{}
}

// Record appends raw bytes to the recording.
func (r *MemoryRecording) Record(data []byte) {
	r.mu.Lock()
	r.data = append(r.data, data...)
	r.mu.Unlock()
}

// Data returns a copy of all captured bytes since the last Clear call.
func (r *MemoryRecording) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]byte, len(r.data))
	copy(result, r.data)
	return result
}

// Clear discards all recorded data.
func (r *MemoryRecording) Clear() {
	r.mu.Lock()
	r.data = nil
	r.mu.Unlock()
}

// Ensure implementations satisfy their interfaces
var _ ResponseProvider = NoopResponse{}
var _ BellProvider = (*NoopBell)(nil)
var _ TitleProvider = (*NoopTitle)(nil)
var _ ScrollbackProvider = (*NoopScrollback)(nil)
var _ ScrollbackProvider = (*RingScrollback)(nil)
var _ RecordingProvider = (*NoopRecording)(nil)
var _ RecordingProvider = (*MemoryRecording)(nil)
