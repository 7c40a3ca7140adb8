package tideterm

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tidehq/tideterm/parser"
)

// TerminalMode is a bitmask of terminal behavior flags.
// Multiple modes can be active simultaneously.
type TerminalMode uint32

const (
	// ModeCursorKeys enables cursor key mode (DECCKM).
	ModeCursorKeys TerminalMode = 1 << iota
	// ModeColumnMode enables 132-column mode.
	ModeColumnMode
	// ModeInsert enables insert mode (characters shift right instead of overwrite).
	ModeInsert
	// ModeOrigin enables origin mode (cursor positioning relative to scroll region).
	ModeOrigin
	// ModeLineWrap enables automatic line wrapping at column boundaries.
	ModeLineWrap
	// ModeBlinkingCursor enables blinking cursor.
	ModeBlinkingCursor
	// ModeLineFeedNewLine makes line feed also move to column 0.
	ModeLineFeedNewLine
	// ModeShowCursor makes the cursor visible.
	ModeShowCursor
	// ModeReportMouseClicks enables mouse click reporting.
	ModeReportMouseClicks
	// ModeReportCellMouseMotion enables mouse motion reporting (cell-based).
	ModeReportCellMouseMotion
	// ModeReportAllMouseMotion enables reporting of all mouse motion events.
	ModeReportAllMouseMotion
	// ModeReportFocusInOut enables focus in/out event reporting.
	ModeReportFocusInOut
	// ModeUTF8Mouse enables UTF-8 mouse encoding.
	ModeUTF8Mouse
	// ModeSGRMouse enables SGR mouse encoding.
	ModeSGRMouse
	// ModeAlternateScroll enables alternate scroll mode.
	ModeAlternateScroll
	// ModeAlternateScreen is set while the alternate buffer is active.
	ModeAlternateScreen
	// ModeBracketedPaste enables bracketed paste mode.
	ModeBracketedPaste
	// ModeKeypadApplication enables application keypad mode.
	ModeKeypadApplication
)

const (
	// DEFAULT_ROWS is the default number of terminal rows.
	DEFAULT_ROWS = 24
	// DEFAULT_COLS is the default number of terminal columns.
	DEFAULT_COLS = 80

	// MaxRows and MaxCols bound Resize so a bogus size from a window system
	// cannot allocate an enormous grid.
	MaxRows = 500
	MaxCols = 1000
)

// Terminal is a headless VT emulator: a parser feeding a pair of grids.
// It maintains two buffers: primary (with scrollback) and alternate (no scrollback).
// All methods are safe for concurrent use; a single lock guards the grid.
type Terminal struct {
	mu sync.RWMutex
	// deliverMu serializes provider calls made after mu is released.
	deliverMu sync.Mutex

	rows int
	cols int

	primaryBuffer   *Buffer
	alternateBuffer *Buffer
	activeBuffer    *Buffer

	cursor Cursor
	// savedCursor holds DECSC state per screen: 0 primary, 1 alternate.
	savedCursor [2]*SavedCursor

	template      CellTemplate
	hyperlink     *Hyperlink
	lastPrinted   rune
	charsets      [4]Charset
	activeCharset int

	// Scrolling region, 0-based with exclusive bottom.
	scrollTop    int
	scrollBottom int

	modes TerminalMode

	title      string
	titleStack []string
	workingDir string

	parser  *parser.Parser
	applyFn func(*parser.Action)

	// displayOffset is how many lines the viewport is scrolled into
	// scrollback; 0 shows the live screen.
	displayOffset int
	stayAtBottom  bool

	dark bool

	// generation increases every time the grid dimensions change.
	generation uint64
	sync       syncState

	outbox outbox

	scrollbackStorage ScrollbackProvider
	responseProvider  ResponseProvider
	bellProvider      BellProvider
	titleProvider     TitleProvider
	recordingProvider RecordingProvider
	logger            *slog.Logger
}

// outbox collects side effects produced while the lock is held. They are
// delivered to providers after the lock is released so a provider may call
// back into the Terminal.
type outbox struct {
	titles   []string
	bells    int
	response []byte
}

// Option configures a Terminal during construction.
type Option func(*Terminal)

// WithSize sets the terminal dimensions.
// Values <= 0 are replaced with defaults (24x80).
func WithSize(rows, cols int) Option {
	if rows <= 0 {
		rows = DEFAULT_ROWS
	}
	if cols <= 0 {
		cols = DEFAULT_COLS
	}
	rows, cols = clampSize(rows, cols)

	return func(t *Terminal) {
		t.rows = rows
		t.cols = cols
	}
}

// WithResponse sets the writer for terminal responses (e.g., cursor position reports).
// If nil, responses are discarded.
func WithResponse(p ResponseProvider) Option {
	return func(t *Terminal) {
		t.responseProvider = p
	}
}

// WithBell sets the handler for bell events.
func WithBell(p BellProvider) Option {
	return func(t *Terminal) {
		t.bellProvider = p
	}
}

// WithTitle sets the handler for window title changes.
func WithTitle(p TitleProvider) Option {
	return func(t *Terminal) {
		t.titleProvider = p
	}
}

// WithScrollback sets the storage for scrollback lines.
// Lines scrolled off the top of the primary screen are pushed here.
func WithScrollback(storage ScrollbackProvider) Option {
	return func(t *Terminal) {
		t.scrollbackStorage = storage
	}
}

// WithRecording captures raw input bytes before parsing.
func WithRecording(p RecordingProvider) Option {
	return func(t *Terminal) {
		t.recordingProvider = p
	}
}

// WithDarkMode selects the dark (default) or light theme.
func WithDarkMode(dark bool) Option {
	return func(t *Terminal) {
		t.dark = dark
	}
}

// WithLogger sets the logger used for unsupported sequences and other
// diagnostics. Defaults to a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Terminal) {
		t.logger = logger
	}
}

// New creates a terminal with the given options.
// Defaults to 24x80 with line wrap and cursor visible.
func New(opts ...Option) *Terminal {
	t := &Terminal{
		rows:              DEFAULT_ROWS,
		cols:              DEFAULT_COLS,
		dark:              true,
		bellProvider:      NoopBell{},
		titleProvider:     NoopTitle{},
		recordingProvider: NoopRecording{},
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.scrollbackStorage == nil {
		t.scrollbackStorage = NoopScrollback{}
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t.primaryBuffer = NewBufferWithStorage(t.rows, t.cols, t.scrollbackStorage)
	t.alternateBuffer = NewBuffer(t.rows, t.cols)
	t.activeBuffer = t.primaryBuffer

	t.cursor = NewCursor()
	t.template = NewCellTemplate()

	t.scrollTop = 0
	t.scrollBottom = t.rows

	t.modes = ModeLineWrap | ModeShowCursor
	t.stayAtBottom = true

	t.parser = parser.New()
	t.applyFn = t.apply

	return t
}

func clampSize(rows, cols int) (int, int) {
	if rows > MaxRows {
		rows = MaxRows
	}
	if cols > MaxCols {
		cols = MaxCols
	}
	return rows, cols
}

// Rows returns the terminal height in character rows.
func (t *Terminal) Rows() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Cols returns the terminal width in character columns.
func (t *Terminal) Cols() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cols
}

// Size returns rows and columns under a single lock.
func (t *Terminal) Size() (rows, cols int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows, t.cols
}

// Generation returns a counter that increases on every effective resize.
func (t *Terminal) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

// Cell returns a copy of the cell at (row, col) in the active buffer.
// ok is false if the coordinates are out of bounds.
func (t *Terminal) Cell(row, col int) (cell Cell, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := t.activeBuffer.Cell(row, col)
	if c == nil {
		return Cell{}, false
	}
	return *c, true
}

// CursorPos returns the current cursor position (0-based).
func (t *Terminal) CursorPos() (row, col int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Row, t.cursor.Col
}

// CursorVisible returns true if the cursor is currently visible.
func (t *Terminal) CursorVisible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Visible
}

// CursorStyle returns the current cursor rendering style.
func (t *Terminal) CursorStyle() CursorStyle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Style
}

// Title returns the current window title string.
func (t *Terminal) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// WorkingDirectory returns the last working directory URI reported via OSC 7.
func (t *Terminal) WorkingDirectory() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.workingDir
}

// WorkingDirectoryPath extracts the path from the OSC 7 URI
// ("file://host/path" becomes "/path").
func (t *Terminal) WorkingDirectoryPath() string {
	uri := t.WorkingDirectory()

	rest, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return ""
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ""
	}
	return rest[slash:]
}

// SetDarkMode switches between the dark and light themes. A change makes
// the next Sync a full redraw, since every resolved color changes with it.
func (t *Terminal) SetDarkMode(dark bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dark == dark {
		return
	}
	t.dark = dark
	t.sync.forceFull = true
}

// DarkMode reports whether the dark theme is active.
func (t *Terminal) DarkMode() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dark
}

// Theme returns the active theme.
func (t *Terminal) Theme() *Theme {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ThemeFor(t.dark)
}

// HasMode returns true if the specified mode flag is enabled.
func (t *Terminal) HasMode(mode TerminalMode) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modes&mode != 0
}

// IsAlternateScreen returns true if the alternate buffer is currently active.
func (t *Terminal) IsAlternateScreen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer == t.alternateBuffer
}

// ScrollRegion returns the current scrolling boundaries (0-based, exclusive bottom).
func (t *Terminal) ScrollRegion() (top, bottom int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrollTop, t.scrollBottom
}

// IsWrapped returns true if the line soft-wrapped into the next one.
func (t *Terminal) IsWrapped(row int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer.IsWrapped(row)
}

// Feed runs data through the parser and applies every resulting action to
// the grid. The lock is held for the whole chunk and released before any
// provider is called. A sequence split across calls is completed by the
// next call.
func (t *Terminal) Feed(data []byte) {
	t.recordingProvider.Record(data)

	t.mu.Lock()
	pushed := t.primaryBuffer.pushed
	t.parser.Advance(data, t.applyFn)
	t.followOutput(int(t.primaryBuffer.pushed - pushed))
	t.sync.inverseCached = false
	out := t.outbox
	t.outbox = outbox{}
	t.mu.Unlock()

	t.deliver(out)
}

// Write implements io.Writer. It never fails.
func (t *Terminal) Write(data []byte) (int, error) {
	t.Feed(data)
	return len(data), nil
}

// WriteString is a convenience method that converts the string to bytes and calls Write.
func (t *Terminal) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

func (t *Terminal) deliver(out outbox) {
	if len(out.titles) == 0 && out.bells == 0 && len(out.response) == 0 {
		return
	}
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	for _, title := range out.titles {
		t.titleProvider.SetTitle(title)
	}
	for i := 0; i < out.bells; i++ {
		t.bellProvider.Ring()
	}
	if len(out.response) > 0 && t.responseProvider != nil {
		if _, err := t.responseProvider.Write(out.response); err != nil {
			t.logger.Debug("dropping terminal response", "error", err)
		}
	}
}

// respond queues bytes for the response provider. Caller holds the lock.
func (t *Terminal) respond(s string) {
	t.outbox.response = append(t.outbox.response, s...)
}

// Resize changes the terminal dimensions and reports whether anything
// changed. Sizes are clamped to MaxRows x MaxCols; a size equal to the
// current one is a no-op. When rows shrink, lines from the top of the
// primary screen move to scrollback until the cursor and all non-blank
// content fit. Columns are truncated, never reflowed. The next Sync reports
// a full redraw.
func (t *Terminal) Resize(rows, cols int) bool {
	if rows <= 0 || cols <= 0 {
		return false
	}
	rows, cols = clampSize(rows, cols)

	t.mu.Lock()
	defer t.mu.Unlock()

	if rows == t.rows && cols == t.cols {
		return false
	}

	if rows < t.rows {
		primaryRow := 0
		if t.activeBuffer == t.primaryBuffer {
			primaryRow = t.cursor.Row
		} else if saved := t.savedCursor[0]; saved != nil {
			primaryRow = saved.Row
		}
		shift := t.shrinkShift(t.primaryBuffer, primaryRow, rows)
		t.primaryBuffer.ScrollUp(0, t.rows, shift)
		if t.activeBuffer == t.primaryBuffer {
			t.cursor.Row -= shift
		} else if saved := t.savedCursor[0]; saved != nil {
			saved.Row -= shift
		}

		if t.activeBuffer == t.alternateBuffer {
			shift := t.shrinkShift(t.alternateBuffer, t.cursor.Row, rows)
			t.alternateBuffer.ScrollUp(0, t.rows, shift)
			t.cursor.Row -= shift
		}
	}

	t.rows = rows
	t.cols = cols
	t.primaryBuffer.Resize(rows, cols)
	t.alternateBuffer.Resize(rows, cols)

	t.cursor.Row = clamp(t.cursor.Row, 0, rows-1)
	t.cursor.Col = clamp(t.cursor.Col, 0, cols-1)
	t.cursor.wrapPending = false
	for _, saved := range t.savedCursor {
		if saved != nil {
			saved.Row = clamp(saved.Row, 0, rows-1)
			saved.Col = clamp(saved.Col, 0, cols-1)
		}
	}

	t.scrollTop = 0
	t.scrollBottom = rows

	t.setDisplayOffset(t.displayOffset)
	t.generation++
	t.sync.forceFull = true
	t.sync.inverseCached = false
	return true
}

// shrinkShift returns how many lines must leave the top of b so that row
// cursorRow and every non-blank line fit in rows lines.
func (t *Terminal) shrinkShift(b *Buffer, cursorRow, rows int) int {
	last := cursorRow
	for row := b.Rows() - 1; row > last; row-- {
		if !rowIsBlank(b.Row(row)) {
			last = row
			break
		}
	}
	if last < rows {
		return 0
	}
	return last - rows + 1
}

func rowIsBlank(cells []Cell) bool {
	for i := range cells {
		if !cells[i].IsBlank() {
			return false
		}
	}
	return true
}

// clamp ensures the value is within the given range.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// --- Scrollback Methods ---

// ScrollbackLen returns the number of lines stored in scrollback (primary buffer only).
func (t *Terminal) ScrollbackLen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primaryBuffer.ScrollbackLen()
}

// ScrollbackLine returns a copy of a scrollback line, where 0 is the oldest line.
// Returns nil if index is out of range.
func (t *Terminal) ScrollbackLine(index int) []Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	line := t.primaryBuffer.ScrollbackLine(index)
	if line == nil {
		return nil
	}
	return append([]Cell(nil), line...)
}

// ScrollbackContent returns the text of a scrollback line.
func (t *Terminal) ScrollbackContent(index int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cellsToString(t.primaryBuffer.ScrollbackLine(index))
}

// ClearScrollback removes all stored scrollback lines.
func (t *Terminal) ClearScrollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primaryBuffer.ClearScrollback()
	t.setDisplayOffset(0)
}

// --- Convenience Methods ---

// LineContent returns the text content of a line, trimming trailing spaces.
// Returns empty string if the line contains only spaces or is out of bounds.
func (t *Terminal) LineContent(row int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBuffer.LineContent(row)
}

// String returns the visible screen content as a newline-separated string.
// Trailing empty lines are omitted. Implements fmt.Stringer.
func (t *Terminal) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lines := make([]string, t.rows)
	lastNonEmpty := -1
	for row := range lines {
		lines[row] = t.activeBuffer.LineContent(row)
		if lines[row] != "" {
			lastNonEmpty = row
		}
	}
	return strings.Join(lines[:lastNonEmpty+1], "\n")
}
