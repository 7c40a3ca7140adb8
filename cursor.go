package tideterm

// CursorStyle determines how the cursor is rendered.
type CursorStyle int

const (
	CursorStyleBlinkingBlock CursorStyle = iota
	CursorStyleSteadyBlock
	CursorStyleBlinkingUnderline
	CursorStyleSteadyUnderline
	CursorStyleBlinkingBar
	CursorStyleSteadyBar
)

// String returns the shape name without the blink state.
func (s CursorStyle) String() string {
	switch s {
	case CursorStyleBlinkingUnderline, CursorStyleSteadyUnderline:
		return "underline"
	case CursorStyleBlinkingBar, CursorStyleSteadyBar:
		return "bar"
	default:
		return "block"
	}
}

// Blinking reports whether the style blinks.
func (s CursorStyle) Blinking() bool {
	return s == CursorStyleBlinkingBlock || s == CursorStyleBlinkingUnderline || s == CursorStyleBlinkingBar
}

// Cursor tracks the current position and rendering style (0-based coordinates).
type Cursor struct {
	Row     int
	Col     int
	Style   CursorStyle
	Visible bool

	// wrapPending is set after printing into the last column with autowrap
	// on. The wrap happens on the next printable character, not immediately.
	wrapPending bool
}

// NewCursor creates a cursor at (0, 0) with blinking block style, visible.
func NewCursor() Cursor {
	return Cursor{
		Style:   CursorStyleBlinkingBlock,
		Visible: true,
	}
}

// SavedCursor stores cursor position, cell attributes, and charset state for restoration.
type SavedCursor struct {
	Row          int
	Col          int
	Attrs        CellTemplate
	OriginMode   bool
	CharsetIndex int
	Charsets     [4]Charset
}

// CellTemplate holds the attributes applied to newly written characters.
// Modified by SGR escape sequences.
type CellTemplate struct {
	Fg             Color
	Bg             Color
	UnderlineColor Color
	Flags          CellFlags
}

// NewCellTemplate creates a template with default attributes.
func NewCellTemplate() CellTemplate {
	return CellTemplate{}
}

func (t *CellTemplate) SetFlag(flag CellFlags)   { t.Flags |= flag }
func (t *CellTemplate) ClearFlag(flag CellFlags) { t.Flags &^= flag }

// Charset selects the character encoding variant.
type Charset int

const (
	CharsetASCII Charset = iota
	CharsetLineDrawing
)

var lineDrawing = map[rune]rune{
	'`': '◆', 'a': '▒', 'f': '°', 'g': '±', 'j': '┘', 'k': '┐', 'l': '┌', 'm': '└',
	'n': '┼', 'o': '⎺', 'p': '⎻', 'q': '─', 'r': '⎼', 's': '⎽', 't': '├', 'u': '┤',
	'v': '┴', 'w': '┬', 'x': '│', 'y': '≤', 'z': '≥', '{': 'π', '|': '≠', '}': '£',
	'~': '·',
}

// translate maps r through the charset.
func (c Charset) translate(r rune) rune {
	if c != CharsetLineDrawing {
		return r
	}
	if m, ok := lineDrawing[r]; ok {
		return m
	}
	return r
}
