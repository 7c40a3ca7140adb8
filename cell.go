package tideterm

// CellFlags is a bitmask of cell rendering attributes.
type CellFlags uint16

const (
	CellFlagBold CellFlags = 1 << iota
	CellFlagDim
	CellFlagItalic
	CellFlagUnderline
	CellFlagDoubleUnderline
	CellFlagCurlyUnderline
	CellFlagDottedUnderline
	CellFlagDashedUnderline
	CellFlagBlinkSlow
	CellFlagBlinkFast
	CellFlagReverse
	CellFlagHidden
	CellFlagStrike
	CellFlagWideChar
	CellFlagWideCharSpacer
)

// CellFlagAnyUnderline matches every underline style.
const CellFlagAnyUnderline = CellFlagUnderline | CellFlagDoubleUnderline | CellFlagCurlyUnderline |
	CellFlagDottedUnderline | CellFlagDashedUnderline

// Cell stores the character, colors, and formatting attributes for one grid position.
// Wide characters (2 columns) use a spacer cell in the second position.
type Cell struct {
	Char           rune
	Fg             Color
	Bg             Color
	UnderlineColor Color
	Flags          CellFlags
	Hyperlink      *Hyperlink
}

// Hyperlink associates a cell with a clickable link (OSC 8).
type Hyperlink struct {
	ID  string
	URI string
}

// NewCell creates a blank cell: a space with default colors.
func NewCell() Cell {
	return Cell{Char: ' '}
}

// Reset returns the cell to the blank state.
func (c *Cell) Reset() {
	*c = Cell{Char: ' '}
}

// HasFlag returns true if any of the given flags is set.
func (c *Cell) HasFlag(flag CellFlags) bool {
	return c.Flags&flag != 0
}

// SetFlag enables the specified flag without affecting others.
func (c *Cell) SetFlag(flag CellFlags) {
	c.Flags |= flag
}

// ClearFlag disables the specified flag without affecting others.
func (c *Cell) ClearFlag(flag CellFlags) {
	c.Flags &^= flag
}

// IsWide returns true if this cell holds a character that occupies 2 columns.
func (c *Cell) IsWide() bool {
	return c.HasFlag(CellFlagWideChar)
}

// IsWideSpacer returns true if this is the trailing half of a wide character.
// Spacers carry no glyph of their own.
func (c *Cell) IsWideSpacer() bool {
	return c.HasFlag(CellFlagWideCharSpacer)
}

// IsBlank reports whether the cell would render as empty default space.
func (c *Cell) IsBlank() bool {
	return (c.Char == ' ' || c.Char == 0) && c.Flags == 0 && c.Fg.IsDefault() && c.Bg.IsDefault() && c.Hyperlink == nil
}

// Equal compares content, colors, flags and link target.
func (c *Cell) Equal(o *Cell) bool {
	if c.Char != o.Char || c.Fg != o.Fg || c.Bg != o.Bg || c.UnderlineColor != o.UnderlineColor || c.Flags != o.Flags {
		return false
	}
	if c.Hyperlink == nil || o.Hyperlink == nil {
		return c.Hyperlink == o.Hyperlink
	}
	return *c.Hyperlink == *o.Hyperlink
}
