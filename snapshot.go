package tideterm

// SnapshotDetail specifies the level of detail in a snapshot.
type SnapshotDetail string

const (
	// SnapshotDetailText returns plain text only.
	SnapshotDetailText SnapshotDetail = "text"
	// SnapshotDetailStyled returns text with style segments per line.
	SnapshotDetailStyled SnapshotDetail = "styled"
	// SnapshotDetailFull returns full cell-by-cell data.
	SnapshotDetailFull SnapshotDetail = "full"
)

// Snapshot is a JSON-friendly capture of the visible screen.
type Snapshot struct {
	Size       SnapshotSize   `json:"size"`
	Cursor     SnapshotCursor `json:"cursor"`
	Title      string         `json:"title,omitempty"`
	Alternate  bool           `json:"alternate,omitempty"`
	Dark       bool           `json:"dark"`
	Scrollback int            `json:"scrollback"`
	Lines      []SnapshotLine `json:"lines"`
}

// SnapshotSize holds terminal dimensions.
type SnapshotSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// SnapshotCursor holds cursor state.
type SnapshotCursor struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Visible  bool   `json:"visible"`
	Style    string `json:"style"`
	Inferred bool   `json:"inferred,omitempty"`
}

// SnapshotLine represents a single line in the snapshot.
type SnapshotLine struct {
	Text     string            `json:"text"`
	Wrapped  bool              `json:"wrapped,omitempty"`
	Segments []SnapshotSegment `json:"segments,omitempty"`
	Cells    []SnapshotCell    `json:"cells,omitempty"`
}

// SnapshotSegment is a run of cells sharing one style.
type SnapshotSegment struct {
	Text       string        `json:"text"`
	Fg         string        `json:"fg,omitempty"`
	Bg         string        `json:"bg,omitempty"`
	Attributes SnapshotAttrs `json:"attrs,omitempty"`
	Hyperlink  *SnapshotLink `json:"hyperlink,omitempty"`
}

// SnapshotCell represents a single cell with full attributes.
// Default colors are left empty.
type SnapshotCell struct {
	Char       string        `json:"char"`
	Fg         string        `json:"fg,omitempty"`
	Bg         string        `json:"bg,omitempty"`
	Attributes SnapshotAttrs `json:"attrs,omitempty"`
	Hyperlink  *SnapshotLink `json:"hyperlink,omitempty"`
	// UnderlineColor is set only when it differs from the foreground.
	UnderlineColor string `json:"underline_color,omitempty"`
	Wide           bool   `json:"wide,omitempty"`
	WideSpacer     bool   `json:"wide_spacer,omitempty"`
}

// SnapshotAttrs holds text formatting attributes.
type SnapshotAttrs struct {
	Bold          bool   `json:"bold,omitempty"`
	Dim           bool   `json:"dim,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underline     string `json:"underline,omitempty"` // single, double, curly, dotted, dashed
	Blink         string `json:"blink,omitempty"`     // slow, fast
	Reverse       bool   `json:"reverse,omitempty"`
	Hidden        bool   `json:"hidden,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
}

// SnapshotLink holds hyperlink information.
type SnapshotLink struct {
	ID  string `json:"id,omitempty"`
	URI string `json:"uri"`
}

// Snapshot captures the visible screen.
// The detail parameter controls how much information is included per line.
func (t *Terminal) Snapshot(detail SnapshotDetail) *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	cursor := t.cursorState()
	snap := &Snapshot{
		Size: SnapshotSize{Rows: t.rows, Cols: t.cols},
		Cursor: SnapshotCursor{
			Row:      cursor.Row,
			Col:      cursor.Col,
			Visible:  cursor.Visible,
			Style:    cursor.Style.String(),
			Inferred: cursor.Inferred,
		},
		Title:      t.title,
		Alternate:  t.activeBuffer == t.alternateBuffer,
		Dark:       t.dark,
		Scrollback: t.primaryBuffer.ScrollbackLen(),
		Lines:      make([]SnapshotLine, t.rows),
	}

	theme := ThemeFor(t.dark)
	for row := range snap.Lines {
		snap.Lines[row] = LineSnapshot(t.activeBuffer.Row(row), detail, theme)
		snap.Lines[row].Wrapped = t.activeBuffer.IsWrapped(row)
	}
	return snap
}

// LineSnapshot converts a row of cells, such as RowDiff.Cells, into its
// snapshot form. Colors are resolved against theme; nil means DarkTheme.
func LineSnapshot(cells []Cell, detail SnapshotDetail, theme *Theme) SnapshotLine {
	line := SnapshotLine{Text: cellsToString(cells)}
	if theme == nil {
		theme = DarkTheme
	}

	switch detail {
	case SnapshotDetailStyled:
		line.Segments = lineToSegments(cells, theme)
	case SnapshotDetailFull:
		line.Cells = lineToCells(cells, theme)
	}
	return line
}

// lineToSegments merges consecutive cells with the same style.
func lineToSegments(cells []Cell, theme *Theme) []SnapshotSegment {
	var segments []SnapshotSegment
	var current *SnapshotSegment
	var chars []rune

	flush := func() {
		if current != nil && len(chars) > 0 {
			current.Text = string(chars)
			segments = append(segments, *current)
		}
	}

	for col := range cells {
		cell := &cells[col]
		if cell.IsWideSpacer() {
			continue
		}

		fg, bg := theme.Hex(cell.Fg), theme.Hex(cell.Bg)
		attrs := cellAttrsToSnapshot(cell)
		link := cellHyperlinkToSnapshot(cell)

		if current == nil || !segmentMatches(current, fg, bg, attrs, link) {
			flush()
			current = &SnapshotSegment{Fg: fg, Bg: bg, Attributes: attrs, Hyperlink: link}
			chars = chars[:0]
		}

		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		chars = append(chars, ch)
	}
	flush()

	return segments
}

func lineToCells(cells []Cell, theme *Theme) []SnapshotCell {
	out := make([]SnapshotCell, 0, len(cells))
	for col := range cells {
		cell := &cells[col]
		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		out = append(out, SnapshotCell{
			Char:           string(ch),
			Fg:             theme.Hex(cell.Fg),
			Bg:             theme.Hex(cell.Bg),
			Attributes:     cellAttrsToSnapshot(cell),
			Hyperlink:      cellHyperlinkToSnapshot(cell),
			UnderlineColor: theme.Hex(cell.UnderlineColor),
			Wide:           cell.IsWide(),
			WideSpacer:     cell.IsWideSpacer(),
		})
	}
	return out
}

func segmentMatches(seg *SnapshotSegment, fg, bg string, attrs SnapshotAttrs, link *SnapshotLink) bool {
	if seg.Fg != fg || seg.Bg != bg || seg.Attributes != attrs {
		return false
	}
	if seg.Hyperlink == nil || link == nil {
		return seg.Hyperlink == nil && link == nil
	}
	return *seg.Hyperlink == *link
}

func cellAttrsToSnapshot(cell *Cell) SnapshotAttrs {
	attrs := SnapshotAttrs{
		Bold:          cell.HasFlag(CellFlagBold),
		Dim:           cell.HasFlag(CellFlagDim),
		Italic:        cell.HasFlag(CellFlagItalic),
		Reverse:       cell.HasFlag(CellFlagReverse),
		Hidden:        cell.HasFlag(CellFlagHidden),
		Strikethrough: cell.HasFlag(CellFlagStrike),
	}

	switch {
	case cell.HasFlag(CellFlagUnderline):
		attrs.Underline = "single"
	case cell.HasFlag(CellFlagDoubleUnderline):
		attrs.Underline = "double"
	case cell.HasFlag(CellFlagCurlyUnderline):
		attrs.Underline = "curly"
	case cell.HasFlag(CellFlagDottedUnderline):
		attrs.Underline = "dotted"
	case cell.HasFlag(CellFlagDashedUnderline):
		attrs.Underline = "dashed"
	}

	switch {
	case cell.HasFlag(CellFlagBlinkFast):
		attrs.Blink = "fast"
	case cell.HasFlag(CellFlagBlinkSlow):
		attrs.Blink = "slow"
	}

	return attrs
}

func cellHyperlinkToSnapshot(cell *Cell) *SnapshotLink {
	if cell.Hyperlink == nil {
		return nil
	}
	return &SnapshotLink{ID: cell.Hyperlink.ID, URI: cell.Hyperlink.URI}
}
