package tideterm

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 128-bit digest of one row's cells. Two rows with the
// same content, colors, flags and links have the same fingerprint.
type Fingerprint [16]byte

// CursorState is the cursor as a renderer should draw it.
type CursorState struct {
	Row     int
	Col     int
	Visible bool
	Style   CursorStyle
	// Inferred is set when the application hid the cursor and Row/Col point
	// at the last reverse-video cell instead, which is where full-screen
	// programs that draw their own cursor usually put it.
	Inferred bool
}

// RowDiff describes one visible row in a RenderDiff.
type RowDiff struct {
	Index int
	// Changed is false when the row is identical to the previous Sync.
	// Cells and URLs are only filled for changed rows.
	Changed bool
	Cells   []Cell
	URLs    []Span
}

// RenderDiff is what changed on screen since the previous Sync.
type RenderDiff struct {
	Cursor CursorState
	Rows   []RowDiff
	// Full asks the renderer to repaint everything: first sync, screen
	// switch, resize, or Invalidate.
	Full       bool
	Alternate  bool
	Generation uint64
	// Dark is the theme the rows should be drawn with; see ThemeFor.
	Dark bool
	// DisplayOffset is how many lines the view is scrolled into scrollback.
	// The top DisplayOffset rows then show scrollback lines.
	DisplayOffset int
}

// ChangedRows returns the number of rows whose content is included.
func (d *RenderDiff) ChangedRows() int {
	n := 0
	for i := range d.Rows {
		if d.Rows[i].Changed {
			n++
		}
	}
	return n
}

// Empty reports whether no row changed.
func (d *RenderDiff) Empty() bool {
	return !d.Full && d.ChangedRows() == 0
}

type syncState struct {
	prev       []Fingerprint
	prevBuffer *Buffer
	primed     bool
	forceFull  bool
	hasher     rowHasher

	// Cached position of the last reverse-video cell. Feed and Resize drop
	// the cache.
	inverseRow    int
	inverseCol    int
	inverseOK     bool
	inverseCached bool
}

// rowHasher serializes a row into a reused scratch buffer and hashes it.
type rowHasher struct {
	h       *blake3.Hasher
	scratch []byte
	out     [32]byte
}

func (rh *rowHasher) sum(cells []Cell) Fingerprint {
	if rh.h == nil {
		rh.h = blake3.New()
	}
	buf := rh.scratch[:0]
	for i := range cells {
		c := &cells[i]
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Char))
		buf = appendColor(buf, c.Fg)
		buf = appendColor(buf, c.Bg)
		buf = appendColor(buf, c.UnderlineColor)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(c.Flags))
		if c.Hyperlink != nil {
			buf = append(buf, 1)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Hyperlink.URI)))
			buf = append(buf, c.Hyperlink.URI...)
		} else {
			buf = append(buf, 0)
		}
	}
	rh.scratch = buf

	rh.h.Reset()
	_, _ = rh.h.Write(buf)
	rh.h.Sum(rh.out[:0])

	var fp Fingerprint
	copy(fp[:], rh.out[:len(fp)])
	return fp
}

func appendColor(buf []byte, c Color) []byte {
	return append(buf, byte(c.Kind), c.Index, c.R, c.G, c.B)
}

// fingerprint returns the row's digest, rehashing only if the row changed
// since it was last hashed.
func (b *Buffer) fingerprint(row int, h *rowHasher) Fingerprint {
	if b.dirty[row] {
		b.sums[row] = h.sum(b.cells[row])
		b.dirty[row] = false
	}
	return b.sums[row]
}

// Sync reports what changed since the previous call. Clean rows reuse their
// cached fingerprint, so when nothing changed the cost is one comparison per
// row. Calling Sync twice without intervening input returns no changed rows
// the second time.
func (t *Terminal) Sync() RenderDiff {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.sync
	buf := t.activeBuffer

	full := !s.primed || s.forceFull || s.prevBuffer != buf || len(s.prev) != t.rows
	if len(s.prev) != t.rows {
		s.prev = make([]Fingerprint, t.rows)
	}

	diff := RenderDiff{
		Rows:          make([]RowDiff, t.rows),
		Full:          full,
		Alternate:     buf == t.alternateBuffer,
		Generation:    t.generation,
		Dark:          t.dark,
		DisplayOffset: t.displayOffset,
	}

	for row := 0; row < t.rows; row++ {
		cells, live := t.viewRow(row)
		var sum Fingerprint
		if live >= 0 {
			sum = buf.fingerprint(live, &s.hasher)
		} else {
			sum = s.hasher.sum(cells)
		}
		rd := &diff.Rows[row]
		rd.Index = row
		if !full && sum == s.prev[row] {
			continue
		}
		s.prev[row] = sum
		rd.Changed = true
		rd.Cells = append([]Cell(nil), cells...)
		rd.URLs = findURLs(cells)
	}
	buf.ClearAllDirty()

	diff.Cursor = t.viewCursor()

	s.primed = true
	s.forceFull = false
	s.prevBuffer = buf
	return diff
}

// Invalidate makes the next Sync a full redraw.
func (t *Terminal) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync.forceFull = true
}

// CursorState returns the cursor as it would appear in the next RenderDiff.
func (t *Terminal) CursorState() CursorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewCursor()
}

// viewCursor is cursorState moved down by the display offset. A cursor
// scrolled below the view is hidden. Caller holds the lock.
func (t *Terminal) viewCursor() CursorState {
	cs := t.cursorState()
	if t.displayOffset == 0 {
		return cs
	}
	cs.Row += t.displayOffset
	if cs.Row >= t.rows {
		cs.Row = t.rows - 1
		cs.Visible = false
		cs.Inferred = false
	}
	return cs
}

// cursorState resolves where to draw the cursor. Caller holds the lock.
func (t *Terminal) cursorState() CursorState {
	s := &t.sync

	cs := CursorState{
		Row:     t.cursor.Row,
		Col:     t.cursor.Col,
		Visible: t.cursor.Visible,
		Style:   t.cursor.Style,
	}
	if t.cursor.Visible {
		return cs
	}

	if !s.inverseCached {
		s.inverseRow, s.inverseCol, s.inverseOK = lastInverseCell(t.activeBuffer)
		s.inverseCached = true
	}
	if s.inverseOK {
		cs.Row, cs.Col = s.inverseRow, s.inverseCol
		cs.Inferred = true
	}
	return cs
}

// lastInverseCell finds the bottom-most, right-most cell drawn in reverse video.
func lastInverseCell(b *Buffer) (row, col int, ok bool) {
	for row = b.rows - 1; row >= 0; row-- {
		line := b.cells[row]
		for col = len(line) - 1; col >= 0; col-- {
			if line[col].HasFlag(CellFlagReverse) {
				return row, col, true
			}
		}
	}
	return 0, 0, false
}
