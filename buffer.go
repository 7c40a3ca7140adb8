package tideterm

// Buffer stores a 2D grid of cells and tracks per-row state: whether the
// line soft-wrapped, whether it changed since its fingerprint was taken, and
// the fingerprint itself. Row state moves with the row when lines scroll, so
// a scrolled line keeps its cached fingerprint.
type Buffer struct {
	rows       int
	cols       int
	cells      [][]Cell
	wrapped    []bool // tracks if each line was wrapped (vs explicit newline)
	dirty      []bool
	sums       []Fingerprint
	tabStop    []bool
	scrollback ScrollbackProvider
	hasDirty   bool
	// pushed counts lines handed to scrollback over the buffer's lifetime.
	pushed uint64
}

// NewBuffer creates a buffer with the given dimensions and no scrollback.
func NewBuffer(rows, cols int) *Buffer {
	return NewBufferWithStorage(rows, cols, NoopScrollback{})
}

// NewBufferWithStorage creates a buffer with custom scrollback storage.
// Tab stops are initialized every 8 columns.
func NewBufferWithStorage(rows, cols int, storage ScrollbackProvider) *Buffer {
	if storage == nil {
		storage = NoopScrollback{}
	}
	b := &Buffer{
		rows:       rows,
		cols:       cols,
		cells:      make([][]Cell, rows),
		wrapped:    make([]bool, rows),
		dirty:      make([]bool, rows),
		sums:       make([]Fingerprint, rows),
		tabStop:    make([]bool, cols),
		scrollback: storage,
		hasDirty:   true,
	}

	for i := range b.cells {
		b.cells[i] = newRow(cols)
		b.dirty[i] = true
	}

	for i := 0; i < cols; i += 8 {
		b.tabStop[i] = true
	}

	return b
}

func newRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = NewCell()
	}
	return row
}

// Rows returns the buffer height in character rows.
func (b *Buffer) Rows() int {
	return b.rows
}

// Cols returns the buffer width in character columns.
func (b *Buffer) Cols() int {
	return b.cols
}

// Cell returns a pointer to the cell at (row, col), or nil if out of bounds.
// Callers that modify the cell must call MarkDirty.
func (b *Buffer) Cell(row, col int) *Cell {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return nil
	}
	return &b.cells[row][col]
}

// Row returns the cells of a row, or nil if out of bounds. The slice aliases
// buffer storage.
func (b *Buffer) Row(row int) []Cell {
	if row < 0 || row >= b.rows {
		return nil
	}
	return b.cells[row]
}

// SetCell replaces the cell at (row, col) and marks the row dirty.
// Does nothing if coordinates are out of bounds.
func (b *Buffer) SetCell(row, col int, cell Cell) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return
	}
	b.cells[row][col] = cell
	b.MarkDirty(row)
}

// MarkDirty flags a row as modified.
func (b *Buffer) MarkDirty(row int) {
	if row < 0 || row >= b.rows {
		return
	}
	b.dirty[row] = true
	b.hasDirty = true
}

// MarkAllDirty flags every row as modified.
func (b *Buffer) MarkAllDirty() {
	for i := range b.dirty {
		b.dirty[i] = true
	}
	b.hasDirty = true
}

// HasDirty returns true if any row changed since the last ClearAllDirty call.
func (b *Buffer) HasDirty() bool {
	return b.hasDirty
}

// IsDirty reports whether a row changed since it was last fingerprinted.
func (b *Buffer) IsDirty(row int) bool {
	if row < 0 || row >= b.rows {
		return false
	}
	return b.dirty[row]
}

// DirtyRows returns the indices of all modified rows.
func (b *Buffer) DirtyRows() []int {
	var rows []int
	for row, d := range b.dirty {
		if d {
			rows = append(rows, row)
		}
	}
	return rows
}

// ClearAllDirty resets the buffer-level dirty state. Row flags are cleared as
// rows are fingerprinted.
func (b *Buffer) ClearAllDirty() {
	b.hasDirty = false
}

// ClearRow resets all cells in the row to default state.
func (b *Buffer) ClearRow(row int) {
	if row < 0 || row >= b.rows {
		return
	}
	for col := range b.cells[row] {
		b.cells[row][col].Reset()
	}
	b.wrapped[row] = false
	b.MarkDirty(row)
}

// ClearRowRange resets cells in the row from startCol (inclusive) to endCol
// (exclusive). A wide character cut in half by the range is cleared entirely.
func (b *Buffer) ClearRowRange(row, startCol, endCol int) {
	if row < 0 || row >= b.rows {
		return
	}
	if startCol < 0 {
		startCol = 0
	}
	if endCol > b.cols {
		endCol = b.cols
	}
	if startCol >= endCol {
		return
	}
	line := b.cells[row]
	if line[startCol].IsWideSpacer() && startCol > 0 {
		line[startCol-1].Reset()
	}
	if endCol < b.cols && line[endCol].IsWideSpacer() {
		line[endCol].Reset()
	}
	for col := startCol; col < endCol; col++ {
		line[col].Reset()
	}
	b.MarkDirty(row)
}

// ClearAll resets all cells in the buffer to default state.
func (b *Buffer) ClearAll() {
	for row := range b.cells {
		b.ClearRow(row)
	}
}

// clearWideAt removes the other half of a wide character before (row, col)
// is overwritten, so no orphaned spacer or half glyph remains.
func (b *Buffer) clearWideAt(row, col int) {
	line := b.cells[row]
	c := &line[col]
	if c.IsWideSpacer() && col > 0 {
		line[col-1].Reset()
	}
	if c.IsWide() && col+1 < b.cols {
		line[col+1].Reset()
	}
}

func (b *Buffer) swapRows(i, j int) {
	b.cells[i], b.cells[j] = b.cells[j], b.cells[i]
	b.wrapped[i], b.wrapped[j] = b.wrapped[j], b.wrapped[i]
	b.dirty[i], b.dirty[j] = b.dirty[j], b.dirty[i]
	b.sums[i], b.sums[j] = b.sums[j], b.sums[i]
}

func (b *Buffer) reverseRows(from, to int) {
	for to--; from < to; from, to = from+1, to-1 {
		b.swapRows(from, to)
	}
}

// rotateUp moves rows [top+n, bottom) to [top, bottom-n) and the first n rows
// of the range to the end, without allocating.
func (b *Buffer) rotateUp(top, bottom, n int) {
	b.reverseRows(top, top+n)
	b.reverseRows(top+n, bottom)
	b.reverseRows(top, bottom)
}

func (b *Buffer) clampRegion(top, bottom, n int) (int, int, int, bool) {
	if top < 0 {
		top = 0
	}
	if bottom > b.rows {
		bottom = b.rows
	}
	if n <= 0 || top >= bottom {
		return 0, 0, 0, false
	}
	if n > bottom-top {
		n = bottom - top
	}
	return top, bottom, n, true
}

// ScrollUp shifts lines up by n positions within [top, bottom).
// Lines scrolled off the top go to scrollback only when the region is the
// whole screen. The vacated bottom lines are cleared.
func (b *Buffer) ScrollUp(top, bottom, n int) {
	top, bottom, n, ok := b.clampRegion(top, bottom, n)
	if !ok {
		return
	}

	if top == 0 && bottom == b.rows && b.scrollback.MaxLines() > 0 {
		for i := 0; i < n; i++ {
			b.scrollback.Push(b.cells[i])
		}
		b.pushed += uint64(n)
	}

	b.rotateUp(top, bottom, n)
	for row := bottom - n; row < bottom; row++ {
		b.ClearRow(row)
	}
	b.hasDirty = true
}

// ScrollDown shifts lines down by n positions within [top, bottom).
// The vacated top lines are cleared.
func (b *Buffer) ScrollDown(top, bottom, n int) {
	top, bottom, n, ok := b.clampRegion(top, bottom, n)
	if !ok {
		return
	}

	b.rotateUp(top, bottom, bottom-top-n)
	for row := top; row < top+n; row++ {
		b.ClearRow(row)
	}
	b.hasDirty = true
}

// InsertLines inserts n blank lines at row, shifting existing lines down.
// Equivalent to ScrollDown(row, bottom, n).
func (b *Buffer) InsertLines(row, n, bottom int) {
	if row < 0 || row >= bottom || n <= 0 {
		return
	}
	b.ScrollDown(row, bottom, n)
}

// DeleteLines removes n lines at row, shifting remaining lines up.
// Deleted lines never reach scrollback.
func (b *Buffer) DeleteLines(row, n, bottom int) {
	top, bottom, n, ok := b.clampRegion(row, bottom, n)
	if !ok || row < 0 {
		return
	}
	b.rotateUp(top, bottom, n)
	for r := bottom - n; r < bottom; r++ {
		b.ClearRow(r)
	}
}

// InsertBlanks inserts n blank cells at (row, col), shifting existing characters right.
func (b *Buffer) InsertBlanks(row, col, n int) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols || n <= 0 {
		return
	}
	if n > b.cols-col {
		n = b.cols - col
	}
	line := b.cells[row]
	b.clearWideAt(row, col)
	copy(line[col+n:], line[col:b.cols-n])
	for c := col; c < col+n; c++ {
		line[c].Reset()
	}
	if line[b.cols-1].IsWide() {
		line[b.cols-1].Reset()
	}
	b.MarkDirty(row)
}

// DeleteChars removes n characters at (row, col), shifting remaining characters left.
func (b *Buffer) DeleteChars(row, col, n int) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols || n <= 0 {
		return
	}
	if n > b.cols-col {
		n = b.cols - col
	}
	line := b.cells[row]
	b.clearWideAt(row, col)
	copy(line[col:], line[col+n:])
	for c := b.cols - n; c < b.cols; c++ {
		line[c].Reset()
	}
	if line[col].IsWideSpacer() {
		line[col].Reset()
	}
	b.MarkDirty(row)
}

// Resize changes buffer dimensions, keeping content anchored at the top-left.
// Extra columns are truncated, never reflowed. Rows beyond the new height
// are dropped; callers that want them in scrollback scroll first.
func (b *Buffer) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}

	newCells := make([][]Cell, rows)
	newWrapped := make([]bool, rows)
	for i := range newCells {
		if i >= b.rows {
			newCells[i] = newRow(cols)
			continue
		}
		newWrapped[i] = b.wrapped[i]
		if cols == b.cols {
			newCells[i] = b.cells[i]
			continue
		}
		row := newRow(cols)
		copy(row, b.cells[i])
		if cols < b.cols {
			newWrapped[i] = false
			if last := &row[cols-1]; last.IsWide() {
				last.Reset()
			}
		}
		newCells[i] = row
	}

	b.cells = newCells
	b.wrapped = newWrapped
	b.dirty = make([]bool, rows)
	b.sums = make([]Fingerprint, rows)
	b.rows = rows

	if cols != b.cols {
		newTabStop := make([]bool, cols)
		copy(newTabStop, b.tabStop)
		start := len(b.tabStop) + (8-len(b.tabStop)%8)%8
		for i := start; i < cols; i += 8 {
			newTabStop[i] = true
		}
		b.tabStop = newTabStop
		b.cols = cols
	}
	b.MarkAllDirty()
}

// SetTabStop enables a tab stop at the specified column.
func (b *Buffer) SetTabStop(col int) {
	if col >= 0 && col < b.cols {
		b.tabStop[col] = true
	}
}

// ClearTabStop disables the tab stop at the specified column.
func (b *Buffer) ClearTabStop(col int) {
	if col >= 0 && col < b.cols {
		b.tabStop[col] = false
	}
}

// ClearAllTabStops disables all tab stops.
func (b *Buffer) ClearAllTabStops() {
	for i := range b.tabStop {
		b.tabStop[i] = false
	}
}

// NextTabStop returns the column index of the next enabled tab stop after col.
// Returns the last column if no tab stop is found.
func (b *Buffer) NextTabStop(col int) int {
	for c := col + 1; c < b.cols; c++ {
		if b.tabStop[c] {
			return c
		}
	}
	return b.cols - 1
}

// PrevTabStop returns the column index of the previous enabled tab stop before col.
// Returns 0 if no tab stop is found.
func (b *Buffer) PrevTabStop(col int) int {
	for c := col - 1; c >= 0; c-- {
		if b.tabStop[c] {
			return c
		}
	}
	return 0
}

// FillWithE fills all cells with 'E' (DECALN screen alignment pattern).
func (b *Buffer) FillWithE() {
	for row := range b.cells {
		for col := range b.cells[row] {
			b.cells[row][col].Reset()
			b.cells[row][col].Char = 'E'
		}
		b.MarkDirty(row)
	}
}

// ScrollbackLen returns the number of lines stored in scrollback.
func (b *Buffer) ScrollbackLen() int {
	return b.scrollback.Len()
}

// ScrollbackLine returns a line from scrollback, where 0 is the oldest line.
func (b *Buffer) ScrollbackLine(index int) []Cell {
	return b.scrollback.Line(index)
}

// ClearScrollback removes all stored scrollback lines.
func (b *Buffer) ClearScrollback() {
	b.scrollback.Clear()
}

// ScrollbackProvider returns the current scrollback storage implementation.
func (b *Buffer) ScrollbackProvider() ScrollbackProvider {
	return b.scrollback
}

// LineContent returns the text content of a line, trimming trailing spaces.
// Wide character spacers are skipped. Returns empty string if the line is empty or out of bounds.
func (b *Buffer) LineContent(row int) string {
	if row < 0 || row >= b.rows {
		return ""
	}
	return cellsToString(b.cells[row])
}

// cellsToString renders cells as text, skipping spacers and trimming
// trailing blanks.
func cellsToString(cells []Cell) string {
	last := -1
	for col := len(cells) - 1; col >= 0; col-- {
		c := &cells[col]
		if c.Char != ' ' && c.Char != 0 && !c.IsWideSpacer() {
			last = col
			break
		}
	}
	if last < 0 {
		return ""
	}

	runes := make([]rune, 0, last+1)
	for col := range cells[:last+1] {
		c := &cells[col]
		if c.IsWideSpacer() {
			continue
		}
		if c.Char == 0 {
			runes = append(runes, ' ')
		} else {
			runes = append(runes, c.Char)
		}
	}
	return string(runes)
}

// IsWrapped returns true if the line was wrapped due to column overflow.
func (b *Buffer) IsWrapped(row int) bool {
	if row < 0 || row >= b.rows {
		return false
	}
	return b.wrapped[row]
}

// SetWrapped sets whether the line was wrapped or ended with an explicit newline.
func (b *Buffer) SetWrapped(row int, wrapped bool) {
	if row < 0 || row >= b.rows || b.wrapped[row] == wrapped {
		return
	}
	b.wrapped[row] = wrapped
	b.MarkDirty(row)
}

// Position identifies a cell location in the terminal grid (0-based).
type Position struct {
	Row int
	Col int
}

// Before returns true if this position comes before other in reading order (top-to-bottom, left-to-right).
func (p Position) Before(other Position) bool {
	if p.Row < other.Row {
		return true
	}
	return p.Row == other.Row && p.Col < other.Col
}
