package tideterm

// ScrollDisplay moves the viewport delta lines into scrollback (positive)
// or back toward the live screen (negative) and reports whether the offset
// changed. It turns off stay-at-bottom, so later output keeps the scrolled
// view in place. The alternate screen has no scrollback and never scrolls.
func (t *Terminal) ScrollDisplay(delta int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stayAtBottom = false
	return t.setDisplayOffset(t.displayOffset + delta)
}

// ScrollToBottom shows the live screen and keeps it shown as output
// arrives, until the next ScrollDisplay.
func (t *Terminal) ScrollToBottom() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stayAtBottom = true
	t.setDisplayOffset(0)
}

// DisplayOffset returns how many lines the viewport is scrolled into
// scrollback. Zero means the live screen.
func (t *Terminal) DisplayOffset() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.displayOffset
}

// StayAtBottom reports whether new output snaps the viewport back to the
// live screen.
func (t *Terminal) StayAtBottom() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stayAtBottom
}

// setDisplayOffset clamps offset to the available scrollback. Caller holds
// the lock.
func (t *Terminal) setDisplayOffset(offset int) bool {
	limit := 0
	if t.activeBuffer == t.primaryBuffer {
		limit = t.primaryBuffer.ScrollbackLen()
	}
	offset = clamp(offset, 0, limit)
	if offset == t.displayOffset {
		return false
	}
	t.displayOffset = offset
	return true
}

// followOutput adjusts the viewport after a chunk was applied; pushed is
// the number of lines that went to scrollback meanwhile. A scrolled view
// moves up with its content so it keeps showing the same lines.
func (t *Terminal) followOutput(pushed int) {
	switch {
	case t.stayAtBottom:
		t.displayOffset = 0
	case t.displayOffset > 0:
		t.setDisplayOffset(t.displayOffset + pushed)
	default:
		t.setDisplayOffset(t.displayOffset)
	}
}

// viewRow returns the cells shown at screen row, and the live buffer row
// they belong to or -1 for a scrollback line. Scrollback lines are fitted
// to the current width. Caller holds the lock.
func (t *Terminal) viewRow(row int) ([]Cell, int) {
	if row >= t.displayOffset {
		live := row - t.displayOffset
		return t.activeBuffer.cells[live], live
	}
	b := t.primaryBuffer
	line := b.ScrollbackLine(b.ScrollbackLen() - t.displayOffset + row)
	return fitRow(line, t.cols), -1
}

// fitRow pads or truncates line to cols cells. A wide character cut at the
// edge is blanked.
func fitRow(line []Cell, cols int) []Cell {
	if len(line) == cols {
		return line
	}
	row := newRow(cols)
	n := copy(row, line)
	if n == cols && row[n-1].IsWide() {
		row[n-1].Reset()
	}
	return row
}
