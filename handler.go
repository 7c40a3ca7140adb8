package tideterm

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidehq/tideterm/parser"
)

// apply runs one parser action against the grid. Every handler below
// expects t.mu to be held by Feed.
func (t *Terminal) apply(a *parser.Action) {
	switch a.Kind {
	case parser.ActionPrint:
		t.input(a.Rune)
	case parser.ActionExecute:
		t.execute(a.Byte)
	case parser.ActionCsiDispatch:
		t.csiDispatch(a)
	case parser.ActionEscDispatch:
		t.escDispatch(a)
	case parser.ActionOscDispatch:
		t.oscDispatch(a.Payload)
	case parser.ActionDcsDispatch:
		t.logger.Debug("ignoring device control string", "final", string(rune(a.Byte)))
	}
}

func (t *Terminal) execute(b byte) {
	switch b {
	case 0x07:
		t.outbox.bells++
	case 0x08:
		t.backspace()
	case 0x09:
		t.moveForwardTabs(1)
	case 0x0a, 0x0b, 0x0c:
		t.lineFeed()
	case 0x0d:
		t.carriageReturn()
	case 0x0e:
		t.activeCharset = 1
	case 0x0f:
		t.activeCharset = 0
	}
}

func (t *Terminal) csiDispatch(a *parser.Action) {
	switch a.Private {
	case 0:
	case '?':
		t.csiPrivate(a)
		return
	case '>':
		if a.Byte == 'c' && len(a.Intermediates) == 0 {
			t.respond("\x1b[>0;10;1c")
		}
		return
	default:
		t.logger.Debug("unsupported CSI sequence", "sequence", a.String())
		return
	}

	if len(a.Intermediates) > 0 {
		switch {
		case a.Byte == 'q' && a.Intermediates[0] == ' ':
			t.setCursorStyle(a.Param(0, 0))
		case a.Byte == 'p' && a.Intermediates[0] == '!':
			t.softReset()
		default:
			t.logger.Debug("unsupported CSI sequence", "sequence", a.String())
		}
		return
	}

	switch a.Byte {
	case '@':
		t.activeBuffer.InsertBlanks(t.cursor.Row, t.cursor.Col, a.Param(0, 1))
	case 'A':
		t.moveUp(a.Param(0, 1))
	case 'B', 'e':
		t.moveDown(a.Param(0, 1))
	case 'C', 'a':
		t.moveForward(a.Param(0, 1))
	case 'D':
		t.moveBackward(a.Param(0, 1))
	case 'E':
		t.moveDown(a.Param(0, 1))
		t.cursor.Col = 0
	case 'F':
		t.moveUp(a.Param(0, 1))
		t.cursor.Col = 0
	case 'G', '`':
		t.gotoCol(a.Param(0, 1) - 1)
	case 'H', 'f':
		t.gotoOrigin(a.Param(0, 1)-1, a.Param(1, 1)-1)
	case 'I':
		t.moveForwardTabs(a.Param(0, 1))
	case 'J':
		t.clearScreen(a.Param(0, 0))
	case 'K':
		t.clearLine(a.Param(0, 0))
	case 'L':
		t.insertLines(a.Param(0, 1))
	case 'M':
		t.deleteLines(a.Param(0, 1))
	case 'P':
		t.activeBuffer.DeleteChars(t.cursor.Row, t.cursor.Col, a.Param(0, 1))
		t.cursor.wrapPending = false
	case 'S':
		t.activeBuffer.ScrollUp(t.scrollTop, t.scrollBottom, a.Param(0, 1))
	case 'T':
		if len(a.Params) <= 1 {
			t.activeBuffer.ScrollDown(t.scrollTop, t.scrollBottom, a.Param(0, 1))
		}
	case 'X':
		t.activeBuffer.ClearRowRange(t.cursor.Row, t.cursor.Col, t.cursor.Col+a.Param(0, 1))
		t.cursor.wrapPending = false
	case 'Z':
		t.moveBackwardTabs(a.Param(0, 1))
	case 'b':
		t.repeat(a.Param(0, 1))
	case 'c':
		if a.Param(0, 0) == 0 {
			t.respond("\x1b[?62;22c")
		}
	case 'd':
		t.gotoLine(a.Param(0, 1) - 1)
	case 'g':
		t.clearTabs(a.Param(0, 0))
	case 'h', 'l':
		t.setAnsiModes(a, a.Byte == 'h')
	case 'm':
		t.sgr(a)
	case 'n':
		t.deviceStatus(a.Param(0, 0))
	case 'r':
		t.setScrollingRegion(a.Param(0, 1), a.Param(1, t.rows))
	case 's':
		t.saveCursor()
	case 'u':
		t.restoreCursor()
	case 't':
		t.windowOp(a)
	default:
		t.logger.Debug("unsupported CSI sequence", "sequence", a.String())
	}
}

func (t *Terminal) csiPrivate(a *parser.Action) {
	if len(a.Intermediates) > 0 {
		t.logger.Debug("unsupported CSI sequence", "sequence", a.String())
		return
	}
	switch a.Byte {
	case 'h', 'l':
		t.setDecModes(a, a.Byte == 'h')
	case 'J':
		t.clearScreen(a.Param(0, 0))
	case 'K':
		t.clearLine(a.Param(0, 0))
	default:
		t.logger.Debug("unsupported CSI sequence", "sequence", a.String())
	}
}

func (t *Terminal) escDispatch(a *parser.Action) {
	if len(a.Intermediates) > 0 {
		switch a.Intermediates[0] {
		case '(', ')', '*', '+':
			t.configureCharset(int(a.Intermediates[0]-'('), a.Byte)
		case '#':
			if a.Byte == '8' {
				t.decaln()
			}
		default:
			t.logger.Debug("unsupported ESC sequence", "sequence", a.String())
		}
		return
	}

	switch a.Byte {
	case '7':
		t.saveCursor()
	case '8':
		t.restoreCursor()
	case 'D':
		t.index()
		t.cursor.wrapPending = false
	case 'E':
		t.index()
		t.cursor.Col = 0
		t.cursor.wrapPending = false
	case 'M':
		t.reverseIndex()
	case 'H':
		t.activeBuffer.SetTabStop(t.cursor.Col)
	case 'c':
		t.resetState()
	case '=':
		t.modes |= ModeKeypadApplication
	case '>':
		t.modes &^= ModeKeypadApplication
	case '\\':
		// String terminator on its own.
	default:
		t.logger.Debug("unsupported ESC sequence", "sequence", a.String())
	}
}

func (t *Terminal) oscDispatch(payload []byte) {
	cmd, rest, _ := strings.Cut(string(payload), ";")

	switch cmd {
	case "0", "2":
		t.setTitle(rest)
	case "1":
		// Icon name only.
	case "7":
		t.workingDir = rest
	case "8":
		t.setHyperlink(rest)
	default:
		t.logger.Debug("unsupported OSC command", "command", cmd)
	}
}

// --- Printing ---

// input writes a character at the cursor, handling deferred wrap, wide
// characters, insert mode, and charset translation.
func (t *Terminal) input(r rune) {
	r = t.charsets[t.activeCharset].translate(r)

	width := runeWidth(r)
	if width == 0 {
		// Combining marks are not attached to the previous cell.
		return
	}

	buf := t.activeBuffer
	wrap := t.modes&ModeLineWrap != 0

	if t.cursor.wrapPending {
		t.cursor.wrapPending = false
		if wrap {
			t.wrapLine()
		}
	}

	if width == 2 && t.cursor.Col == t.cols-1 {
		if !wrap || t.cols < 2 {
			return
		}
		t.wrapLine()
	}

	row, col := t.cursor.Row, t.cursor.Col

	if t.modes&ModeInsert != 0 {
		buf.InsertBlanks(row, col, width)
	}

	buf.clearWideAt(row, col)
	if width == 2 {
		buf.clearWideAt(row, col+1)
	}

	line := buf.cells[row]
	line[col] = Cell{
		Char:           r,
		Fg:             t.template.Fg,
		Bg:             t.template.Bg,
		UnderlineColor: t.template.UnderlineColor,
		Flags:          t.template.Flags,
		Hyperlink:      t.hyperlink,
	}
	if width == 2 {
		line[col].Flags |= CellFlagWideChar
		line[col+1] = Cell{
			Fg:    t.template.Fg,
			Bg:    t.template.Bg,
			Flags: CellFlagWideCharSpacer,
		}
	}
	buf.MarkDirty(row)
	t.lastPrinted = r

	if col+width >= t.cols {
		t.cursor.Col = t.cols - 1
		t.cursor.wrapPending = wrap
		return
	}
	t.cursor.Col = col + width
}

// wrapLine marks the current row as soft-wrapped and moves to the start of
// the next one, scrolling if needed.
func (t *Terminal) wrapLine() {
	t.activeBuffer.SetWrapped(t.cursor.Row, true)
	t.cursor.Col = 0
	t.index()
}

// repeat prints the last printed character n more times (REP).
func (t *Terminal) repeat(n int) {
	if t.lastPrinted == 0 {
		return
	}
	if n > t.rows*t.cols {
		n = t.rows * t.cols
	}
	r := t.lastPrinted
	for i := 0; i < n; i++ {
		t.input(r)
	}
}

// --- Cursor movement ---

func (t *Terminal) backspace() {
	t.cursor.wrapPending = false
	if t.cursor.Col > 0 {
		t.cursor.Col--
	}
}

func (t *Terminal) carriageReturn() {
	t.cursor.Col = 0
	t.cursor.wrapPending = false
}

// lineFeed moves the cursor down one row. If ModeLineFeedNewLine is set, also moves to column 0.
// Clears the wrapped flag for the current line (indicates explicit newline).
func (t *Terminal) lineFeed() {
	t.activeBuffer.SetWrapped(t.cursor.Row, false)

	if t.modes&ModeLineFeedNewLine != 0 {
		t.cursor.Col = 0
	}
	t.cursor.wrapPending = false
	t.index()
}

// index moves the cursor down, scrolling the region when it sits on the
// bottom margin.
func (t *Terminal) index() {
	if t.cursor.Row == t.scrollBottom-1 {
		t.activeBuffer.ScrollUp(t.scrollTop, t.scrollBottom, 1)
	} else if t.cursor.Row < t.rows-1 {
		t.cursor.Row++
	}
}

// reverseIndex moves the cursor up one row. If at the top of the scroll region, scrolls down instead.
func (t *Terminal) reverseIndex() {
	if t.cursor.Row == t.scrollTop {
		t.activeBuffer.ScrollDown(t.scrollTop, t.scrollBottom, 1)
	} else if t.cursor.Row > 0 {
		t.cursor.Row--
	}
	t.cursor.wrapPending = false
}

// moveUp stops at the top margin when the cursor starts inside the region.
func (t *Terminal) moveUp(n int) {
	top := 0
	if t.cursor.Row >= t.scrollTop {
		top = t.scrollTop
	}
	t.cursor.Row = clamp(t.cursor.Row-n, top, t.rows-1)
	t.cursor.wrapPending = false
}

// moveDown stops at the bottom margin when the cursor starts inside the region.
func (t *Terminal) moveDown(n int) {
	bottom := t.rows - 1
	if t.cursor.Row < t.scrollBottom {
		bottom = t.scrollBottom - 1
	}
	t.cursor.Row = clamp(t.cursor.Row+n, 0, bottom)
	t.cursor.wrapPending = false
}

func (t *Terminal) moveForward(n int) {
	t.cursor.Col = clamp(t.cursor.Col+n, 0, t.cols-1)
	t.cursor.wrapPending = false
}

func (t *Terminal) moveBackward(n int) {
	t.cursor.Col = clamp(t.cursor.Col-n, 0, t.cols-1)
	t.cursor.wrapPending = false
}

func (t *Terminal) moveForwardTabs(n int) {
	for i := 0; i < n && t.cursor.Col < t.cols-1; i++ {
		t.cursor.Col = t.activeBuffer.NextTabStop(t.cursor.Col)
	}
	t.cursor.wrapPending = false
}

func (t *Terminal) moveBackwardTabs(n int) {
	for i := 0; i < n && t.cursor.Col > 0; i++ {
		t.cursor.Col = t.activeBuffer.PrevTabStop(t.cursor.Col)
	}
	t.cursor.wrapPending = false
}

// gotoOrigin moves to (row, col), relative to the scroll region in origin mode.
func (t *Terminal) gotoOrigin(row, col int) {
	t.gotoLine(row)
	t.gotoCol(col)
}

func (t *Terminal) gotoLine(row int) {
	if t.modes&ModeOrigin != 0 {
		t.cursor.Row = clamp(row+t.scrollTop, t.scrollTop, t.scrollBottom-1)
	} else {
		t.cursor.Row = clamp(row, 0, t.rows-1)
	}
	t.cursor.wrapPending = false
}

func (t *Terminal) gotoCol(col int) {
	t.cursor.Col = clamp(col, 0, t.cols-1)
	t.cursor.wrapPending = false
}

// --- Erasing and editing ---

// clearScreen implements ED: 0 below, 1 above, 2 all, 3 scrollback.
func (t *Terminal) clearScreen(mode int) {
	buf := t.activeBuffer
	switch mode {
	case 0:
		buf.ClearRowRange(t.cursor.Row, t.cursor.Col, t.cols)
		for row := t.cursor.Row + 1; row < t.rows; row++ {
			buf.ClearRow(row)
		}
	case 1:
		for row := 0; row < t.cursor.Row; row++ {
			buf.ClearRow(row)
		}
		buf.ClearRowRange(t.cursor.Row, 0, t.cursor.Col+1)
	case 2:
		buf.ClearAll()
	case 3:
		t.primaryBuffer.ClearScrollback()
	}
	t.cursor.wrapPending = false
}

// clearLine implements EL: 0 right of cursor, 1 left of cursor, 2 whole line.
func (t *Terminal) clearLine(mode int) {
	switch mode {
	case 0:
		t.activeBuffer.ClearRowRange(t.cursor.Row, t.cursor.Col, t.cols)
	case 1:
		t.activeBuffer.ClearRowRange(t.cursor.Row, 0, t.cursor.Col+1)
	case 2:
		t.activeBuffer.ClearRow(t.cursor.Row)
	}
	t.cursor.wrapPending = false
}

func (t *Terminal) clearTabs(mode int) {
	switch mode {
	case 0:
		t.activeBuffer.ClearTabStop(t.cursor.Col)
	case 3:
		t.activeBuffer.ClearAllTabStops()
	}
}

func (t *Terminal) insertLines(n int) {
	if t.cursor.Row >= t.scrollTop && t.cursor.Row < t.scrollBottom {
		t.activeBuffer.InsertLines(t.cursor.Row, n, t.scrollBottom)
		t.cursor.Col = 0
		t.cursor.wrapPending = false
	}
}

func (t *Terminal) deleteLines(n int) {
	if t.cursor.Row >= t.scrollTop && t.cursor.Row < t.scrollBottom {
		t.activeBuffer.DeleteLines(t.cursor.Row, n, t.scrollBottom)
		t.cursor.Col = 0
		t.cursor.wrapPending = false
	}
}

// decaln fills the screen with 'E' and resets margins and cursor.
func (t *Terminal) decaln() {
	t.activeBuffer.FillWithE()
	t.scrollTop = 0
	t.scrollBottom = t.rows
	t.cursor.Row = 0
	t.cursor.Col = 0
	t.cursor.wrapPending = false
}

// setScrollingRegion sets the scroll boundaries (1-based, converted to 0-based internally).
// Moves cursor to home position (top-left of region if origin mode, else absolute top-left).
// An invalid region is ignored.
func (t *Terminal) setScrollingRegion(top, bottom int) {
	if bottom > t.rows {
		bottom = t.rows
	}
	if top < 1 || top >= bottom {
		return
	}
	t.scrollTop = top - 1
	t.scrollBottom = bottom
	t.gotoOrigin(0, 0)
}

// --- Cursor save and restore ---

func (t *Terminal) screenIndex() int {
	if t.activeBuffer == t.alternateBuffer {
		return 1
	}
	return 0
}

// saveCursor saves cursor position, attributes, charset state, and origin mode for the active screen.
func (t *Terminal) saveCursor() {
	t.savedCursor[t.screenIndex()] = &SavedCursor{
		Row:          t.cursor.Row,
		Col:          t.cursor.Col,
		Attrs:        t.template,
		OriginMode:   t.modes&ModeOrigin != 0,
		CharsetIndex: t.activeCharset,
		Charsets:     t.charsets,
	}
}

// restoreCursor restores the state saved for the active screen, or homes
// the cursor with default attributes when nothing was saved.
func (t *Terminal) restoreCursor() {
	saved := t.savedCursor[t.screenIndex()]
	if saved == nil {
		saved = &SavedCursor{}
	}
	t.cursor.Row = clamp(saved.Row, 0, t.rows-1)
	t.cursor.Col = clamp(saved.Col, 0, t.cols-1)
	t.cursor.wrapPending = false
	t.template = saved.Attrs
	if saved.OriginMode {
		t.modes |= ModeOrigin
	} else {
		t.modes &^= ModeOrigin
	}
	t.activeCharset = saved.CharsetIndex
	t.charsets = saved.Charsets
}

// --- Modes ---

func (t *Terminal) setAnsiModes(a *parser.Action, set bool) {
	for _, p := range a.Params {
		switch p {
		case 4:
			t.setModeFlag(ModeInsert, set)
		case 20:
			t.setModeFlag(ModeLineFeedNewLine, set)
		default:
			t.logger.Debug("unsupported ANSI mode", "mode", p, "set", set)
		}
	}
}

func (t *Terminal) setDecModes(a *parser.Action, set bool) {
	for _, p := range a.Params {
		t.setDecMode(p, set)
	}
}

func (t *Terminal) setDecMode(mode int, set bool) {
	switch mode {
	case 1:
		t.setModeFlag(ModeCursorKeys, set)
	case 3:
		t.setModeFlag(ModeColumnMode, set)
	case 6:
		t.setModeFlag(ModeOrigin, set)
		t.gotoOrigin(0, 0)
	case 7:
		t.setModeFlag(ModeLineWrap, set)
		if !set {
			t.cursor.wrapPending = false
		}
	case 12:
		t.setModeFlag(ModeBlinkingCursor, set)
	case 25:
		t.setModeFlag(ModeShowCursor, set)
		t.cursor.Visible = set
	case 47, 1047:
		t.swapScreen(set)
	case 1048:
		if set {
			t.saveCursor()
		} else {
			t.restoreCursor()
		}
	case 1049:
		if set {
			if t.activeBuffer == t.alternateBuffer {
				return
			}
			t.saveCursor()
			t.swapScreen(true)
			t.alternateBuffer.ClearAll()
		} else {
			if t.activeBuffer == t.primaryBuffer {
				return
			}
			t.swapScreen(false)
			t.restoreCursor()
		}
	case 1000:
		t.setModeFlag(ModeReportMouseClicks, set)
	case 1002:
		t.setModeFlag(ModeReportCellMouseMotion, set)
	case 1003:
		t.setModeFlag(ModeReportAllMouseMotion, set)
	case 1004:
		t.setModeFlag(ModeReportFocusInOut, set)
	case 1005:
		t.setModeFlag(ModeUTF8Mouse, set)
	case 1006:
		t.setModeFlag(ModeSGRMouse, set)
	case 1007:
		t.setModeFlag(ModeAlternateScroll, set)
	case 2004:
		t.setModeFlag(ModeBracketedPaste, set)
	default:
		t.logger.Debug("unsupported DEC private mode", "mode", mode, "set", set)
	}
}

func (t *Terminal) setModeFlag(m TerminalMode, set bool) {
	if set {
		t.modes |= m
	} else {
		t.modes &^= m
	}
}

// swapScreen switches between primary and alternate buffers. Leaving the
// alternate screen discards its content.
func (t *Terminal) swapScreen(alternate bool) {
	if alternate {
		if t.activeBuffer == t.alternateBuffer {
			return
		}
		t.activeBuffer = t.alternateBuffer
		t.modes |= ModeAlternateScreen
	} else {
		if t.activeBuffer == t.primaryBuffer {
			return
		}
		t.alternateBuffer.ClearAll()
		t.activeBuffer = t.primaryBuffer
		t.modes &^= ModeAlternateScreen
	}
	t.activeBuffer.MarkAllDirty()
	t.cursor.wrapPending = false
	t.displayOffset = 0
}

// setCursorStyle implements DECSCUSR.
func (t *Terminal) setCursorStyle(n int) {
	switch n {
	case 0, 1:
		t.cursor.Style = CursorStyleBlinkingBlock
	case 2:
		t.cursor.Style = CursorStyleSteadyBlock
	case 3:
		t.cursor.Style = CursorStyleBlinkingUnderline
	case 4:
		t.cursor.Style = CursorStyleSteadyUnderline
	case 5:
		t.cursor.Style = CursorStyleBlinkingBar
	case 6:
		t.cursor.Style = CursorStyleSteadyBar
	}
}

func (t *Terminal) configureCharset(index int, final byte) {
	if final == '0' {
		t.charsets[index] = CharsetLineDrawing
	} else {
		t.charsets[index] = CharsetASCII
	}
}

// --- Reports ---

// deviceStatus answers DSR 5 (ready) and DSR 6 (cursor position, 1-based,
// relative to the region in origin mode).
func (t *Terminal) deviceStatus(n int) {
	switch n {
	case 5:
		t.respond("\x1b[0n")
	case 6:
		row := t.cursor.Row
		if t.modes&ModeOrigin != 0 {
			row -= t.scrollTop
		}
		t.respond("\x1b[" + strconv.Itoa(row+1) + ";" + strconv.Itoa(t.cursor.Col+1) + "R")
	default:
		t.logger.Debug("unsupported device status request", "request", n)
	}
}

// windowOp handles the XTWINOPS subset that makes sense without a window.
func (t *Terminal) windowOp(a *parser.Action) {
	switch a.Param(0, 0) {
	case 18:
		t.respond("\x1b[8;" + strconv.Itoa(t.rows) + ";" + strconv.Itoa(t.cols) + "t")
	case 22:
		t.titleStack = append(t.titleStack, t.title)
	case 23:
		if n := len(t.titleStack); n > 0 {
			title := t.titleStack[n-1]
			t.titleStack = t.titleStack[:n-1]
			t.setTitle(title)
		}
	default:
		t.logger.Debug("unsupported window operation", "op", a.Param(0, 0))
	}
}

// --- OSC state ---

// setTitle stores the title and queues a notification. Invalid UTF-8 is
// replaced rather than rejected.
func (t *Terminal) setTitle(title string) {
	if !utf8.ValidString(title) {
		title = strings.ToValidUTF8(title, "�")
	}
	t.title = title
	t.outbox.titles = append(t.outbox.titles, title)
}

// setHyperlink parses "params;uri" from OSC 8. An empty URI ends the link.
func (t *Terminal) setHyperlink(arg string) {
	params, uri, ok := strings.Cut(arg, ";")
	if !ok || uri == "" {
		t.hyperlink = nil
		return
	}
	link := &Hyperlink{URI: uri}
	for _, kv := range strings.Split(params, ":") {
		if id, found := strings.CutPrefix(kv, "id="); found {
			link.ID = id
		}
	}
	t.hyperlink = link
}

// --- Resets ---

// softReset implements DECSTR: modes and attributes go back to defaults
// without touching screen content.
func (t *Terminal) softReset() {
	t.template = NewCellTemplate()
	t.scrollTop = 0
	t.scrollBottom = t.rows
	t.modes &^= ModeInsert | ModeOrigin | ModeCursorKeys | ModeKeypadApplication
	t.modes |= ModeLineWrap | ModeShowCursor
	t.cursor.Visible = true
	t.cursor.wrapPending = false
	t.charsets = [4]Charset{}
	t.activeCharset = 0
	t.savedCursor = [2]*SavedCursor{}
}

// resetState implements RIS: both screens cleared, cursor home, modes and
// attributes restored. Scrollback and title survive.
func (t *Terminal) resetState() {
	t.swapScreen(false)
	t.primaryBuffer.ClearAll()
	t.alternateBuffer.ClearAll()
	for _, b := range []*Buffer{t.primaryBuffer, t.alternateBuffer} {
		b.ClearAllTabStops()
		for col := 0; col < t.cols; col += 8 {
			b.SetTabStop(col)
		}
	}

	t.cursor = NewCursor()
	t.savedCursor = [2]*SavedCursor{}
	t.template = NewCellTemplate()
	t.hyperlink = nil
	t.lastPrinted = 0
	t.scrollTop = 0
	t.scrollBottom = t.rows
	t.modes = ModeLineWrap | ModeShowCursor
	t.charsets = [4]Charset{}
	t.activeCharset = 0
	t.titleStack = nil
	t.displayOffset = 0
}
