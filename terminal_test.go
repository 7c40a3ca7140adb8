package tideterm

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestNewTerminal(t *testing.T) {
	term := New()

	if term.Rows() != 24 {
		t.Errorf("expected 24 rows, got %d", term.Rows())
	}
	if term.Cols() != 80 {
		t.Errorf("expected 80 cols, got %d", term.Cols())
	}
	if !term.HasMode(ModeLineWrap) || !term.HasMode(ModeShowCursor) {
		t.Error("expected line wrap and cursor visible by default")
	}
}

func TestTerminalWithSize(t *testing.T) {
	term := New(WithSize(40, 120))

	if term.Rows() != 40 {
		t.Errorf("expected 40 rows, got %d", term.Rows())
	}
	if term.Cols() != 120 {
		t.Errorf("expected 120 cols, got %d", term.Cols())
	}

	big := New(WithSize(100000, 100000))
	if rows, cols := big.Size(); rows != MaxRows || cols != MaxCols {
		t.Errorf("expected size clamped to %dx%d, got %dx%d", MaxRows, MaxCols, rows, cols)
	}
}

func TestTerminalWrite(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Hello")

	content := term.LineContent(0)
	if content != "Hello" {
		t.Errorf("expected 'Hello', got '%s'", content)
	}
}

func TestTerminalCursorPosition(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("ABC")

	row, col := term.CursorPos()
	if row != 0 || col != 3 {
		t.Errorf("expected cursor at (0, 3), got (%d, %d)", row, col)
	}
}

func TestTerminalNewline(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Line1\r\nLine2")

	if term.LineContent(0) != "Line1" {
		t.Errorf("expected 'Line1', got '%s'", term.LineContent(0))
	}
	if term.LineContent(1) != "Line2" {
		t.Errorf("expected 'Line2', got '%s'", term.LineContent(1))
	}
}

func TestTerminalBareLineFeedKeepsColumn(t *testing.T) {
	term := New(WithSize(5, 20))

	term.WriteString("ab\ncd")

	if got := term.LineContent(1); got != "  cd" {
		t.Errorf("expected '  cd', got %q", got)
	}

	term.WriteString("\x1b[20h\r\nx\ny")
	row, col := term.CursorPos()
	if row != 3 || col != 1 {
		t.Errorf("expected LNM to return to column 0, cursor at (3, 1), got (%d, %d)", row, col)
	}
}

func TestTerminalOverwrite(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("A\x1b[DB")

	cell, _ := term.Cell(0, 0)
	if cell.Char != 'B' {
		t.Errorf("expected 'B' at column 0, got '%c'", cell.Char)
	}
	if strings.ContainsRune(term.String(), 'A') {
		t.Errorf("expected 'A' to be overwritten, got %q", term.String())
	}
}

func TestTerminalRedForegroundScenario(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("\x1b[31mHello\x1b[0m\r\n")

	if got := term.LineContent(0); got != "Hello" {
		t.Fatalf("expected 'Hello', got %q", got)
	}
	for col := 0; col < 5; col++ {
		cell, _ := term.Cell(0, col)
		if cell.Fg != IndexedColor(1) {
			t.Errorf("col %d: expected red foreground, got %s", col, cell.Fg)
		}
		if !cell.Bg.IsDefault() {
			t.Errorf("col %d: expected default background, got %s", col, cell.Bg)
		}
		if cell.Flags != 0 {
			t.Errorf("col %d: expected no attributes, got %b", col, cell.Flags)
		}
	}
	if cell, _ := term.Cell(0, 5); !cell.IsBlank() {
		t.Errorf("expected blank cell after text, got %+v", cell)
	}
	row, col := term.CursorPos()
	if row != 1 || col != 0 {
		t.Errorf("expected cursor at (1, 0), got (%d, %d)", row, col)
	}
}

func TestTerminalClearScreen(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Hello")
	term.WriteString("\x1b[2J")

	if term.LineContent(0) != "" {
		t.Errorf("expected empty line after clear, got '%s'", term.LineContent(0))
	}
}

func TestTerminalEraseModes(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want []string
	}{
		{"ED below", "\x1b[2;3H\x1b[J", []string{"aaaaa", "bb", "", ""}},
		{"ED above", "\x1b[2;3H\x1b[1J", []string{"", "   bb", "ccccc", "ddddd"}},
		{"ED all", "\x1b[2J", []string{"", "", "", ""}},
		{"EL right", "\x1b[2;3H\x1b[K", []string{"aaaaa", "bb", "ccccc", "ddddd"}},
		{"EL left", "\x1b[2;3H\x1b[1K", []string{"aaaaa", "   bb", "ccccc", "ddddd"}},
		{"EL all", "\x1b[2;3H\x1b[2K", []string{"aaaaa", "", "ccccc", "ddddd"}},
		{"ECH", "\x1b[2;2H\x1b[2X", []string{"aaaaa", "b  bb", "ccccc", "ddddd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := New(WithSize(4, 5))
			term.WriteString("aaaaa\r\nbbbbb\r\nccccc\r\nddddd")
			term.WriteString(tt.seq)
			for row, want := range tt.want {
				if got := term.LineContent(row); got != want {
					t.Errorf("row %d: expected %q, got %q", row, want, got)
				}
			}
		})
	}
}

func TestTerminalEraseScrollback(t *testing.T) {
	term := New(WithSize(2, 10), WithScrollback(NewRingScrollback(100)))
	term.WriteString("1\r\n2\r\n3\r\n4")

	if term.ScrollbackLen() != 2 {
		t.Fatalf("expected 2 scrollback lines, got %d", term.ScrollbackLen())
	}
	term.WriteString("\x1b[3J")
	if term.ScrollbackLen() != 0 {
		t.Errorf("expected scrollback cleared, got %d", term.ScrollbackLen())
	}
	if term.LineContent(1) != "4" {
		t.Errorf("expected screen untouched, got %q", term.LineContent(1))
	}
}

func TestTerminalScrollback(t *testing.T) {
	storage := &testScrollback{lines: make([][]Cell, 0)}
	storage.SetMaxLines(100)

	term := New(WithSize(5, 80), WithScrollback(storage))

	for i := 0; i < 10; i++ {
		term.WriteString("Line\n")
	}

	if term.ScrollbackLen() < 5 {
		t.Errorf("expected at least 5 scrollback lines, got %d", term.ScrollbackLen())
	}
}

func TestTerminalScrollEviction(t *testing.T) {
	const rows, extra = 5, 3
	term := New(WithSize(rows, 20), WithScrollback(NewRingScrollback(100)))

	lines := make([]string, rows+extra)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	term.WriteString(strings.Join(lines, "\r\n"))

	if got := term.ScrollbackLen(); got != extra {
		t.Fatalf("expected %d scrollback lines, got %d", extra, got)
	}
	for i := 0; i < extra; i++ {
		if got := term.ScrollbackContent(i); got != lines[i] {
			t.Errorf("scrollback %d: expected %q, got %q", i, lines[i], got)
		}
	}
	for row := 0; row < rows; row++ {
		if got := term.LineContent(row); got != lines[extra+row] {
			t.Errorf("row %d: expected %q, got %q", row, lines[extra+row], got)
		}
	}
}

func TestTerminalScrollbackBounded(t *testing.T) {
	term := New(WithSize(2, 10), WithScrollback(NewRingScrollback(3)))
	for i := 0; i < 10; i++ {
		term.WriteString(fmt.Sprintf("%d\r\n", i))
	}

	if got := term.ScrollbackLen(); got != 3 {
		t.Fatalf("expected 3 scrollback lines, got %d", got)
	}
	if got := term.ScrollbackContent(0); got != "6" {
		t.Errorf("expected oldest kept line '6', got %q", got)
	}
	if got := term.ScrollbackContent(2); got != "8" {
		t.Errorf("expected newest line '8', got %q", got)
	}
}

func TestTerminalScrollbackLineIsCopy(t *testing.T) {
	term := New(WithSize(1, 10), WithScrollback(NewRingScrollback(10)))
	term.WriteString("abc\r\n")

	line := term.ScrollbackLine(0)
	if line == nil {
		t.Fatal("expected scrollback line")
	}
	line[0].Char = 'z'
	if got := term.ScrollbackContent(0); got != "abc" {
		t.Errorf("expected stored line unchanged, got %q", got)
	}
}

func TestTerminalString(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Line1\r\nLine2\r\nLine3")

	content := term.String()
	expected := "Line1\nLine2\nLine3"
	if content != expected {
		t.Errorf("expected '%s', got '%s'", expected, content)
	}
}

func TestTerminalWideCharacter(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("中a")

	cell, ok := term.Cell(0, 0)
	if !ok {
		t.Fatal("expected cell at (0,0)")
	}
	if cell.Char != '中' {
		t.Errorf("expected '中', got '%c'", cell.Char)
	}
	if !cell.IsWide() {
		t.Error("expected cell to be marked as wide")
	}

	spacer, _ := term.Cell(0, 1)
	if !spacer.IsWideSpacer() {
		t.Error("expected spacer cell to be marked as spacer")
	}
	if spacer.Char != 0 {
		t.Errorf("expected spacer to carry no glyph, got %q", spacer.Char)
	}

	next, _ := term.Cell(0, 2)
	if next.Char != 'a' {
		t.Errorf("expected 'a' at column 2, got '%c'", next.Char)
	}
	if _, col := term.CursorPos(); col != 3 {
		t.Errorf("expected cursor at col 3, got %d", col)
	}
	if got := term.LineContent(0); got != "中a" {
		t.Errorf("expected '中a', got %q", got)
	}
}

func TestTerminalWideCharacterAtLastColumnWraps(t *testing.T) {
	term := New(WithSize(3, 5))

	term.WriteString("abcd中")

	if got := term.LineContent(0); got != "abcd" {
		t.Errorf("expected 'abcd' on row 0, got %q", got)
	}
	if got := term.LineContent(1); got != "中" {
		t.Errorf("expected wide char wrapped to row 1, got %q", got)
	}
	if !term.IsWrapped(0) {
		t.Error("expected row 0 to be soft-wrapped")
	}
}

func TestTerminalOverwriteHalfOfWide(t *testing.T) {
	term := New(WithSize(3, 10))

	term.WriteString("中\x1b[1;2Hx")

	lead, _ := term.Cell(0, 0)
	if lead.IsWide() || lead.Char != ' ' {
		t.Errorf("expected orphaned lead to be cleared, got %+v", lead)
	}
	if got := term.LineContent(0); got != " x" {
		t.Errorf("expected ' x', got %q", got)
	}
}

func TestTerminalCombiningMarkDropped(t *testing.T) {
	term := New(WithSize(3, 10))

	term.WriteString("e\u0301x")

	if got := term.LineContent(0); got != "ex" {
		t.Errorf("expected 'ex', got %q", got)
	}
}

// TestTerminalSplitFeed checks that every split point of a mixed stream
// produces the same grid as a single Feed.
func TestTerminalSplitFeed(t *testing.T) {
	input := []byte("\x1b[1;31mé中\x1b[0m\x1b[3;4Hx\x1b]0;t\x07\x1b[38;5;200my")

	whole := New(WithSize(5, 20))
	whole.Feed(input)
	want := gridDump(whole)

	for i := 0; i <= len(input); i++ {
		term := New(WithSize(5, 20))
		term.Feed(input[:i])
		term.Feed(input[i:])
		if got := gridDump(term); got != want {
			t.Fatalf("split at %d: grid mismatch\nexpected:\n%s\ngot:\n%s", i, want, got)
		}
	}
}

func gridDump(term *Terminal) string {
	var b strings.Builder
	rows, cols := term.Size()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c, _ := term.Cell(row, col)
			fmt.Fprintf(&b, "%q/%s/%s/%d ", c.Char, c.Fg, c.Bg, c.Flags)
		}
		b.WriteByte('\n')
	}
	r, c := term.CursorPos()
	fmt.Fprintf(&b, "cursor %d,%d title %q", r, c, term.Title())
	return b.String()
}

func TestTerminalDeferredWrap(t *testing.T) {
	term := New(WithSize(3, 5))

	term.WriteString("abcde")

	row, col := term.CursorPos()
	if row != 0 || col != 4 {
		t.Errorf("expected cursor to stay at (0, 4), got (%d, %d)", row, col)
	}
	if term.IsWrapped(0) {
		t.Error("expected no wrap before the next character")
	}

	term.WriteString("f")

	row, col = term.CursorPos()
	if row != 1 || col != 1 {
		t.Errorf("expected cursor at (1, 1), got (%d, %d)", row, col)
	}
	if !term.IsWrapped(0) {
		t.Error("expected row 0 to be soft-wrapped")
	}
}

func TestTerminalDeferredWrapCancelledByCR(t *testing.T) {
	term := New(WithSize(3, 5))

	term.WriteString("abcde\r\nx")

	if term.IsWrapped(0) {
		t.Error("expected explicit newline not to mark wrap")
	}
	if got := term.LineContent(1); got != "x" {
		t.Errorf("expected 'x' on row 1, got %q", got)
	}
}

func TestTerminalBackspaceDuringPendingWrap(t *testing.T) {
	term := New(WithSize(3, 5))

	term.WriteString("abcde\bX")

	if got := term.LineContent(0); got != "abcXe" {
		t.Errorf("expected 'abcXe', got %q", got)
	}
}

func TestTerminalAutoWrapOff(t *testing.T) {
	term := New(WithSize(3, 5))

	term.WriteString("\x1b[?7labcdefg")

	if got := term.LineContent(0); got != "abcdg" {
		t.Errorf("expected 'abcdg', got %q", got)
	}
	if row, _ := term.CursorPos(); row != 0 {
		t.Errorf("expected cursor to stay on row 0, got %d", row)
	}
}

func TestTerminalWrappedLineTracking(t *testing.T) {
	term := New(WithSize(5, 10))

	if term.IsWrapped(0) {
		t.Error("expected line 0 not wrapped initially")
	}

	term.WriteString("1234567890ABC")

	if !term.IsWrapped(0) {
		t.Error("expected line 0 to be wrapped after overflow")
	}
	if term.IsWrapped(1) {
		t.Error("expected line 1 not wrapped")
	}
}

func TestTerminalWrappedLineClearedOnNewline(t *testing.T) {
	term := New(WithSize(5, 10))

	term.WriteString("1234567890ABC")

	if !term.IsWrapped(0) {
		t.Error("expected line 0 to be wrapped")
	}

	term.WriteString("\n")

	if term.IsWrapped(1) {
		t.Error("expected line 1 not wrapped after explicit newline")
	}
}

func TestTerminalCursorMovement(t *testing.T) {
	tests := []struct {
		seq      string
		row, col int
	}{
		{"\x1b[5;10H", 4, 9},
		{"\x1b[H", 0, 0},
		{"\x1b[99;999H", 9, 19},
		{"\x1b[5;5H\x1b[2A", 2, 4},
		{"\x1b[5;5H\x1b[2B", 6, 4},
		{"\x1b[5;5H\x1b[3C", 4, 7},
		{"\x1b[5;5H\x1b[3D", 4, 1},
		{"\x1b[5;5H\x1b[2E", 6, 0},
		{"\x1b[5;5H\x1b[2F", 2, 0},
		{"\x1b[5;5H\x1b[12G", 4, 11},
		{"\x1b[5;5H\x1b[8d", 7, 4},
		{"\x1b[A", 0, 0},
		{"a\tb", 0, 9},
		{"\x1b[2I", 0, 16},
		{"\x1b[1;18H\x1b[Z", 0, 16},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.seq), func(t *testing.T) {
			term := New(WithSize(10, 20))
			term.WriteString(tt.seq)
			row, col := term.CursorPos()
			if row != tt.row || col != tt.col {
				t.Errorf("expected (%d, %d), got (%d, %d)", tt.row, tt.col, row, col)
			}
		})
	}
}

func TestTerminalInsertDeleteChars(t *testing.T) {
	term := New(WithSize(3, 10))

	term.WriteString("abcdef\x1b[1;2H\x1b[2P")
	if got := term.LineContent(0); got != "adef" {
		t.Errorf("expected 'adef' after DCH, got %q", got)
	}

	term.WriteString("\x1b[2@")
	if got := term.LineContent(0); got != "a  def" {
		t.Errorf("expected 'a  def' after ICH, got %q", got)
	}
}

func TestTerminalInsertMode(t *testing.T) {
	term := New(WithSize(3, 10))

	term.WriteString("abc\x1b[1;1H\x1b[4hX\x1b[4lY")

	if got := term.LineContent(0); got != "XYbc" {
		t.Errorf("expected 'XYbc', got %q", got)
	}
}

func TestTerminalInsertDeleteLines(t *testing.T) {
	term := New(WithSize(4, 5))
	term.WriteString("a\r\nb\r\nc\r\nd")

	term.WriteString("\x1b[2;1H\x1b[L")
	want := []string{"a", "", "b", "c"}
	for row, w := range want {
		if got := term.LineContent(row); got != w {
			t.Errorf("after IL row %d: expected %q, got %q", row, w, got)
		}
	}

	term.WriteString("\x1b[2M")
	want = []string{"a", "c", "", ""}
	for row, w := range want {
		if got := term.LineContent(row); got != w {
			t.Errorf("after DL row %d: expected %q, got %q", row, w, got)
		}
	}
}

func TestTerminalScrollRegion(t *testing.T) {
	term := New(WithSize(5, 10), WithScrollback(NewRingScrollback(10)))
	term.WriteString("0\r\n1\r\n2\r\n3\r\n4")

	term.WriteString("\x1b[2;4r")
	if top, bottom := term.ScrollRegion(); top != 1 || bottom != 4 {
		t.Errorf("expected region [1, 4), got [%d, %d)", top, bottom)
	}
	if row, col := term.CursorPos(); row != 0 || col != 0 {
		t.Errorf("expected cursor homed, got (%d, %d)", row, col)
	}

	term.WriteString("\x1b[4;1H\nx")

	want := []string{"0", "2", "3", "x", "4"}
	for row, w := range want {
		if got := term.LineContent(row); got != w {
			t.Errorf("row %d: expected %q, got %q", row, w, got)
		}
	}
	if term.ScrollbackLen() != 0 {
		t.Errorf("expected partial region scroll to skip scrollback, got %d", term.ScrollbackLen())
	}
}

func TestTerminalScrollUpDown(t *testing.T) {
	term := New(WithSize(3, 5))
	term.WriteString("a\r\nb\r\nc")

	term.WriteString("\x1b[S")
	if got := term.String(); got != "b\nc" {
		t.Errorf("expected 'b\\nc' after SU, got %q", got)
	}

	term.WriteString("\x1b[2T")
	if got := term.String(); got != "\n\nb" {
		t.Errorf("expected '\\n\\nb' after SD, got %q", got)
	}
}

func TestTerminalReverseIndexScrolls(t *testing.T) {
	term := New(WithSize(3, 5))
	term.WriteString("a\r\nb\r\nc\x1b[H\x1bM")

	want := []string{"", "a", "b"}
	for row, w := range want {
		if got := term.LineContent(row); got != w {
			t.Errorf("row %d: expected %q, got %q", row, w, got)
		}
	}
}

func TestTerminalOriginMode(t *testing.T) {
	var buf bytes.Buffer
	term := New(WithSize(10, 20), WithResponse(&buf))

	term.WriteString("\x1b[5;8r\x1b[?6h\x1b[1;1H")
	if row, _ := term.CursorPos(); row != 4 {
		t.Errorf("expected origin at row 4, got %d", row)
	}

	term.WriteString("\x1b[20;1H")
	if row, _ := term.CursorPos(); row != 7 {
		t.Errorf("expected cursor clamped to region bottom 7, got %d", row)
	}

	term.WriteString("\x1b[1;3H\x1b[6n")
	if got := buf.String(); got != "\x1b[1;3R" {
		t.Errorf("expected origin-relative report, got %q", got)
	}
}

func TestTerminalSaveRestoreCursor(t *testing.T) {
	term := New(WithSize(10, 20))

	term.WriteString("\x1b[5;5H\x1b[1m\x1b7\x1b[0m\x1b[1;1H\x1b8X")

	cell, _ := term.Cell(4, 4)
	if cell.Char != 'X' || !cell.HasFlag(CellFlagBold) {
		t.Errorf("expected bold 'X' at restored position, got %+v", cell)
	}

	term.WriteString("\x1b[2;2H\x1b[s\x1b[9;9H\x1b[u")
	if row, col := term.CursorPos(); row != 1 || col != 1 {
		t.Errorf("expected (1, 1) after CSI u, got (%d, %d)", row, col)
	}
}

func TestTerminalRestoreWithoutSave(t *testing.T) {
	term := New(WithSize(10, 20))

	term.WriteString("\x1b[5;5H\x1b8")

	if row, col := term.CursorPos(); row != 0 || col != 0 {
		t.Errorf("expected cursor homed, got (%d, %d)", row, col)
	}
}

func TestTerminalAlternateScreen(t *testing.T) {
	term := New(WithSize(24, 80), WithScrollback(NewRingScrollback(100)))

	term.WriteString("Main screen\x1b[1;5H")

	if term.IsAlternateScreen() {
		t.Error("expected primary screen")
	}

	term.WriteString("\x1b[?1049h")

	if !term.IsAlternateScreen() {
		t.Error("expected alternate screen")
	}
	if !term.HasMode(ModeAlternateScreen) {
		t.Error("expected alternate screen mode flag")
	}
	if term.LineContent(0) != "" {
		t.Error("expected alternate screen to be clear")
	}

	term.WriteString("Alt screen")
	for i := 0; i < 50; i++ {
		term.WriteString("\r\nscroll")
	}
	if term.ScrollbackLen() != 0 {
		t.Errorf("expected alternate screen not to add scrollback, got %d", term.ScrollbackLen())
	}

	term.WriteString("\x1b[?1049l")

	if term.IsAlternateScreen() {
		t.Error("expected primary screen after switch back")
	}
	if term.LineContent(0) != "Main screen" {
		t.Errorf("expected 'Main screen', got '%s'", term.LineContent(0))
	}
	if row, col := term.CursorPos(); row != 0 || col != 4 {
		t.Errorf("expected cursor restored to (0, 4), got (%d, %d)", row, col)
	}

	term.WriteString("\x1b[?1049h")
	if term.LineContent(0) != "" {
		t.Error("expected alternate screen cleared on re-entry")
	}
}

func TestTerminalAlternateScreen47(t *testing.T) {
	term := New(WithSize(5, 10))
	term.WriteString("main\x1b[?47halt\x1b[?47l")

	if got := term.LineContent(0); got != "main" {
		t.Errorf("expected primary content, got %q", got)
	}
}

func TestTerminalCursorVisibilityAndStyle(t *testing.T) {
	term := New()

	term.WriteString("\x1b[?25l")
	if term.CursorVisible() {
		t.Error("expected cursor hidden")
	}
	term.WriteString("\x1b[?25h")
	if !term.CursorVisible() {
		t.Error("expected cursor visible")
	}

	term.WriteString("\x1b[6 q")
	if got := term.CursorStyle(); got != CursorStyleSteadyBar {
		t.Errorf("expected steady bar, got %v", got)
	}
	term.WriteString("\x1b[0 q")
	if got := term.CursorStyle(); got != CursorStyleBlinkingBlock {
		t.Errorf("expected blinking block, got %v", got)
	}
}

func TestTerminalModes(t *testing.T) {
	term := New()

	term.WriteString("\x1b[?1h\x1b[?2004h\x1b[?1000h\x1b[?1006h\x1b=")
	for _, m := range []TerminalMode{ModeCursorKeys, ModeBracketedPaste, ModeReportMouseClicks, ModeSGRMouse, ModeKeypadApplication} {
		if !term.HasMode(m) {
			t.Errorf("expected mode %b set", m)
		}
	}

	term.WriteString("\x1b[?1l\x1b[?2004l\x1b>")
	for _, m := range []TerminalMode{ModeCursorKeys, ModeBracketedPaste, ModeKeypadApplication} {
		if term.HasMode(m) {
			t.Errorf("expected mode %b cleared", m)
		}
	}
}

func TestTerminalCharset(t *testing.T) {
	term := New()

	term.WriteString("\x1b(0qx\x1b(Bq")

	if got := term.LineContent(0); got != "─│q" {
		t.Errorf("expected line drawing then ASCII, got %q", got)
	}

	term.WriteString("\r\n\x1b)0\x0eq\x0fq")
	if got := term.LineContent(1); got != "─q" {
		t.Errorf("expected G1 shift-out, got %q", got)
	}
}

func TestTerminalRepeat(t *testing.T) {
	term := New()
	term.WriteString("a\x1b[3b")

	if got := term.LineContent(0); got != "aaaa" {
		t.Errorf("expected 'aaaa', got %q", got)
	}
}

func TestTerminalDECALN(t *testing.T) {
	term := New(WithSize(2, 3))
	term.WriteString("\x1b#8")

	if got := term.String(); got != "EEE\nEEE" {
		t.Errorf("expected screen of E, got %q", got)
	}
}

func TestTerminalTitle(t *testing.T) {
	titles := &testTitle{}
	term := New(WithSize(24, 80), WithTitle(titles))

	term.WriteString("\x1b]0;My Title\x07")

	if term.Title() != "My Title" {
		t.Errorf("expected 'My Title', got '%s'", term.Title())
	}
	if len(titles.got) != 1 || titles.got[0] != "My Title" {
		t.Errorf("expected provider to see 'My Title', got %v", titles.got)
	}

	term.WriteString("\x1b]2;Other\x1b\\")
	if term.Title() != "Other" {
		t.Errorf("expected 'Other', got '%s'", term.Title())
	}

	term.WriteString("\x1b]1;icon\x07")
	if term.Title() != "Other" {
		t.Errorf("expected icon name to leave title alone, got '%s'", term.Title())
	}
}

func TestTerminalTitleStack(t *testing.T) {
	term := New()

	term.WriteString("\x1b]0;first\x07\x1b[22t\x1b]0;second\x07")
	if term.Title() != "second" {
		t.Fatalf("expected 'second', got %q", term.Title())
	}
	term.WriteString("\x1b[23t")
	if term.Title() != "first" {
		t.Errorf("expected popped title 'first', got %q", term.Title())
	}
}

func TestTerminalTitleInvalidUTF8(t *testing.T) {
	term := New()
	term.Feed([]byte("\x1b]0;bad\xffname\x07"))

	if got := term.Title(); got != "bad�name" {
		t.Errorf("expected replacement character, got %q", got)
	}
}

type testTitle struct {
	got []string
}

func (p *testTitle) SetTitle(title string) {
	p.got = append(p.got, title)
}

type testBell struct {
	rings int
}

func (b *testBell) Ring() { b.rings++ }

func TestTerminalBell(t *testing.T) {
	bell := &testBell{}
	term := New(WithBell(bell))

	term.WriteString("a\x07b\x07")

	if bell.rings != 2 {
		t.Errorf("expected 2 rings, got %d", bell.rings)
	}
	if got := term.LineContent(0); got != "ab" {
		t.Errorf("expected bell to print nothing, got %q", got)
	}
}

// reentrantTitle reads from the terminal inside the callback, which would
// deadlock if providers ran under the grid lock.
type reentrantTitle struct {
	term *Terminal
	seen string
}

func (p *reentrantTitle) SetTitle(title string) {
	p.seen = p.term.Title() + "|" + p.term.LineContent(0)
}

func TestTerminalProviderMayCallBack(t *testing.T) {
	p := &reentrantTitle{}
	term := New(WithTitle(p))
	p.term = term

	term.WriteString("hi\x1b]0;x\x07")

	if p.seen != "x|hi" {
		t.Errorf("expected 'x|hi', got %q", p.seen)
	}
}

func TestTerminalHyperlink(t *testing.T) {
	term := New()

	term.WriteString("\x1b]8;id=abc;http://example.com\x1b\\link\x1b]8;;\x1b\\ no")

	for col := 0; col < 4; col++ {
		cell, _ := term.Cell(0, col)
		if cell.Hyperlink == nil {
			t.Fatalf("col %d: expected hyperlink", col)
		}
		if cell.Hyperlink.URI != "http://example.com" || cell.Hyperlink.ID != "abc" {
			t.Errorf("col %d: unexpected link %+v", col, cell.Hyperlink)
		}
	}
	if cell, _ := term.Cell(0, 5); cell.Hyperlink != nil {
		t.Error("expected link to end")
	}
}

func TestTerminalResponses(t *testing.T) {
	tests := []struct {
		seq  string
		want string
	}{
		{"abc\x1b[6n", "\x1b[1;4R"},
		{"\x1b[5n", "\x1b[0n"},
		{"\x1b[c", "\x1b[?62;22c"},
		{"\x1b[0c", "\x1b[?62;22c"},
		{"\x1b[>c", "\x1b[>0;10;1c"},
		{"\x1b[18t", "\x1b[8;24;80t"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.seq), func(t *testing.T) {
			var buf bytes.Buffer
			term := New(WithResponse(&buf))
			term.WriteString(tt.seq)
			if got := buf.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTerminalResize(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("Hello")
	if !term.Resize(10, 40) {
		t.Error("expected resize to report a change")
	}

	if term.Rows() != 10 || term.Cols() != 40 {
		t.Errorf("expected size 10x40, got %dx%d", term.Rows(), term.Cols())
	}
	if term.LineContent(0) != "Hello" {
		t.Errorf("expected content preserved after resize, got '%s'", term.LineContent(0))
	}
	if term.ScrollbackLen() != 0 {
		t.Errorf("expected no scrollback when content fits, got %d", term.ScrollbackLen())
	}
}

func TestTerminalResizeGrowColsKeepsPositions(t *testing.T) {
	term := New(WithSize(5, 10))
	term.WriteString("\x1b[31mab\x1b[0m\x1b[3;7Hxyz")
	before := make(map[[2]int]Cell)
	for row := 0; row < 5; row++ {
		for col := 0; col < 10; col++ {
			before[[2]int{row, col}], _ = term.Cell(row, col)
		}
	}

	term.Resize(5, 15)

	for pos, want := range before {
		got, _ := term.Cell(pos[0], pos[1])
		if !got.Equal(&want) {
			t.Errorf("cell %v: expected %+v, got %+v", pos, want, got)
		}
	}
}

func TestTerminalResizeShrinkRowsPushesScrollback(t *testing.T) {
	term := New(WithSize(5, 10), WithScrollback(NewRingScrollback(100)))
	term.WriteString("a\r\nb\r\nc\r\nd\r\ne")

	term.Resize(3, 10)

	if got := term.ScrollbackLen(); got != 2 {
		t.Fatalf("expected 2 lines pushed to scrollback, got %d", got)
	}
	if term.ScrollbackContent(0) != "a" || term.ScrollbackContent(1) != "b" {
		t.Errorf("expected 'a','b' in scrollback, got %q,%q", term.ScrollbackContent(0), term.ScrollbackContent(1))
	}
	if got := term.String(); got != "c\nd\ne" {
		t.Errorf("expected 'c\\nd\\ne' visible, got %q", got)
	}
	if row, col := term.CursorPos(); row != 2 || col != 1 {
		t.Errorf("expected cursor to follow content to (2, 1), got (%d, %d)", row, col)
	}
}

func TestTerminalResizeShrinkColsTruncates(t *testing.T) {
	term := New(WithSize(3, 10))
	term.WriteString("0123456789abc")

	term.Resize(3, 5)

	if got := term.LineContent(0); got != "01234" {
		t.Errorf("expected truncated '01234', got %q", got)
	}
	if got := term.LineContent(1); got != "abc" {
		t.Errorf("expected 'abc' on row 1, got %q", got)
	}
}

func TestTerminalResizeGeneration(t *testing.T) {
	term := New(WithSize(24, 80))
	gen := term.Generation()

	if term.Resize(24, 80) {
		t.Error("expected identical size to be a no-op")
	}
	if term.Generation() != gen {
		t.Error("expected generation unchanged by no-op resize")
	}

	term.Resize(30, 90)
	term.Resize(31, 90)
	if got := term.Generation(); got != gen+2 {
		t.Errorf("expected generation %d, got %d", gen+2, got)
	}

	term.Resize(10000, 10000)
	if rows, cols := term.Size(); rows != MaxRows || cols != MaxCols {
		t.Errorf("expected clamp to %dx%d, got %dx%d", MaxRows, MaxCols, rows, cols)
	}
}

func TestResizeInvalidDimensions(t *testing.T) {
	term := New(WithSize(24, 80))

	for _, size := range [][2]int{{0, 0}, {-10, -20}, {0, 100}, {50, 0}} {
		if term.Resize(size[0], size[1]) {
			t.Errorf("Resize(%d, %d) should be ignored", size[0], size[1])
		}
		if term.Rows() != 24 || term.Cols() != 80 {
			t.Errorf("Resize(%d, %d) should be ignored, got %dx%d", size[0], size[1], term.Rows(), term.Cols())
		}
	}

	term.Resize(30, 100)
	if term.Rows() != 30 || term.Cols() != 100 {
		t.Errorf("Resize(30, 100) should work, got %dx%d", term.Rows(), term.Cols())
	}
}

func TestResizeCursorBounds(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString(strings.Repeat("A", 80))
	term.WriteString("\r\n")
	term.WriteString(strings.Repeat("B", 80))

	term.Resize(10, 40)

	row, col := term.CursorPos()
	if row < 0 || row >= 10 {
		t.Errorf("cursor row out of bounds after resize: %d (expected 0-9)", row)
	}
	if col < 0 || col >= 40 {
		t.Errorf("cursor col out of bounds after resize: %d (expected 0-39)", col)
	}
}

func TestResizeOnAlternateScreenKeepsPrimary(t *testing.T) {
	term := New(WithSize(5, 10), WithScrollback(NewRingScrollback(100)))
	term.WriteString("a\r\nb\r\nc\r\nd\r\ne")
	term.WriteString("\x1b[?1049h\x1b[H")

	term.Resize(3, 10)
	term.WriteString("\x1b[?1049l")

	if got := term.String(); got != "c\nd\ne" {
		t.Errorf("expected primary shifted with saved cursor, got %q", got)
	}
	if row, _ := term.CursorPos(); row != 2 {
		t.Errorf("expected restored cursor on row 2, got %d", row)
	}
}

func TestTerminalSoftReset(t *testing.T) {
	term := New(WithSize(10, 10))
	term.WriteString("keep\x1b[1m\x1b[4h\x1b[?25l\x1b[3;5r\x1b[!p")

	if term.HasMode(ModeInsert) {
		t.Error("expected insert mode cleared")
	}
	if !term.CursorVisible() {
		t.Error("expected cursor visible")
	}
	if top, bottom := term.ScrollRegion(); top != 0 || bottom != 10 {
		t.Errorf("expected full region, got [%d, %d)", top, bottom)
	}
	if got := term.LineContent(0); got != "keep" {
		t.Errorf("expected content kept, got %q", got)
	}
}

func TestTerminalFullReset(t *testing.T) {
	term := New(WithSize(5, 10), WithScrollback(NewRingScrollback(10)))
	term.WriteString("\x1b]0;title\x07a\r\nb\r\nc\r\nd\r\ne\r\nf\x1b[31m\x1b[?25l\x1bc")

	if term.String() != "" {
		t.Errorf("expected screen cleared, got %q", term.String())
	}
	if row, col := term.CursorPos(); row != 0 || col != 0 {
		t.Errorf("expected cursor home, got (%d, %d)", row, col)
	}
	if !term.CursorVisible() {
		t.Error("expected cursor visible after reset")
	}
	if term.Title() != "title" {
		t.Errorf("expected title kept, got %q", term.Title())
	}
	if term.ScrollbackLen() == 0 {
		t.Error("expected scrollback kept")
	}

	term.WriteString("x")
	if cell, _ := term.Cell(0, 0); !cell.Fg.IsDefault() {
		t.Error("expected attributes reset")
	}
}

func TestTerminalMalformedInputRecovers(t *testing.T) {
	term := New(WithSize(3, 20))

	term.Feed([]byte("\x1b[999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999;999m"))
	term.Feed([]byte("\x1b[?\x1b]\xff\xfe\x1bP\x18ok"))

	if got := term.LineContent(0); !strings.HasSuffix(got, "ok") {
		t.Errorf("expected output to continue after garbage, got %q", got)
	}
}

func TestTerminalConcurrentFeedAndSync(t *testing.T) {
	term := New(WithSize(24, 80), WithResponse(&syncWriter{}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			term.WriteString(fmt.Sprintf("\x1b[31mline %d\x1b[0m\r\n\x1b[6n", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			term.Sync()
			term.Snapshot(SnapshotDetailStyled)
		}
	}()
	wg.Wait()

	diff := term.Sync()
	if row, _ := term.CursorPos(); diff.Cursor.Row != row {
		t.Errorf("expected cursor row %d, got %d", row, diff.Cursor.Row)
	}
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestCustomScrollbackProvider(t *testing.T) {
	storage := &testScrollback{
		lines: make([][]Cell, 0),
	}
	storage.SetMaxLines(100)

	term := New(
		WithSize(3, 80),
		WithScrollback(storage),
	)

	for i := 0; i < 10; i++ {
		term.WriteString("Line\n")
	}

	if storage.pushCount == 0 {
		t.Error("expected custom storage to receive pushed lines")
	}
}

// testScrollback is a test implementation of ScrollbackProvider
type testScrollback struct {
	lines     [][]Cell
	maxLines  int
	pushCount int
}

func (s *testScrollback) Push(line []Cell) {
	s.pushCount++
	lineCopy := make([]Cell, len(line))
	copy(lineCopy, line)
	s.lines = append(s.lines, lineCopy)
	if s.maxLines > 0 && len(s.lines) > s.maxLines {
		s.lines = s.lines[1:]
	}
}

func (s *testScrollback) Len() int {
	return len(s.lines)
}

func (s *testScrollback) Line(index int) []Cell {
	if index < 0 || index >= len(s.lines) {
		return nil
	}
	return s.lines[index]
}

func (s *testScrollback) Clear() {
	s.lines = make([][]Cell, 0)
}

func (s *testScrollback) SetMaxLines(max int) {
	s.maxLines = max
}

func (s *testScrollback) MaxLines() int {
	return s.maxLines
}

// --- Recording Tests ---

func TestTerminalRecording(t *testing.T) {
	rec := NewMemoryRecording()
	term := New(WithRecording(rec))

	term.WriteString("Hello")
	term.WriteString(" World")

	recorded := string(rec.Data())
	if recorded != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", recorded)
	}
}

func TestTerminalRecordingWithANSI(t *testing.T) {
	rec := NewMemoryRecording()
	term := New(WithRecording(rec))

	input := "\x1b[31mRed\x1b[0m"
	term.WriteString(input)

	recorded := string(rec.Data())
	if recorded != input {
		t.Errorf("expected '%s', got '%s'", input, recorded)
	}

	rec.Clear()
	if len(rec.Data()) != 0 {
		t.Error("expected empty recording after clear")
	}
}

func TestTerminalRecordingReplay(t *testing.T) {
	rec := NewMemoryRecording()
	term := New(WithSize(24, 80), WithRecording(rec))

	term.WriteString("Hello\r\n\x1b[1;32mWorld")

	term2 := New(WithSize(24, 80))
	term2.Write(rec.Data())

	if gridDump(term) != gridDump(term2) {
		t.Errorf("replay mismatch:\noriginal: %s\nreplay: %s", term.String(), term2.String())
	}
}

func TestRingScrollback(t *testing.T) {
	r := NewRingScrollback(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Push([]Cell{{Char: rune(s[0])}})
	}

	if r.Len() != 3 {
		t.Fatalf("expected 3 lines, got %d", r.Len())
	}
	for i, want := range "cde" {
		if got := r.Line(i)[0].Char; got != want {
			t.Errorf("line %d: expected '%c', got '%c'", i, want, got)
		}
	}
	if r.Line(3) != nil || r.Line(-1) != nil {
		t.Error("expected nil for out of range lines")
	}

	r.SetMaxLines(2)
	if r.Len() != 2 || r.Line(0)[0].Char != 'd' {
		t.Errorf("expected newest 2 lines kept after shrink, got len %d", r.Len())
	}

	r.Push([]Cell{{Char: 'f'}})
	if r.Line(0)[0].Char != 'e' || r.Line(1)[0].Char != 'f' {
		t.Error("expected ring to keep rotating after shrink")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("expected empty ring, got %d", r.Len())
	}

	none := NewRingScrollback(0)
	none.Push([]Cell{{Char: 'x'}})
	if none.Len() != 0 {
		t.Error("expected zero-capacity ring to drop lines")
	}
}
