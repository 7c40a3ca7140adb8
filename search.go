package tideterm

import (
	"regexp"
	"unicode"
)

// Span is a half-open column range [Start, End) within a row.
type Span struct {
	Start int
	End   int
}

// Match is a search hit. Line counts scrollback lines first (0 is the
// oldest) followed by the visible rows; Col and Len are in cells.
type Match struct {
	Line int
	Col  int
	Len  int
}

var urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

// lineText flattens cells into runes, skipping wide spacers, and records the
// column each rune starts at.
func lineText(cells []Cell, fold bool) ([]rune, []int) {
	runes := make([]rune, 0, len(cells))
	cols := make([]int, 0, len(cells))
	for col := range cells {
		c := &cells[col]
		if c.IsWideSpacer() {
			continue
		}
		r := c.Char
		if r == 0 {
			r = ' '
		}
		if fold {
			r = unicode.ToLower(r)
		}
		runes = append(runes, r)
		cols = append(cols, col)
	}
	return runes, cols
}

// indexAll returns every start index of pattern in text, overlapping hits included.
func indexAll(text, pattern []rune) []int {
	var hits []int
	for i := 0; i+len(pattern) <= len(text); i++ {
		found := true
		for j, pr := range pattern {
			if text[i+j] != pr {
				found = false
				break
			}
		}
		if found {
			hits = append(hits, i)
		}
	}
	return hits
}

// matchesIn converts rune hits in one line into cell-based matches.
func matchesIn(cells []Cell, pattern []rune, fold bool, line int, dst []Match) []Match {
	text, cols := lineText(cells, fold)
	for _, i := range indexAll(text, pattern) {
		end := len(cells)
		if next := i + len(pattern); next < len(cols) {
			end = cols[next]
		}
		dst = append(dst, Match{Line: line, Col: cols[i], Len: end - cols[i]})
	}
	return dst
}

// Search finds all occurrences of pattern in the visible screen.
// Returns positions where each match starts.
func (t *Terminal) Search(pattern string) []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if pattern == "" {
		return nil
	}

	var matches []Position
	needle := []rune(pattern)
	for row := 0; row < t.rows; row++ {
		for _, m := range matchesIn(t.activeBuffer.Row(row), needle, false, row, nil) {
			matches = append(matches, Position{Row: m.Line, Col: m.Col})
		}
	}
	return matches
}

// SearchScrollback finds all occurrences of pattern in scrollback lines.
// Returned row values are negative, where -1 is the most recent scrollback line.
func (t *Terminal) SearchScrollback(pattern string) []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if pattern == "" {
		return nil
	}

	var matches []Position
	needle := []rune(pattern)
	n := t.primaryBuffer.ScrollbackLen()
	for i := 0; i < n; i++ {
		for _, m := range matchesIn(t.primaryBuffer.ScrollbackLine(i), needle, false, i, nil) {
			matches = append(matches, Position{Row: -(n - m.Line), Col: m.Col})
		}
	}
	return matches
}

// SearchBuffer finds query case-insensitively in scrollback and on the
// visible screen, oldest line first.
func (t *Terminal) SearchBuffer(query string) []Match {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if query == "" {
		return nil
	}

	needle := []rune(query)
	for i, r := range needle {
		needle[i] = unicode.ToLower(r)
	}

	var matches []Match
	n := 0
	if t.activeBuffer == t.primaryBuffer {
		n = t.primaryBuffer.ScrollbackLen()
		for i := 0; i < n; i++ {
			matches = matchesIn(t.primaryBuffer.ScrollbackLine(i), needle, true, i, matches)
		}
	}
	for row := 0; row < t.rows; row++ {
		matches = matchesIn(t.activeBuffer.Row(row), needle, true, n+row, matches)
	}
	return matches
}

// URLs returns the http and https links found in a visible row.
func (t *Terminal) URLs(row int) []Span {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return findURLs(t.activeBuffer.Row(row))
}

// findURLs scans a row for URLs. Rows without "://" are skipped before any
// string is built.
func findURLs(cells []Cell) []Span {
	if !hasScheme(cells) {
		return nil
	}

	text, cols := lineText(cells, false)
	s := string(text)

	// Regexp indexes are bytes; map them back to rune positions.
	byteToRune := make([]int, len(s)+1)
	ri := 0
	for bi := range s {
		byteToRune[bi] = ri
		ri++
	}
	byteToRune[len(s)] = ri

	var spans []Span
	for _, loc := range urlPattern.FindAllStringIndex(s, -1) {
		start := byteToRune[loc[0]]
		end := byteToRune[loc[1]]
		endCol := len(cells)
		if end < len(cols) {
			endCol = cols[end]
		}
		spans = append(spans, Span{Start: cols[start], End: endCol})
	}
	return spans
}

func hasScheme(cells []Cell) bool {
	for i := 0; i+2 < len(cells); i++ {
		if cells[i].Char == ':' && cells[i+1].Char == '/' && cells[i+2].Char == '/' {
			return true
		}
	}
	return false
}
