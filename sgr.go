package tideterm

import "github.com/tidehq/tideterm/parser"

// sgr applies Select Graphic Rendition parameters to the cell template.
// Both the ';' and ':' forms of extended colors are accepted.
func (t *Terminal) sgr(a *parser.Action) {
	if len(a.Params) == 0 {
		t.template = NewCellTemplate()
		return
	}

	tpl := &t.template
	for i := 0; i < len(a.Params); i++ {
		p := a.Params[i]
		switch {
		case p == 0:
			*tpl = NewCellTemplate()
		case p == 1:
			tpl.SetFlag(CellFlagBold)
		case p == 2:
			tpl.SetFlag(CellFlagDim)
		case p == 3:
			tpl.SetFlag(CellFlagItalic)
		case p == 4:
			style := 1
			if a.IsSubParam(i + 1) {
				i++
				style = a.Params[i]
			}
			tpl.ClearFlag(CellFlagAnyUnderline)
			tpl.SetFlag(underlineFlag(style))
		case p == 5:
			tpl.SetFlag(CellFlagBlinkSlow)
		case p == 6:
			tpl.SetFlag(CellFlagBlinkFast)
		case p == 7:
			tpl.SetFlag(CellFlagReverse)
		case p == 8:
			tpl.SetFlag(CellFlagHidden)
		case p == 9:
			tpl.SetFlag(CellFlagStrike)
		case p == 21:
			tpl.ClearFlag(CellFlagAnyUnderline)
			tpl.SetFlag(CellFlagDoubleUnderline)
		case p == 22:
			tpl.ClearFlag(CellFlagBold | CellFlagDim)
		case p == 23:
			tpl.ClearFlag(CellFlagItalic)
		case p == 24:
			tpl.ClearFlag(CellFlagAnyUnderline)
		case p == 25:
			tpl.ClearFlag(CellFlagBlinkSlow | CellFlagBlinkFast)
		case p == 27:
			tpl.ClearFlag(CellFlagReverse)
		case p == 28:
			tpl.ClearFlag(CellFlagHidden)
		case p == 29:
			tpl.ClearFlag(CellFlagStrike)
		case p >= 30 && p <= 37:
			tpl.Fg = IndexedColor(uint8(p - 30))
		case p == 38:
			c, n, ok := extendedColor(a, i)
			if ok {
				tpl.Fg = c
			}
			i += n
		case p == 39:
			tpl.Fg = Color{}
		case p >= 40 && p <= 47:
			tpl.Bg = IndexedColor(uint8(p - 40))
		case p == 48:
			c, n, ok := extendedColor(a, i)
			if ok {
				tpl.Bg = c
			}
			i += n
		case p == 49:
			tpl.Bg = Color{}
		case p == 58:
			c, n, ok := extendedColor(a, i)
			if ok {
				tpl.UnderlineColor = c
			}
			i += n
		case p == 59:
			tpl.UnderlineColor = Color{}
		case p >= 90 && p <= 97:
			tpl.Fg = IndexedColor(uint8(p - 90 + 8))
		case p >= 100 && p <= 107:
			tpl.Bg = IndexedColor(uint8(p - 100 + 8))
		default:
			t.logger.Debug("unsupported SGR attribute", "attr", p)
		}
	}
}

func underlineFlag(style int) CellFlags {
	switch style {
	case 0:
		return 0
	case 2:
		return CellFlagDoubleUnderline
	case 3:
		return CellFlagCurlyUnderline
	case 4:
		return CellFlagDottedUnderline
	case 5:
		return CellFlagDashedUnderline
	default:
		return CellFlagUnderline
	}
}

// extendedColor decodes the color selector that follows a 38, 48 or 58 at
// index i. It returns the color, how many parameters after i it consumed,
// and whether the color was valid.
//
// Accepted forms:
//
//	38;5;n  38;2;r;g;b  38:5:n  38:2:r:g:b  38:2:cs:r:g:b
func extendedColor(a *parser.Action, i int) (Color, int, bool) {
	params := a.Params

	if a.IsSubParam(i + 1) {
		j := i + 1
		for j < len(params) && a.IsSubParam(j) {
			j++
		}
		sub := params[i+1 : j]
		consumed := len(sub)
		switch {
		case sub[0] == 5 && len(sub) >= 2:
			return IndexedColor(clampByte(sub[1])), consumed, true
		case sub[0] == 2 && len(sub) >= 4:
			// With a color space id the last three entries are the channels.
			rgb := sub[len(sub)-3:]
			if len(sub) > 5 {
				rgb = sub[2:5]
			}
			return RGBColor(clampByte(rgb[0]), clampByte(rgb[1]), clampByte(rgb[2])), consumed, true
		}
		return Color{}, consumed, false
	}

	if i+1 >= len(params) {
		return Color{}, 0, false
	}
	switch params[i+1] {
	case 5:
		if i+2 >= len(params) {
			return Color{}, len(params) - i - 1, false
		}
		return IndexedColor(clampByte(params[i+2])), 2, true
	case 2:
		if i+4 >= len(params) {
			return Color{}, len(params) - i - 1, false
		}
		return RGBColor(clampByte(params[i+2]), clampByte(params[i+3]), clampByte(params[i+4])), 4, true
	}
	return Color{}, 1, false
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
