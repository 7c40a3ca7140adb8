package main

import (
	"strconv"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// cursorKeys maps arrow and edit keys to their final byte. Arrows use SS3
// in application cursor mode.
var cursorKeys = map[tcell.Key]byte{
	tcell.KeyUp:    'A',
	tcell.KeyDown:  'B',
	tcell.KeyRight: 'C',
	tcell.KeyLeft:  'D',
	tcell.KeyHome:  'H',
	tcell.KeyEnd:   'F',
}

// tildeKeys maps keys sent as CSI n ~.
var tildeKeys = map[tcell.Key]int{
	tcell.KeyInsert: 2,
	tcell.KeyDelete: 3,
	tcell.KeyPgUp:   5,
	tcell.KeyPgDn:   6,
	tcell.KeyF5:     15,
	tcell.KeyF6:     17,
	tcell.KeyF7:     18,
	tcell.KeyF8:     19,
	tcell.KeyF9:     20,
	tcell.KeyF10:    21,
	tcell.KeyF11:    23,
	tcell.KeyF12:    24,
}

var functionKeys = map[tcell.Key]byte{
	tcell.KeyF1: 'P',
	tcell.KeyF2: 'Q',
	tcell.KeyF3: 'R',
	tcell.KeyF4: 'S',
}

// modifierParam returns the xterm modifier parameter, 1 meaning none.
func modifierParam(mod tcell.ModMask) int {
	p := 1
	if mod&tcell.ModShift != 0 {
		p++
	}
	if mod&tcell.ModAlt != 0 {
		p += 2
	}
	if mod&tcell.ModCtrl != 0 {
		p += 4
	}
	return p
}

// encodeKey turns a key press into the bytes an xterm would send.
// appCursor selects SS3 arrows (DECCKM). It returns nil for keys with no
// encoding.
func encodeKey(key tcell.Key, r rune, mod tcell.ModMask, appCursor bool) []byte {
	m := modifierParam(mod)

	if final, ok := cursorKeys[key]; ok {
		switch {
		case m > 1:
			return []byte("\x1b[1;" + strconv.Itoa(m) + string(final))
		case appCursor:
			return []byte{0x1b, 'O', final}
		default:
			return []byte{0x1b, '[', final}
		}
	}
	if n, ok := tildeKeys[key]; ok {
		s := "\x1b[" + strconv.Itoa(n)
		if m > 1 {
			s += ";" + strconv.Itoa(m)
		}
		return []byte(s + "~")
	}
	if final, ok := functionKeys[key]; ok {
		if m > 1 {
			return []byte("\x1b[1;" + strconv.Itoa(m) + string(final))
		}
		return []byte{0x1b, 'O', final}
	}

	switch key {
	case tcell.KeyRune:
		buf := utf8.AppendRune(nil, r)
		if mod&tcell.ModAlt != 0 {
			return append([]byte{0x1b}, buf...)
		}
		return buf
	case tcell.KeyBacktab:
		return []byte("\x1b[Z")
	case tcell.KeyBackspace2:
		return altPrefix(mod, 0x7f)
	}

	// Control keys carry their C0 code as the key value.
	if key < 0x20 {
		return altPrefix(mod, byte(key))
	}
	return nil
}

func altPrefix(mod tcell.ModMask, b byte) []byte {
	if mod&tcell.ModAlt != 0 {
		return []byte{0x1b, b}
	}
	return []byte{b}
}

// pasteBytes wraps pasted text in bracketed paste markers when the
// application asked for them.
func pasteBytes(text []byte, bracketed bool) []byte {
	if !bracketed {
		return text
	}
	out := make([]byte, 0, len(text)+12)
	out = append(out, "\x1b[200~"...)
	out = append(out, text...)
	return append(out, "\x1b[201~"...)
}
