package parser

import "fmt"

// ActionKind identifies what an Action asks the consumer to do.
type ActionKind uint8

const (
	// ActionPrint writes Rune at the cursor.
	ActionPrint ActionKind = iota
	// ActionExecute runs the C0 control in Byte (BEL, BS, HT, LF, CR, ...).
	ActionExecute
	// ActionCsiDispatch carries a complete CSI sequence.
	ActionCsiDispatch
	// ActionEscDispatch carries a two or three byte ESC sequence.
	ActionEscDispatch
	// ActionOscDispatch carries the payload of an OSC string.
	ActionOscDispatch
	// ActionDcsDispatch carries a terminated device control string.
	ActionDcsDispatch
)

func (k ActionKind) String() string {
	switch k {
	case ActionPrint:
		return "Print"
	case ActionExecute:
		return "Execute"
	case ActionCsiDispatch:
		return "CsiDispatch"
	case ActionEscDispatch:
		return "EscDispatch"
	case ActionOscDispatch:
		return "OscDispatch"
	case ActionDcsDispatch:
		return "DcsDispatch"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is one decoded unit of terminal output.
//
// The slices alias parser-owned storage and are only valid for the duration
// of the emit callback. Use Clone to keep an Action around.
type Action struct {
	Kind ActionKind

	// Rune is the decoded character for ActionPrint.
	Rune rune

	// Byte is the control byte for ActionExecute and the final byte for
	// CSI, ESC and DCS dispatches.
	Byte byte

	// Params holds numeric CSI/DCS parameters. An empty parameter is 0.
	Params []int

	// Intermediates holds bytes in 0x20-0x2F collected before the final byte.
	Intermediates []byte

	// Private is the CSI private marker ('?', '>', '<', '=') or 0.
	Private byte

	// Payload is the raw OSC or DCS string.
	Payload []byte

	// sub has bit i set when Params[i] was introduced by ':' instead of ';'.
	sub uint64
}

// Param returns the i-th parameter, or def when it is missing or zero.
// Most CSI commands treat 0 and "absent" the same way.
func (a *Action) Param(i, def int) int {
	if i < 0 || i >= len(a.Params) || a.Params[i] == 0 {
		return def
	}
	return a.Params[i]
}

// IsSubParam reports whether Params[i] was separated from its predecessor by
// a colon, as in "38:2:255:0:0".
func (a *Action) IsSubParam(i int) bool {
	if i <= 0 || i >= 64 {
		return false
	}
	return a.sub&(1<<uint(i)) != 0
}

// Clone returns a copy whose slices do not alias parser storage.
func (a *Action) Clone() Action {
	c := *a
	if a.Params != nil {
		c.Params = append([]int(nil), a.Params...)
	}
	if a.Intermediates != nil {
		c.Intermediates = append([]byte(nil), a.Intermediates...)
	}
	if a.Payload != nil {
		c.Payload = append([]byte(nil), a.Payload...)
	}
	return c
}

func (a Action) String() string {
	switch a.Kind {
	case ActionPrint:
		return fmt.Sprintf("Print(%q)", a.Rune)
	case ActionExecute:
		return fmt.Sprintf("Execute(0x%02x)", a.Byte)
	case ActionCsiDispatch:
		return fmt.Sprintf("CsiDispatch(%q%v%q%c)", string(a.Private), a.Params, a.Intermediates, a.Byte)
	case ActionEscDispatch:
		return fmt.Sprintf("EscDispatch(%q%c)", a.Intermediates, a.Byte)
	case ActionOscDispatch:
		return fmt.Sprintf("OscDispatch(%q)", a.Payload)
	case ActionDcsDispatch:
		return fmt.Sprintf("DcsDispatch(%v%c %q)", a.Params, a.Byte, a.Payload)
	default:
		return a.Kind.String()
	}
}
