// Package parser decodes a VT/xterm byte stream into terminal actions.
//
// The decoder is a byte-at-a-time state machine in the style of the DEC
// ANSI parser diagram, with UTF-8 assembly folded into the ground state. It
// never looks at screen state and never fails: malformed input is either
// resolved to U+FFFD or dropped, and the machine returns to ground.
package parser

import "unicode/utf8"

const (
	maxParams        = 32
	maxIntermediates = 2
	maxParamValue    = 65535

	// MaxPayload bounds the number of bytes kept from an OSC or DCS string.
	// Anything longer is truncated.
	MaxPayload = 4096
)

// State is the current state of the parser.
type State uint8

const (
	StateGround State = iota
	StateUtf8Continuation
	StateEscape
	StateEscapeIntermediate
	StateCsiEntry
	StateCsiParam
	StateCsiIntermediate
	StateCsiIgnore
	StateOscString
	StateDcsEntry
	StateDcsParam
	StateDcsIntermediate
	StateDcsPassthrough
	StateDcsIgnore
	StateSosPmApcString
)

var stateNames = [...]string{
	StateGround:             "Ground",
	StateUtf8Continuation:   "Utf8Continuation",
	StateEscape:             "Escape",
	StateEscapeIntermediate: "EscapeIntermediate",
	StateCsiEntry:           "CsiEntry",
	StateCsiParam:           "CsiParam",
	StateCsiIntermediate:    "CsiIntermediate",
	StateCsiIgnore:          "CsiIgnore",
	StateOscString:          "OscString",
	StateDcsEntry:           "DcsEntry",
	StateDcsParam:           "DcsParam",
	StateDcsIntermediate:    "DcsIntermediate",
	StateDcsPassthrough:     "DcsPassthrough",
	StateDcsIgnore:          "DcsIgnore",
	StateSosPmApcString:     "SosPmApcString",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Parser holds the decoding state between calls to Advance.
// A Parser is not safe for concurrent use.
type Parser struct {
	state State

	params  [maxParams]int
	nparams int
	cur     int
	pending bool
	sub     uint64
	nextSub bool

	inter   [maxIntermediates]byte
	ninter  int
	private byte

	payload  []byte
	dcsFinal byte

	codepoint rune
	need      int
	lower     byte
	upper     byte

	action Action
}

// New returns a parser in the ground state.
func New() *Parser {
	return &Parser{payload: make([]byte, 0, 256)}
}

// State returns the current state.
func (p *Parser) State() State {
	return p.state
}

// Reset drops any partial sequence and returns to the ground state.
func (p *Parser) Reset() {
	p.state = StateGround
	p.clearParams()
	p.payload = p.payload[:0]
	p.need = 0
}

// Advance feeds data through the state machine, calling emit for every
// complete action in order. A sequence split across calls is resumed on the
// next call. The *Action passed to emit is reused; see Action.
func (p *Parser) Advance(data []byte, emit func(*Action)) {
	for _, b := range data {
		if p.state == StateGround && b >= 0x20 && b < 0x7f {
			p.print(rune(b), emit)
			continue
		}
		p.advance(b, emit)
	}
}

func (p *Parser) advance(b byte, emit func(*Action)) {
	switch p.state {
	case StateGround:
		p.ground(b, emit)
	case StateUtf8Continuation:
		p.continuation(b, emit)
	case StateEscape:
		p.escape(b, emit)
	case StateEscapeIntermediate:
		p.escapeIntermediate(b, emit)
	case StateCsiEntry, StateCsiParam:
		p.csiParam(b, emit)
	case StateCsiIntermediate:
		p.csiIntermediate(b, emit)
	case StateCsiIgnore:
		p.csiIgnore(b, emit)
	case StateOscString:
		p.osc(b, emit)
	case StateDcsEntry, StateDcsParam:
		p.dcsParam(b, emit)
	case StateDcsIntermediate:
		p.dcsIntermediate(b, emit)
	case StateDcsPassthrough:
		p.dcsPassthrough(b, emit)
	case StateDcsIgnore, StateSosPmApcString:
		p.ignoreString(b)
	}
}

// anywhere handles the bytes that mean the same thing in every state except
// ground. It reports whether b was consumed.
func (p *Parser) anywhere(b byte) bool {
	switch b {
	case 0x1b:
		p.enterEscape()
		return true
	case 0x18, 0x1a:
		p.state = StateGround
		return true
	}
	return false
}

func (p *Parser) ground(b byte, emit func(*Action)) {
	switch {
	case b >= 0x20 && b < 0x7f:
		p.print(rune(b), emit)
	case b == 0x1b:
		p.enterEscape()
	case b < 0x20:
		p.execute(b, emit)
	case b == 0x7f:
	default:
		p.lead(b, emit)
	}
}

// lead starts a multi-byte UTF-8 sequence. The accepted range of the first
// continuation byte excludes overlong forms, surrogates and values past
// U+10FFFF, so a completed sequence is always a valid scalar value.
func (p *Parser) lead(b byte, emit func(*Action)) {
	p.lower, p.upper = 0x80, 0xbf
	switch {
	case b >= 0xc2 && b <= 0xdf:
		p.need = 1
		p.codepoint = rune(b & 0x1f)
	case b >= 0xe0 && b <= 0xef:
		p.need = 2
		p.codepoint = rune(b & 0x0f)
		if b == 0xe0 {
			p.lower = 0xa0
		} else if b == 0xed {
			p.upper = 0x9f
		}
	case b >= 0xf0 && b <= 0xf4:
		p.need = 3
		p.codepoint = rune(b & 0x07)
		if b == 0xf0 {
			p.lower = 0x90
		} else if b == 0xf4 {
			p.upper = 0x8f
		}
	default:
		p.print(utf8.RuneError, emit)
		return
	}
	p.state = StateUtf8Continuation
}

func (p *Parser) continuation(b byte, emit func(*Action)) {
	if b < p.lower || b > p.upper {
		p.need = 0
		p.state = StateGround
		p.print(utf8.RuneError, emit)
		p.ground(b, emit)
		return
	}
	p.codepoint = p.codepoint<<6 | rune(b&0x3f)
	p.lower, p.upper = 0x80, 0xbf
	p.need--
	if p.need == 0 {
		p.state = StateGround
		p.print(p.codepoint, emit)
	}
}

func (p *Parser) enterEscape() {
	p.ninter = 0
	p.state = StateEscape
}

func (p *Parser) escape(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
		p.execute(b, emit)
	case b == '[':
		p.clearParams()
		p.state = StateCsiEntry
	case b == ']':
		p.payload = p.payload[:0]
		p.state = StateOscString
	case b == 'P':
		p.clearParams()
		p.state = StateDcsEntry
	case b == 'X', b == '^', b == '_':
		p.state = StateSosPmApcString
	case b == '\\':
		// A lone string terminator; the string it closed was already handled.
		p.state = StateGround
	case b <= 0x2f:
		p.collect(b)
		p.state = StateEscapeIntermediate
	case b <= 0x7e:
		p.escDispatch(b, emit)
	case b == 0x7f:
	default:
		p.state = StateGround
		p.ground(b, emit)
	}
}

func (p *Parser) escapeIntermediate(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
		p.execute(b, emit)
	case b <= 0x2f:
		p.collect(b)
	case b <= 0x7e:
		p.escDispatch(b, emit)
	case b == 0x7f:
	default:
		p.state = StateGround
		p.ground(b, emit)
	}
}

func (p *Parser) csiParam(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
		p.execute(b, emit)
	case b >= '0' && b <= '9':
		p.digit(b)
		p.state = StateCsiParam
	case b == ';' || b == ':':
		p.separator(b == ':')
		p.state = StateCsiParam
	case b >= 0x3c && b <= 0x3f:
		if p.state == StateCsiEntry {
			p.private = b
			p.state = StateCsiParam
		} else {
			p.state = StateCsiIgnore
		}
	case b <= 0x2f:
		if p.collect(b) {
			p.state = StateCsiIntermediate
		} else {
			p.state = StateCsiIgnore
		}
	case b <= 0x7e:
		p.csiDispatch(b, emit)
	case b == 0x7f:
	default:
		p.state = StateGround
		p.ground(b, emit)
	}
}

func (p *Parser) csiIntermediate(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
		p.execute(b, emit)
	case b <= 0x2f:
		if !p.collect(b) {
			p.state = StateCsiIgnore
		}
	case b <= 0x3f:
		p.state = StateCsiIgnore
	case b <= 0x7e:
		p.csiDispatch(b, emit)
	case b == 0x7f:
	default:
		p.state = StateGround
		p.ground(b, emit)
	}
}

func (p *Parser) csiIgnore(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
		p.execute(b, emit)
	case b >= 0x40 && b <= 0x7e:
		p.state = StateGround
	case b >= 0x80:
		p.state = StateGround
		p.ground(b, emit)
	}
}

func (p *Parser) osc(b byte, emit func(*Action)) {
	switch {
	case b == 0x07:
		p.oscDispatch(emit)
		p.state = StateGround
	case b == 0x1b:
		p.oscDispatch(emit)
		p.enterEscape()
	case b == 0x18 || b == 0x1a:
		p.state = StateGround
	case b < 0x20:
	default:
		p.put(b)
	}
}

func (p *Parser) dcsParam(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
	case b >= '0' && b <= '9':
		p.digit(b)
		p.state = StateDcsParam
	case b == ';' || b == ':':
		p.separator(b == ':')
		p.state = StateDcsParam
	case b >= 0x3c && b <= 0x3f:
		if p.state == StateDcsEntry {
			p.private = b
			p.state = StateDcsParam
		} else {
			p.state = StateDcsIgnore
		}
	case b <= 0x2f:
		if p.collect(b) {
			p.state = StateDcsIntermediate
		} else {
			p.state = StateDcsIgnore
		}
	case b <= 0x7e:
		p.enterPassthrough(b)
	default:
		p.state = StateDcsIgnore
	}
}

func (p *Parser) dcsIntermediate(b byte, emit func(*Action)) {
	if p.anywhere(b) {
		return
	}
	switch {
	case b < 0x20:
	case b <= 0x2f:
		if !p.collect(b) {
			p.state = StateDcsIgnore
		}
	case b <= 0x3f:
		p.state = StateDcsIgnore
	case b <= 0x7e:
		p.enterPassthrough(b)
	default:
		p.state = StateDcsIgnore
	}
}

func (p *Parser) enterPassthrough(final byte) {
	if p.pending {
		p.pushParam()
	}
	p.dcsFinal = final
	p.payload = p.payload[:0]
	p.state = StateDcsPassthrough
}

func (p *Parser) dcsPassthrough(b byte, emit func(*Action)) {
	switch b {
	case 0x1b:
		p.dcsDispatch(emit)
		p.enterEscape()
	case 0x18, 0x1a:
		p.state = StateGround
	default:
		p.put(b)
	}
}

func (p *Parser) ignoreString(b byte) {
	p.anywhere(b)
}

func (p *Parser) clearParams() {
	p.nparams = 0
	p.cur = 0
	p.pending = false
	p.sub = 0
	p.nextSub = false
	p.ninter = 0
	p.private = 0
}

func (p *Parser) digit(b byte) {
	p.cur = p.cur*10 + int(b-'0')
	if p.cur > maxParamValue {
		p.cur = maxParamValue
	}
	p.pending = true
}

func (p *Parser) separator(colon bool) {
	p.pushParam()
	p.pending = true
	p.nextSub = colon
}

func (p *Parser) pushParam() {
	if p.nparams < maxParams {
		if p.nextSub {
			p.sub |= 1 << uint(p.nparams)
		}
		p.params[p.nparams] = p.cur
		p.nparams++
	}
	p.cur = 0
	p.pending = false
	p.nextSub = false
}

func (p *Parser) collect(b byte) bool {
	if p.ninter >= maxIntermediates {
		return false
	}
	p.inter[p.ninter] = b
	p.ninter++
	return true
}

func (p *Parser) put(b byte) {
	if len(p.payload) < MaxPayload {
		p.payload = append(p.payload, b)
	}
}

func (p *Parser) print(r rune, emit func(*Action)) {
	p.action = Action{Kind: ActionPrint, Rune: r}
	emit(&p.action)
}

func (p *Parser) execute(b byte, emit func(*Action)) {
	p.action = Action{Kind: ActionExecute, Byte: b}
	emit(&p.action)
}

func (p *Parser) escDispatch(final byte, emit func(*Action)) {
	p.action = Action{
		Kind:          ActionEscDispatch,
		Byte:          final,
		Intermediates: p.inter[:p.ninter],
	}
	p.state = StateGround
	emit(&p.action)
}

func (p *Parser) csiDispatch(final byte, emit func(*Action)) {
	if p.pending {
		p.pushParam()
	}
	p.action = Action{
		Kind:          ActionCsiDispatch,
		Byte:          final,
		Params:        p.params[:p.nparams],
		Intermediates: p.inter[:p.ninter],
		Private:       p.private,
		sub:           p.sub,
	}
	p.state = StateGround
	emit(&p.action)
}

func (p *Parser) oscDispatch(emit func(*Action)) {
	p.action = Action{Kind: ActionOscDispatch, Payload: p.payload}
	emit(&p.action)
}

func (p *Parser) dcsDispatch(emit func(*Action)) {
	p.action = Action{
		Kind:          ActionDcsDispatch,
		Byte:          p.dcsFinal,
		Params:        p.params[:p.nparams],
		Intermediates: p.inter[:p.ninter],
		Private:       p.private,
		Payload:       p.payload,
		sub:           p.sub,
	}
	emit(&p.action)
}
