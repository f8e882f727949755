package inline

import "github.com/colorfulnotion/dexinline/dex"

// MatchFn is one step of a match program. It returns false to fail the
// whole match.
type MatchFn func(m *Matcher) bool

// Matcher runs a match program over a code item. pos indexes the program,
// mark is the program position Repeated steps loop back to.
type Matcher struct {
	code *dex.CodeItem
	inst *dex.Cursor
	pos  int
	mark int
}

// Match reports whether the instructions at the start of code match pattern.
func Match(code *dex.CodeItem, pattern []MatchFn) bool {
	m := &Matcher{code: code, inst: code.Begin()}
	for m.pos != len(pattern) {
		if !pattern[m.pos](m) {
			return false
		}
	}
	return true
}

// Mark records the position after itself as the loop target for Repeated.
func Mark(m *Matcher) bool {
	m.pos++
	m.mark = m.pos
	return true
}

// Required consumes one instruction matching pred, or fails the match.
func Required(pred func(*Matcher) bool) MatchFn {
	return func(m *Matcher) bool {
		if !pred(m) {
			return false
		}
		m.pos++
		m.inst.Next()
		return true
	}
}

// Repeated consumes an instruction matching pred and jumps back to the
// mark. A mismatch falls through to the next step without consuming.
func Repeated(pred func(*Matcher) bool) MatchFn {
	return func(m *Matcher) bool {
		if !pred(m) {
			m.pos++
			return true
		}
		m.pos = m.mark
		m.inst.Next()
		return true
	}
}

// OpcodeIs matches a single opcode.
func OpcodeIs(op dex.Opcode) func(*Matcher) bool {
	return func(m *Matcher) bool {
		return m.inst.Opcode() == op
	}
}

// Const0 matches a literal load of zero, 32-bit or wide.
func (m *Matcher) Const0() bool {
	inst := m.inst.Inst()
	op := inst.Opcode()
	if !dex.IsInstructionDirectConst(op) {
		return false
	}
	if op == dex.CONST_WIDE {
		return inst.WideVRegB() == 0
	}
	return inst.VRegB() == 0
}

// IPutOnThis matches an iput whose object register is the receiver.
func (m *Matcher) IPutOnThis() bool {
	if m.code.InsSize == 0 {
		return false
	}
	inst := m.inst.Inst()
	return dex.IsInstructionIPut(inst.Opcode()) && inst.VRegB_22c() == m.code.ArgStart()
}
