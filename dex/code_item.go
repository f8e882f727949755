package dex

import "fmt"

// CodeItem is the decoded body of one method: its register frame and its
// instruction stream in 16-bit code units. The incoming arguments occupy
// the last InsSize registers; for instance methods the first of them holds
// `this`.
type CodeItem struct {
	RegistersSize uint16
	InsSize       uint16
	OutsSize      uint16
	Insns         []uint16
}

// ArgStart is the first register that holds an incoming argument.
func (c *CodeItem) ArgStart() uint32 {
	return uint32(c.RegistersSize) - uint32(c.InsSize)
}

func (c *CodeItem) InsnsSizeInCodeUnits() int {
	return len(c.Insns)
}

// InstructionAt returns the instruction starting at dexPC, or an invalid
// instruction when dexPC is out of range.
func (c *CodeItem) InstructionAt(dexPC int) Instruction {
	if dexPC < 0 || dexPC >= len(c.Insns) {
		return Instruction{}
	}
	return Instruction{units: c.Insns[dexPC:]}
}

// Begin returns a cursor on the first instruction.
func (c *CodeItem) Begin() *Cursor {
	return &Cursor{code: c}
}

// Validate checks the frame layout and that every instruction fits in the
// code units.
func (c *CodeItem) Validate() error {
	if c.InsSize > c.RegistersSize {
		return fmt.Errorf("ins size %d exceeds registers size %d", c.InsSize, c.RegistersSize)
	}
	if len(c.Insns) == 0 {
		return fmt.Errorf("empty code item")
	}
	for pc := 0; pc < len(c.Insns); {
		size := c.InstructionAt(pc).SizeInCodeUnits()
		if pc+size > len(c.Insns) {
			return fmt.Errorf("instruction %s at %#04x overruns code (%d > %d units)",
				c.InstructionAt(pc).Opcode(), pc, pc+size, len(c.Insns))
		}
		pc += size
	}
	return nil
}

// InstructionPcPair is an instruction together with its dex pc.
type InstructionPcPair struct {
	DexPC int
	Inst  Instruction
}

// Instructions returns every instruction of the body in order.
func (c *CodeItem) Instructions() []InstructionPcPair {
	var pairs []InstructionPcPair
	for it := c.Begin(); !it.Done(); it.Next() {
		pairs = append(pairs, InstructionPcPair{DexPC: it.DexPC(), Inst: it.Inst()})
	}
	return pairs
}

// Cursor walks a code item forward, one instruction at a time. Advancing
// past the last instruction leaves the cursor at the end, where Inst
// returns an invalid instruction whose opcode reads as NOP.
type Cursor struct {
	code *CodeItem
	pc   int
}

func (it *Cursor) Inst() Instruction {
	return it.code.InstructionAt(it.pc)
}

func (it *Cursor) Opcode() Opcode {
	return it.Inst().Opcode()
}

func (it *Cursor) DexPC() int {
	return it.pc
}

func (it *Cursor) Done() bool {
	return it.pc >= len(it.code.Insns)
}

func (it *Cursor) Next() {
	if it.Done() {
		return
	}
	size := it.Inst().SizeInCodeUnits()
	if size < 1 {
		size = 1
	}
	it.pc = min(it.pc+size, len(it.code.Insns))
}

// Peek returns the instruction after the current one without moving.
func (it *Cursor) Peek() Instruction {
	next := *it
	next.Next()
	return next.Inst()
}
