package dex

// MaxVarArgRegs is the largest argument list a 35c instruction can carry.
const MaxVarArgRegs = 5

// Instruction is a read-only view of one instruction's code units. Operand
// accessors are only meaningful for the formats named in their suffix (or,
// for the generic ones, for the opcode's own format). Missing code units of
// a truncated instruction read as zero.
type Instruction struct {
	units []uint16
}

// NewInstruction wraps raw code units, starting at the opcode unit.
func NewInstruction(units []uint16) Instruction {
	return Instruction{units: units}
}

func (inst Instruction) unit(i int) uint16 {
	if i < len(inst.units) {
		return inst.units[i]
	}
	return 0
}

func (inst Instruction) Opcode() Opcode {
	return Opcode(inst.unit(0) & 0xff)
}

func (inst Instruction) Format() Format {
	return FormatOf(inst.Opcode())
}

// Valid reports whether the view covers at least one code unit.
func (inst Instruction) Valid() bool {
	return len(inst.units) > 0
}

// Payload identifiers stored in the first unit of a NOP pseudo-instruction.
const (
	PackedSwitchSignature = 0x0100
	SparseSwitchSignature = 0x0200
	ArrayDataSignature    = 0x0300
)

// SizeInCodeUnits returns the width of the instruction, including the
// variable-length payload pseudo-instructions.
func (inst Instruction) SizeInCodeUnits() int {
	if inst.Opcode() == NOP {
		switch inst.unit(0) {
		case PackedSwitchSignature:
			return 4 + int(inst.unit(1))*2
		case SparseSwitchSignature:
			return 2 + int(inst.unit(1))*4
		case ArrayDataSignature:
			width := uint32(inst.unit(1))
			size := uint32(inst.unit(2)) | uint32(inst.unit(3))<<16
			return 4 + int((size*width+1)/2)
		}
	}
	return inst.Format().Width()
}

func (inst Instruction) high4() int32 { return int32(inst.unit(0) >> 12) }
func (inst Instruction) low4() int32 { return int32((inst.unit(0) >> 8) & 0x0f) }
func (inst Instruction) high8() int32 { return int32(inst.unit(0) >> 8) }

func (inst Instruction) u32(i int) uint32 {
	return uint32(inst.unit(i)) | uint32(inst.unit(i+1))<<16
}

// VRegA returns the A operand of the instruction's own format.
func (inst Instruction) VRegA() int32 {
	switch inst.Format() {
	case Format11n, Format12x, Format22c, Format22s, Format22t:
		return inst.low4()
	case Format35c, Format45cc:
		return inst.high4()
	case Format10t:
		return int32(int8(inst.high8()))
	case Format20t:
		return int32(int16(inst.unit(1)))
	case Format30t:
		return int32(inst.u32(1))
	case Format32x:
		return int32(inst.unit(1))
	case Format10x:
		return 0
	default:
		return inst.high8()
	}
}

// VRegB returns the B operand of the instruction's own format. For 21h the
// raw 16-bit value is returned; callers shift it into place. For 51l only
// the low half is returned; use VRegB_51l.
func (inst Instruction) VRegB() int32 {
	switch inst.Format() {
	case Format11n:
		return int32(int16(inst.unit(0))) >> 12
	case Format12x, Format22c, Format22s, Format22t:
		return inst.high4()
	case Format21c, Format21h, Format22x, Format35c, Format3rc, Format45cc, Format4rcc:
		return int32(inst.unit(1))
	case Format21s, Format21t:
		return int32(int16(inst.unit(1)))
	case Format22b, Format23x:
		return int32(inst.unit(1) & 0xff)
	case Format31c, Format31i, Format31t, Format51l:
		return int32(inst.u32(1))
	case Format32x:
		return int32(inst.unit(2))
	default:
		return 0
	}
}

// VRegC returns the C operand of the instruction's own format.
func (inst Instruction) VRegC() int32 {
	switch inst.Format() {
	case Format22b:
		return int32(int8(inst.unit(1) >> 8))
	case Format22c:
		return int32(inst.unit(1))
	case Format22s, Format22t:
		return int32(int16(inst.unit(1)))
	case Format23x:
		return int32(inst.unit(1) >> 8)
	case Format35c, Format45cc:
		return int32(inst.unit(2) & 0x0f)
	case Format3rc, Format4rcc:
		return int32(inst.unit(2))
	default:
		return 0
	}
}

// VRegH returns the proto index of the 45cc and 4rcc formats.
func (inst Instruction) VRegH() int32 {
	switch inst.Format() {
	case Format45cc, Format4rcc:
		return int32(inst.unit(3))
	default:
		return 0
	}
}

func (inst Instruction) VRegA_11x() uint32 { return uint32(inst.high8()) }

func (inst Instruction) VRegA_22c() uint32 { return uint32(inst.low4()) }
func (inst Instruction) VRegB_22c() uint32 { return uint32(inst.high4()) }
func (inst Instruction) VRegC_22c() uint32 { return uint32(inst.unit(1)) }

// VRegA_35c is the number of argument registers.
func (inst Instruction) VRegA_35c() uint32 { return uint32(inst.high4()) }

// VRegB_35c is the method, type or call site index.
func (inst Instruction) VRegB_35c() uint32 { return uint32(inst.unit(1)) }

// VRegC_35c is the first argument register.
func (inst Instruction) VRegC_35c() uint32 { return uint32(inst.unit(2) & 0x0f) }

func (inst Instruction) VRegB_51l() int64 {
	return int64(uint64(inst.u32(1)) | uint64(inst.u32(3))<<32)
}

// WideVRegB returns the raw 64-bit literal of a 51l instruction. Other
// formats yield their B operand sign extended.
func (inst Instruction) WideVRegB() uint64 {
	if inst.Format() == Format51l {
		return uint64(inst.VRegB_51l())
	}
	return uint64(int64(inst.VRegB()))
}

// GetVarArgs fills args with the argument registers of a 35c or 45cc
// instruction and returns how many are valid.
func (inst Instruction) GetVarArgs(args *[MaxVarArgRegs]uint32) int {
	count := int(inst.high4())
	if count > MaxVarArgRegs {
		count = MaxVarArgRegs
	}
	regs := inst.unit(2)
	for i := 0; i < count && i < 4; i++ {
		args[i] = uint32(regs>>(4*i)) & 0x0f
	}
	if count == MaxVarArgRegs {
		args[4] = uint32(inst.low4())
	}
	return count
}

// Literal returns the value loaded by a direct constant instruction with
// the high16 forms shifted into place.
func (inst Instruction) Literal() (int64, bool) {
	switch inst.Opcode() {
	case CONST_4, CONST_16, CONST, CONST_WIDE_16, CONST_WIDE_32:
		return int64(inst.VRegB()), true
	case CONST_HIGH16:
		return int64(inst.VRegB() << 16), true
	case CONST_WIDE_HIGH16:
		return int64(inst.VRegB()) << 48, true
	case CONST_WIDE:
		return int64(inst.WideVRegB()), true
	default:
		return 0, false
	}
}
