package inline

import (
	"fmt"

	"github.com/colorfulnotion/dexinline/dex"
)

type InlineMethodOpcode uint8

const (
	InlineOpNop InlineMethodOpcode = iota
	InlineOpReturnArg
	InlineOpNonWideConst
	InlineOpIGet
	InlineOpIPut
	InlineOpConstructor
)

var inlineOpNames = [...]string{"nop", "return-arg", "non-wide-const", "iget", "iput", "constructor"}

func (op InlineMethodOpcode) String() string {
	if int(op) < len(inlineOpNames) {
		return inlineOpNames[op]
	}
	return fmt.Sprintf("inline-op(%d)", uint8(op))
}

const (
	// MaxArgSlot is the largest argument slot the 4-bit result fields hold.
	MaxArgSlot = 15
	// NoFieldIndex marks an unused constructor field-write slot.
	NoFieldIndex uint16 = 0xFFFF

	maxOpVariant   = 7
	maxFieldOffset = 1<<31 - 1
)

type InlineReturnArgData struct {
	Arg      uint16
	IsWide   bool
	IsObject bool
}

type InlineIGetIPutData struct {
	OpVariant      dex.MemAccessType
	MethodIsStatic bool
	ObjectArg      uint8
	SrcArg         uint8
	ReturnArgPlus1 uint8 // 0 when the method returns void
	FieldIdx       uint16
	IsVolatile     bool
	FieldOffset    uint32
}

// ConstructorIPut records that argument Arg (relative to this) ends up in
// the field with dex index FieldIndex.
type ConstructorIPut struct {
	FieldIndex uint16
	Arg        uint16
}

type InlineConstructorData struct {
	IPuts []ConstructorIPut // at most MaxConstructorIPuts, in store order
}

// InlineMethod is the analysis result. Only the payload matching Opcode is
// meaningful; Data carries the constant of InlineOpNonWideConst.
type InlineMethod struct {
	Opcode          InlineMethodOpcode
	ReturnData      InlineReturnArgData
	IFieldData      InlineIGetIPutData
	ConstructorData InlineConstructorData
	Data            uint64
}

// Validate checks that every payload field fits its packed width.
func (m *InlineMethod) Validate() error {
	switch m.Opcode {
	case InlineOpNop, InlineOpNonWideConst, InlineOpReturnArg:
		return nil
	case InlineOpIGet, InlineOpIPut:
		d := m.IFieldData
		if d.OpVariant > maxOpVariant {
			return fmt.Errorf("op variant %d exceeds 3 bits", d.OpVariant)
		}
		if d.ObjectArg > MaxArgSlot || d.SrcArg > MaxArgSlot || d.ReturnArgPlus1 > MaxArgSlot {
			return fmt.Errorf("argument slots %d/%d/%d exceed 4 bits", d.ObjectArg, d.SrcArg, d.ReturnArgPlus1)
		}
		if d.FieldOffset > maxFieldOffset {
			return fmt.Errorf("field offset %d exceeds 31 bits", d.FieldOffset)
		}
		return nil
	case InlineOpConstructor:
		if len(m.ConstructorData.IPuts) > MaxConstructorIPuts {
			return fmt.Errorf("%d constructor field writes, at most %d", len(m.ConstructorData.IPuts), MaxConstructorIPuts)
		}
		for i, iput := range m.ConstructorData.IPuts {
			if iput.FieldIndex == NoFieldIndex {
				return fmt.Errorf("field write %d uses the reserved index", i)
			}
			if iput.Arg > MaxArgSlot {
				return fmt.Errorf("field write %d argument %d exceeds 4 bits", i, iput.Arg)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown inline opcode %d", m.Opcode)
	}
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Pack encodes the payload into the 64-bit word layout used by the runtime:
//
//	return-arg:  arg:16 is_wide:1 is_object:1
//	iget/iput:   op_variant:3 method_is_static:1 object_arg:4 src_arg:4
//	             return_arg_plus1:4 field_idx:16 is_volatile:1 field_offset:31
//	constructor: iput0_field_index:16 iput1_field_index:16 iput2_field_index:16
//	             iput0_arg:4 iput1_arg:4 iput2_arg:4
func (m *InlineMethod) Pack() (uint64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	switch m.Opcode {
	case InlineOpReturnArg:
		d := m.ReturnData
		return uint64(d.Arg) | boolBit(d.IsWide)<<16 | boolBit(d.IsObject)<<17, nil
	case InlineOpNonWideConst:
		return m.Data, nil
	case InlineOpIGet, InlineOpIPut:
		d := m.IFieldData
		return uint64(d.OpVariant) |
			boolBit(d.MethodIsStatic)<<3 |
			uint64(d.ObjectArg)<<4 |
			uint64(d.SrcArg)<<8 |
			uint64(d.ReturnArgPlus1)<<12 |
			uint64(d.FieldIdx)<<16 |
			boolBit(d.IsVolatile)<<32 |
			uint64(d.FieldOffset)<<33, nil
	case InlineOpConstructor:
		var word uint64
		for i := 0; i < MaxConstructorIPuts; i++ {
			index, arg := NoFieldIndex, uint16(0)
			if i < len(m.ConstructorData.IPuts) {
				index, arg = m.ConstructorData.IPuts[i].FieldIndex, m.ConstructorData.IPuts[i].Arg
			}
			word |= uint64(index) << (16 * i)
			word |= uint64(arg) << (48 + 4*i)
		}
		return word, nil
	default:
		return 0, nil
	}
}

// UnpackInlineMethod is the inverse of Pack.
func UnpackInlineMethod(op InlineMethodOpcode, word uint64) (InlineMethod, error) {
	m := InlineMethod{Opcode: op}
	switch op {
	case InlineOpNop:
	case InlineOpReturnArg:
		m.ReturnData = InlineReturnArgData{
			Arg:      uint16(word),
			IsWide:   word>>16&1 == 1,
			IsObject: word>>17&1 == 1,
		}
	case InlineOpNonWideConst:
		m.Data = word
	case InlineOpIGet, InlineOpIPut:
		m.IFieldData = InlineIGetIPutData{
			OpVariant:      dex.MemAccessType(word & 0x7),
			MethodIsStatic: word>>3&1 == 1,
			ObjectArg:      uint8(word >> 4 & 0xf),
			SrcArg:         uint8(word >> 8 & 0xf),
			ReturnArgPlus1: uint8(word >> 12 & 0xf),
			FieldIdx:       uint16(word >> 16),
			IsVolatile:     word>>32&1 == 1,
			FieldOffset:    uint32(word >> 33),
		}
	case InlineOpConstructor:
		for i := 0; i < MaxConstructorIPuts; i++ {
			index := uint16(word >> (16 * i))
			if index == NoFieldIndex {
				break
			}
			m.ConstructorData.IPuts = append(m.ConstructorData.IPuts, ConstructorIPut{
				FieldIndex: index,
				Arg:        uint16(word >> (48 + 4*i) & 0xf),
			})
		}
	default:
		return m, fmt.Errorf("unknown inline opcode %d", op)
	}
	return m, nil
}

func (m InlineMethod) String() string {
	switch m.Opcode {
	case InlineOpReturnArg:
		return fmt.Sprintf("return-arg arg=%d wide=%t object=%t", m.ReturnData.Arg, m.ReturnData.IsWide, m.ReturnData.IsObject)
	case InlineOpNonWideConst:
		return fmt.Sprintf("non-wide-const %#x", m.Data)
	case InlineOpIGet, InlineOpIPut:
		d := m.IFieldData
		return fmt.Sprintf("%s %s field@%d offset=%d volatile=%t static=%t object=%d src=%d return+1=%d",
			m.Opcode, d.OpVariant, d.FieldIdx, d.FieldOffset, d.IsVolatile, d.MethodIsStatic, d.ObjectArg, d.SrcArg, d.ReturnArgPlus1)
	case InlineOpConstructor:
		s := "constructor"
		for _, iput := range m.ConstructorData.IPuts {
			s += fmt.Sprintf(" field@%d=arg%d", iput.FieldIndex, iput.Arg)
		}
		return s
	default:
		return m.Opcode.String()
	}
}
