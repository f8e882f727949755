package dex

import (
	"fmt"
	"strings"
)

// DisassembledInstruction is one line of a method listing.
type DisassembledInstruction struct {
	DexPC  int
	Opcode Opcode
	Size   int
	Text   string
}

func formatIndex(op Opcode, v uint32) string {
	prefix := indexKindPrefix[IndexKindOf(op)]
	if prefix == "" {
		prefix = "index"
	}
	return fmt.Sprintf("%s@%d", prefix, v)
}

func formatOffset(v int32) string {
	if v < 0 {
		return fmt.Sprintf("-%d", -int64(v))
	}
	return fmt.Sprintf("+%d", v)
}

// FormatInstruction renders an instruction in the syntax accepted by Assemble.
func FormatInstruction(inst Instruction) string {
	op := inst.Opcode()
	name := OpcodeToString(op)
	if op == NOP {
		switch inst.unit(0) {
		case PackedSwitchSignature:
			return fmt.Sprintf("nop // packed-switch-payload (%d units)", inst.SizeInCodeUnits())
		case SparseSwitchSignature:
			return fmt.Sprintf("nop // sparse-switch-payload (%d units)", inst.SizeInCodeUnits())
		case ArrayDataSignature:
			return fmt.Sprintf("nop // array-data-payload (%d units)", inst.SizeInCodeUnits())
		}
	}
	var args []string
	switch inst.Format() {
	case Format10x:
	case Format10t, Format20t, Format30t:
		args = []string{formatOffset(inst.VRegA())}
	case Format11n, Format21s, Format21h, Format31i:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("#%d", inst.VRegB())}
	case Format11x:
		args = []string{fmt.Sprintf("v%d", inst.VRegA())}
	case Format12x, Format22x, Format32x:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("v%d", inst.VRegB())}
	case Format21c, Format31c:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), formatIndex(op, uint32(inst.VRegB()))}
	case Format21t, Format31t:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), formatOffset(inst.VRegB())}
	case Format22b, Format22s:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("v%d", inst.VRegB()), fmt.Sprintf("#%d", inst.VRegC())}
	case Format22c:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("v%d", inst.VRegB()), formatIndex(op, uint32(inst.VRegC()))}
	case Format22t:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("v%d", inst.VRegB()), formatOffset(inst.VRegC())}
	case Format23x:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("v%d", inst.VRegB()), fmt.Sprintf("v%d", inst.VRegC())}
	case Format35c, Format45cc:
		var regs [MaxVarArgRegs]uint32
		n := inst.GetVarArgs(&regs)
		names := make([]string, n)
		for i := 0; i < n; i++ {
			names[i] = fmt.Sprintf("v%d", regs[i])
		}
		args = []string{"{" + strings.Join(names, ", ") + "}", formatIndex(op, uint32(inst.VRegB()))}
		if inst.Format() == Format45cc {
			args = append(args, fmt.Sprintf("proto@%d", inst.VRegH()))
		}
	case Format3rc, Format4rcc:
		first, count := inst.VRegC(), inst.VRegA()
		rng := "{}"
		switch {
		case count == 1:
			rng = fmt.Sprintf("{v%d}", first)
		case count > 1:
			rng = fmt.Sprintf("{v%d .. v%d}", first, first+count-1)
		}
		args = []string{rng, formatIndex(op, uint32(inst.VRegB()))}
		if inst.Format() == Format4rcc {
			args = append(args, fmt.Sprintf("proto@%d", inst.VRegH()))
		}
	case Format51l:
		args = []string{fmt.Sprintf("v%d", inst.VRegA()), fmt.Sprintf("#%d", inst.VRegB_51l())}
	}
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, ", ")
}

// Disassemble lists every instruction of a code item.
func Disassemble(code *CodeItem) []DisassembledInstruction {
	var out []DisassembledInstruction
	for it := code.Begin(); !it.Done(); it.Next() {
		inst := it.Inst()
		out = append(out, DisassembledInstruction{
			DexPC:  it.DexPC(),
			Opcode: inst.Opcode(),
			Size:   inst.SizeInCodeUnits(),
			Text:   FormatInstruction(inst),
		})
	}
	return out
}

// DisassembleToString renders a listing with dex pcs, one instruction per line.
func DisassembleToString(code *CodeItem) string {
	var sb strings.Builder
	for _, d := range Disassemble(code) {
		fmt.Fprintf(&sb, "%04x: %s\n", d.DexPC, d.Text)
	}
	return sb.String()
}
