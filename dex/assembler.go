package dex

import (
	"fmt"
	"strconv"
	"strings"
)

// Assemble encodes the textual form produced by Disassemble back into code
// units. One instruction per line; blank lines and text after "//" or ";"
// are ignored. Operands:
//
//	vN            register
//	#N            literal (decimal or 0x hex; raw B operand for the high16 forms)
//	kind@N        constant pool index, e.g. field@3 or method@0
//	{vC, vD}      35c/45cc argument list
//	{vC .. vN}    3rc/4rcc register range
//	+N / -N       branch offset in code units
func Assemble(src string) ([]uint16, error) {
	var insns []uint16
	for lineNo, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		units, err := assembleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %q: %w", lineNo+1, line, err)
		}
		insns = append(insns, units...)
	}
	return insns, nil
}

// MustAssemble is Assemble for fixed programs; it panics on error.
func MustAssemble(src string) []uint16 {
	insns, err := Assemble(src)
	if err != nil {
		panic(err)
	}
	return insns
}

type operand struct {
	text string
}

func splitOperands(s string) []operand {
	var ops []operand
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				ops = append(ops, operand{strings.TrimSpace(s[start:i])})
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		ops = append(ops, operand{rest})
	}
	return ops
}

func (o operand) register() (uint32, error) {
	if !strings.HasPrefix(o.text, "v") {
		return 0, fmt.Errorf("expected register, got %q", o.text)
	}
	v, err := strconv.ParseUint(o.text[1:], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad register %q", o.text)
	}
	return uint32(v), nil
}

func (o operand) literal() (int64, error) {
	if !strings.HasPrefix(o.text, "#") {
		return 0, fmt.Errorf("expected literal, got %q", o.text)
	}
	return parseSigned(o.text[1:])
}

func (o operand) index() (uint32, error) {
	at := strings.IndexByte(o.text, '@')
	if at <= 0 {
		return 0, fmt.Errorf("expected kind@index, got %q", o.text)
	}
	v, err := strconv.ParseUint(o.text[at+1:], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", o.text)
	}
	return uint32(v), nil
}

func (o operand) offset() (int64, error) {
	if !strings.HasPrefix(o.text, "+") && !strings.HasPrefix(o.text, "-") {
		return 0, fmt.Errorf("expected branch offset, got %q", o.text)
	}
	return parseSigned(o.text)
}

func (o operand) registerList() ([]uint32, error) {
	if !strings.HasPrefix(o.text, "{") || !strings.HasSuffix(o.text, "}") {
		return nil, fmt.Errorf("expected register list, got %q", o.text)
	}
	inner := strings.TrimSpace(o.text[1 : len(o.text)-1])
	if inner == "" {
		return nil, nil
	}
	var regs []uint32
	for _, part := range strings.Split(inner, ",") {
		r, err := operand{strings.TrimSpace(part)}.register()
		if err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, nil
}

func (o operand) registerRange() (first uint32, count uint32, err error) {
	if !strings.HasPrefix(o.text, "{") || !strings.HasSuffix(o.text, "}") {
		return 0, 0, fmt.Errorf("expected register range, got %q", o.text)
	}
	inner := strings.TrimSpace(o.text[1 : len(o.text)-1])
	if inner == "" {
		return 0, 0, nil
	}
	parts := strings.Split(inner, "..")
	if len(parts) == 1 {
		r, err := operand{strings.TrimSpace(parts[0])}.register()
		return r, 1, err
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad register range %q", o.text)
	}
	lo, err := operand{strings.TrimSpace(parts[0])}.register()
	if err != nil {
		return 0, 0, err
	}
	hi, err := operand{strings.TrimSpace(parts[1])}.register()
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("empty register range %q", o.text)
	}
	return lo, hi - lo + 1, nil
}

func parseSigned(s string) (int64, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

func fitsUnsigned(v int64, bits uint) bool {
	return v >= 0 && v < int64(1)<<bits
}

func fitsSigned(v int64, bits uint) bool {
	return v >= -(int64(1)<<(bits-1)) && v < int64(1)<<(bits-1)
}

func checkUnsigned(what string, v int64, bits uint) error {
	if !fitsUnsigned(v, bits) {
		return fmt.Errorf("%s %d does not fit in %d bits", what, v, bits)
	}
	return nil
}

func checkSigned(what string, v int64, bits uint) error {
	if !fitsSigned(v, bits) {
		return fmt.Errorf("%s %d does not fit in signed %d bits", what, v, bits)
	}
	return nil
}

func assembleLine(line string) ([]uint16, error) {
	mnemonic, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		mnemonic, rest = line[:i], line[i+1:]
	}
	op, ok := LookupOpcode(mnemonic)
	if !ok {
		return nil, fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	ops := splitOperands(rest)
	format := FormatOf(op)
	want := operandCount(format)
	if len(ops) != want {
		return nil, fmt.Errorf("%s takes %d operands, got %d", mnemonic, want, len(ops))
	}
	return encode(op, format, ops)
}

func operandCount(f Format) int {
	switch f {
	case Format10x:
		return 0
	case Format10t, Format11x, Format20t, Format30t:
		return 1
	case Format11n, Format12x, Format21c, Format21h, Format21s, Format21t, Format22x,
		Format31c, Format31i, Format31t, Format32x, Format35c, Format3rc, Format51l:
		return 2
	default:
		return 3
	}
}

// encode builds the code units of one instruction. Operand errors are
// collected in order so the first failing operand is reported.
func encode(op Opcode, f Format, ops []operand) ([]uint16, error) {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil && err != nil {
			firstErr = err
		}
	}
	reg := func(i int, bits uint) uint16 {
		r, err := ops[i].register()
		keep(err)
		keep(checkUnsigned("register", int64(r), bits))
		return uint16(r)
	}
	idx := func(i int, bits uint) uint32 {
		v, err := ops[i].index()
		keep(err)
		keep(checkUnsigned("index", int64(v), bits))
		return v
	}
	lit := func(i int, bits uint, signed bool) int64 {
		v, err := ops[i].literal()
		keep(err)
		if signed {
			keep(checkSigned("literal", v, bits))
		} else if bits < 64 {
			keep(checkUnsigned("literal", v, bits))
		}
		return v
	}
	off := func(i int, bits uint) int64 {
		v, err := ops[i].offset()
		keep(err)
		keep(checkSigned("offset", v, bits))
		return v
	}
	o := uint16(op)

	var units []uint16
	switch f {
	case Format10x:
		units = []uint16{o}
	case Format10t:
		units = []uint16{uint16(uint8(off(0, 8)))<<8 | o}
	case Format11n:
		a := reg(0, 4)
		b := lit(1, 4, true)
		units = []uint16{uint16(b&0xf)<<12 | a<<8 | o}
	case Format11x:
		units = []uint16{reg(0, 8)<<8 | o}
	case Format12x:
		a, b := reg(0, 4), reg(1, 4)
		units = []uint16{b<<12 | a<<8 | o}
	case Format20t:
		units = []uint16{o, uint16(off(0, 16))}
	case Format21c:
		a := reg(0, 8)
		units = []uint16{a<<8 | o, uint16(idx(1, 16))}
	case Format21h:
		a := reg(0, 8)
		units = []uint16{a<<8 | o, uint16(lit(1, 16, false))}
	case Format21s:
		a := reg(0, 8)
		units = []uint16{a<<8 | o, uint16(lit(1, 16, true))}
	case Format21t:
		a := reg(0, 8)
		units = []uint16{a<<8 | o, uint16(off(1, 16))}
	case Format22b:
		a, b := reg(0, 8), reg(1, 8)
		c := lit(2, 8, true)
		units = []uint16{a<<8 | o, uint16(uint8(c))<<8 | b}
	case Format22c:
		a, b := reg(0, 4), reg(1, 4)
		units = []uint16{b<<12 | a<<8 | o, uint16(idx(2, 16))}
	case Format22s:
		a, b := reg(0, 4), reg(1, 4)
		units = []uint16{b<<12 | a<<8 | o, uint16(lit(2, 16, true))}
	case Format22t:
		a, b := reg(0, 4), reg(1, 4)
		units = []uint16{b<<12 | a<<8 | o, uint16(off(2, 16))}
	case Format22x:
		a, b := reg(0, 8), reg(1, 16)
		units = []uint16{a<<8 | o, b}
	case Format23x:
		a, b, c := reg(0, 8), reg(1, 8), reg(2, 8)
		units = []uint16{a<<8 | o, c<<8 | b}
	case Format30t:
		v := uint32(off(0, 32))
		units = []uint16{o, uint16(v), uint16(v >> 16)}
	case Format31c:
		a := reg(0, 8)
		v := idx(1, 32)
		units = []uint16{a<<8 | o, uint16(v), uint16(v >> 16)}
	case Format31i:
		a := reg(0, 8)
		v := uint32(lit(1, 32, true))
		units = []uint16{a<<8 | o, uint16(v), uint16(v >> 16)}
	case Format31t:
		a := reg(0, 8)
		v := uint32(off(1, 32))
		units = []uint16{a<<8 | o, uint16(v), uint16(v >> 16)}
	case Format32x:
		a, b := reg(0, 16), reg(1, 16)
		units = []uint16{o, a, b}
	case Format35c, Format45cc:
		regs, err := ops[0].registerList()
		keep(err)
		if len(regs) > MaxVarArgRegs {
			keep(fmt.Errorf("%d argument registers, at most %d", len(regs), MaxVarArgRegs))
			regs = regs[:MaxVarArgRegs]
		}
		var nibbles [MaxVarArgRegs]uint16
		for i, r := range regs {
			keep(checkUnsigned("register", int64(r), 4))
			nibbles[i] = uint16(r & 0xf)
		}
		b := uint16(idx(1, 16))
		units = []uint16{
			uint16(len(regs))<<12 | nibbles[4]<<8 | o,
			b,
			nibbles[3]<<12 | nibbles[2]<<8 | nibbles[1]<<4 | nibbles[0],
		}
		if f == Format45cc {
			units = append(units, uint16(idx(2, 16)))
		}
	case Format3rc, Format4rcc:
		first, count, err := ops[0].registerRange()
		keep(err)
		keep(checkUnsigned("register count", int64(count), 8))
		keep(checkUnsigned("register", int64(first), 16))
		units = []uint16{uint16(count)<<8 | o, uint16(idx(1, 16)), uint16(first)}
		if f == Format4rcc {
			units = append(units, uint16(idx(2, 16)))
		}
	case Format51l:
		a := reg(0, 8)
		v := uint64(lit(1, 64, false))
		units = []uint16{a<<8 | o, uint16(v), uint16(v >> 16), uint16(v >> 32), uint16(v >> 48)}
	default:
		return nil, fmt.Errorf("unsupported format %s", f)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return units, nil
}
