package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleEncodings(t *testing.T) {
	cases := []struct {
		src  string
		want []uint16
	}{
		{"return-void", []uint16{0x000e}},
		{"return v3", []uint16{0x030f}},
		{"const/4 v1, #0", []uint16{0x0112}},
		{"const/4 v0, #-1", []uint16{0xf012}},
		{"const/16 v2, #-2", []uint16{0x0213, 0xfffe}},
		{"const v1, #65536", []uint16{0x0114, 0x0000, 0x0001}},
		{"const/high16 v0, #1", []uint16{0x0015, 0x0001}},
		{"const-wide v0, #0x100000000", []uint16{0x0018, 0x0000, 0x0000, 0x0001, 0x0000}},
		{"iput v1, v2, field@3", []uint16{0x2159, 0x0003}},
		{"iget-object v0, v1, field@258", []uint16{0x1054, 0x0102}},
		{"invoke-direct {v2}, method@5", []uint16{0x1070, 0x0005, 0x0002}},
		{"invoke-direct {v1, v2, v3, v4, v5}, method@0", []uint16{0x5570, 0x0000, 0x4321}},
		{"invoke-direct/range {v16 .. v18}, method@7", []uint16{0x0376, 0x0007, 0x0010}},
		{"add-int/lit8 v0, v1, #-3", []uint16{0x00d8, 0xfd01}},
		{"goto -2", []uint16{0xfe28}},
		{"move/16 v300, v2", []uint16{0x0003, 0x012c, 0x0002}},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got, err := Assemble(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAssembleErrors(t *testing.T) {
	bad := []string{
		"frobnicate v0",
		"const/4 v16, #0",
		"const/4 v0, #8",
		"iput v1, v2",
		"invoke-direct {v0, v1, v2, v3, v4, v5}, method@1",
		"return x1",
		"iget v0, v1, field",
	}
	for _, src := range bad {
		_, err := Assemble(src)
		assert.Error(t, err, src)
	}
}

func TestAssembleCommentsAndLines(t *testing.T) {
	insns, err := Assemble(`
		// leading comment
		const/4 v0, #0   ; zero
		return v0
	`)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0012, 0x000f}, insns)

	_, err = Assemble("return-void\nbogus v1\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestOperandAccessors(t *testing.T) {
	code := &CodeItem{RegistersSize: 6, InsSize: 3, Insns: MustAssemble(`
		const/4 v1, #-3
		iput-wide v1, v3, field@9
		invoke-direct {v3, v4, v5}, method@12
		const-wide v0, #-2
		const/high16 v2, #0x7fff
		return-void
	`)}
	pairs := code.Instructions()
	require.Len(t, pairs, 6)

	c4 := pairs[0].Inst
	assert.Equal(t, CONST_4, c4.Opcode())
	assert.Equal(t, int32(1), c4.VRegA())
	assert.Equal(t, int32(-3), c4.VRegB())

	iput := pairs[1].Inst
	assert.Equal(t, 1, pairs[1].DexPC)
	assert.Equal(t, uint32(1), iput.VRegA_22c())
	assert.Equal(t, uint32(3), iput.VRegB_22c())
	assert.Equal(t, uint32(9), iput.VRegC_22c())
	assert.Equal(t, MemAccessWide, IPutVariant(iput.Opcode()))

	invoke := pairs[2].Inst
	assert.Equal(t, 3, pairs[2].DexPC)
	assert.Equal(t, uint32(3), invoke.VRegA_35c())
	assert.Equal(t, uint32(12), invoke.VRegB_35c())
	assert.Equal(t, uint32(3), invoke.VRegC_35c())
	var args [MaxVarArgRegs]uint32
	n := invoke.GetVarArgs(&args)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint32{3, 4, 5}, args[:n])

	wide := pairs[3].Inst
	assert.Equal(t, 6, pairs[3].DexPC)
	assert.Equal(t, int64(-2), wide.VRegB_51l())
	assert.Equal(t, uint64(0xfffffffffffffffe), wide.WideVRegB())
	v, ok := wide.Literal()
	assert.True(t, ok)
	assert.Equal(t, int64(-2), v)

	high := pairs[4].Inst
	assert.Equal(t, 11, pairs[4].DexPC)
	assert.Equal(t, int32(0x7fff), high.VRegB())
	assert.Equal(t, uint64(0x7fff), high.WideVRegB())
	v, ok = high.Literal()
	assert.True(t, ok)
	assert.Equal(t, int64(0x7fff0000), v)

	assert.Equal(t, uint32(3), code.ArgStart())
	assert.Equal(t, 14, code.InsnsSizeInCodeUnits())
}

func TestCursorStopsAtEnd(t *testing.T) {
	code := &CodeItem{RegistersSize: 1, InsSize: 1, Insns: MustAssemble("return v0")}
	it := code.Begin()
	assert.False(t, it.Done())
	assert.Equal(t, RETURN, it.Opcode())
	assert.False(t, it.Peek().Valid())

	it.Next()
	assert.True(t, it.Done())
	assert.False(t, it.Inst().Valid())
	assert.Equal(t, NOP, it.Opcode())

	it.Next()
	assert.True(t, it.Done())
	assert.Equal(t, 1, it.DexPC())
}

func TestTruncatedInstructionReadsZero(t *testing.T) {
	// iget-object with its field index unit cut off
	inst := NewInstruction([]uint16{0x1054})
	assert.Equal(t, IGET_OBJECT, inst.Opcode())
	assert.Equal(t, uint32(0), inst.VRegC_22c())
	assert.Equal(t, 2, inst.SizeInCodeUnits())

	code := &CodeItem{RegistersSize: 2, InsSize: 1, Insns: []uint16{0x1054}}
	assert.Error(t, code.Validate())
}

func TestValidate(t *testing.T) {
	ok := &CodeItem{RegistersSize: 2, InsSize: 2, Insns: MustAssemble("return-void")}
	assert.NoError(t, ok.Validate())

	bad := &CodeItem{RegistersSize: 1, InsSize: 2, Insns: MustAssemble("return-void")}
	assert.Error(t, bad.Validate())

	empty := &CodeItem{RegistersSize: 1, InsSize: 1}
	assert.Error(t, empty.Validate())
}

func TestPayloadSizes(t *testing.T) {
	packed := NewInstruction([]uint16{PackedSwitchSignature, 3, 0, 0, 1, 0, 2, 0, 3, 0})
	assert.Equal(t, 10, packed.SizeInCodeUnits())
	sparse := NewInstruction([]uint16{SparseSwitchSignature, 2})
	assert.Equal(t, 10, sparse.SizeInCodeUnits())
	array := NewInstruction([]uint16{ArrayDataSignature, 1, 3, 0})
	assert.Equal(t, 6, array.SizeInCodeUnits())
}

func TestDisassembleRoundTrip(t *testing.T) {
	src := []string{
		"const/4 v1, #-1",
		"const/high16 v0, #1",
		"const-wide/16 v2, #0",
		"const-wide v4, #-9",
		"invoke-direct {v6, v7}, method@3",
		"invoke-static/range {v0 .. v2}, method@1",
		"iput-object v1, v6, field@4",
		"iget-boolean v0, v6, field@5",
		"add-int/lit16 v0, v1, #-300",
		"if-eqz v0, +4",
		"const-string v1, string@2",
		"return-void",
	}
	var lines []string
	for _, s := range src {
		insns, err := Assemble(s)
		require.NoError(t, err)
		lines = append(lines, FormatInstruction(NewInstruction(insns)))
	}
	assert.Equal(t, src, lines)

	code := &CodeItem{RegistersSize: 8, InsSize: 2, Insns: MustAssemble("const/4 v0, #0\nreturn v0")}
	assert.Equal(t, "0000: const/4 v0, #0\n0001: return v0\n", DisassembleToString(code))
}

func TestOpcodePredicates(t *testing.T) {
	for op := 0; op < 256; op++ {
		o := Opcode(op)
		assert.Equal(t, o >= CONST_4 && o <= CONST_WIDE_HIGH16, IsInstructionDirectConst(o))
		if IsInstructionConstWide(o) {
			assert.True(t, IsInstructionDirectConst(o))
		}
		if IsInstructionIGet(o) {
			assert.Equal(t, IGetVariant(o), IPutVariant(o+(IPUT-IGET)))
			assert.Equal(t, Format22c, FormatOf(o))
		}
	}
	got, ok := LookupOpcode("invoke-direct")
	assert.True(t, ok)
	assert.Equal(t, INVOKE_DIRECT, got)
	assert.Equal(t, "unused-3e", OpcodeToString(0x3e))
	assert.Equal(t, "iput-short", IPUT_SHORT.String())
}

func TestAnalyze(t *testing.T) {
	code := &CodeItem{RegistersSize: 3, InsSize: 1, Insns: MustAssemble(`
		const/4 v0, #0
		const/4 v1, #0
		invoke-direct {v2}, method@0
		return-void
	`)}
	stats := Analyze(code)
	assert.Equal(t, 4, stats.InstructionCount)
	assert.Equal(t, 6, stats.CodeUnits)
	assert.Equal(t, 2, stats.OpcodeDistribution[CONST_4])
	assert.Equal(t, 1, stats.OpcodeDistribution[INVOKE_DIRECT])
	assert.Equal(t, 4, code.CountInstructions())

	total := Analyze(nil)
	total.Merge(stats)
	total.Merge(stats)
	assert.Equal(t, 8, total.InstructionCount)
	assert.Equal(t, 4, total.OpcodeDistribution[CONST_4])
}
