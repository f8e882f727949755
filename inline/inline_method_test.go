package inline

import (
	"testing"

	"github.com/colorfulnotion/dexinline/dex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackLayout(t *testing.T) {
	iget := InlineMethod{
		Opcode: InlineOpIGet,
		IFieldData: InlineIGetIPutData{
			OpVariant:      dex.MemAccessShort,
			MethodIsStatic: true,
			ObjectArg:      1,
			SrcArg:         2,
			ReturnArgPlus1: 3,
			FieldIdx:       0xabcd,
			IsVolatile:     true,
			FieldOffset:    0x10,
		},
	}
	word, err := iget.Pack()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10)<<33|1<<32|0xabcd<<16|3<<12|2<<8|1<<4|1<<3|6, word)

	ctor := InlineMethod{
		Opcode:          InlineOpConstructor,
		ConstructorData: InlineConstructorData{IPuts: []ConstructorIPut{{FieldIndex: 7, Arg: 1}, {FieldIndex: 9, Arg: 15}}},
	}
	word, err = ctor.Pack()
	require.NoError(t, err)
	assert.Equal(t, uint64(15)<<52|1<<48|0xffff<<32|9<<16|7, word)

	ret := InlineMethod{Opcode: InlineOpReturnArg, ReturnData: InlineReturnArgData{Arg: 4, IsObject: true}}
	word, err = ret.Pack()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<17|4), word)
}

func TestUnpackInverse(t *testing.T) {
	for _, m := range []InlineMethod{
		{Opcode: InlineOpNop},
		{Opcode: InlineOpNonWideConst, Data: 0xffffffff80000000},
		{Opcode: InlineOpReturnArg, ReturnData: InlineReturnArgData{Arg: 2, IsWide: true}},
		{Opcode: InlineOpIPut, IFieldData: InlineIGetIPutData{OpVariant: dex.MemAccessObject, SrcArg: 1, ReturnArgPlus1: 2, FieldIdx: 3, FieldOffset: 1<<31 - 1}},
		{Opcode: InlineOpConstructor},
		{Opcode: InlineOpConstructor, ConstructorData: InlineConstructorData{IPuts: []ConstructorIPut{{1, 1}, {2, 2}, {3, 3}}}},
	} {
		word, err := m.Pack()
		require.NoError(t, err, m.String())
		got, err := UnpackInlineMethod(m.Opcode, word)
		require.NoError(t, err)
		assert.Equal(t, m, got, m.String())
	}
	_, err := UnpackInlineMethod(InlineMethodOpcode(42), 0)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	bad := []InlineMethod{
		{Opcode: InlineOpIGet, IFieldData: InlineIGetIPutData{ObjectArg: 16}},
		{Opcode: InlineOpIPut, IFieldData: InlineIGetIPutData{ReturnArgPlus1: 16}},
		{Opcode: InlineOpIPut, IFieldData: InlineIGetIPutData{FieldOffset: 1 << 31}},
		{Opcode: InlineOpIGet, IFieldData: InlineIGetIPutData{OpVariant: 8}},
		{Opcode: InlineOpConstructor, ConstructorData: InlineConstructorData{IPuts: make([]ConstructorIPut, 4)}},
		{Opcode: InlineOpConstructor, ConstructorData: InlineConstructorData{IPuts: []ConstructorIPut{{FieldIndex: NoFieldIndex}}}},
		{Opcode: InlineOpConstructor, ConstructorData: InlineConstructorData{IPuts: []ConstructorIPut{{FieldIndex: 1, Arg: 16}}}},
		{Opcode: InlineMethodOpcode(9)},
	}
	for _, m := range bad {
		assert.Error(t, m.Validate(), m.String())
		_, err := m.Pack()
		assert.Error(t, err)
	}
}

func TestOpcodeNames(t *testing.T) {
	assert.Equal(t, "constructor", InlineOpConstructor.String())
	assert.Equal(t, "inline-op(9)", InlineMethodOpcode(9).String())
	m := InlineMethod{Opcode: InlineOpConstructor, ConstructorData: InlineConstructorData{IPuts: []ConstructorIPut{{FieldIndex: 3, Arg: 1}}}}
	assert.Equal(t, "constructor field@3=arg1", m.String())
}
