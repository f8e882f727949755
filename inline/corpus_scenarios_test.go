package inline_test

import (
	"testing"

	"github.com/colorfulnotion/dexinline/corpus"
	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
	"github.com/colorfulnotion/dexinline/inline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSample(t *testing.T) (*corpus.Corpus, *inline.Analyser) {
	t.Helper()
	c, err := corpus.Load("../corpus/testdata/sample.json")
	require.NoError(t, err)
	return c, inline.NewAnalyser(c)
}

func TestSampleCorpus(t *testing.T) {
	c, a := loadSample(t)
	tests := []struct {
		class  string
		method string
		want   inline.InlineMethod
		err    error
	}{
		{"Lcom/example/Point;", "<init>(II)V", inline.InlineMethod{
			Opcode:          inline.InlineOpConstructor,
			ConstructorData: inline.InlineConstructorData{IPuts: []inline.ConstructorIPut{{FieldIndex: 0, Arg: 1}, {FieldIndex: 1, Arg: 2}}},
		}, nil},
		{"Lcom/example/Point;", "<init>()V", inline.InlineMethod{Opcode: inline.InlineOpConstructor}, nil},
		{"Lcom/example/Point3;", "<init>", inline.InlineMethod{
			Opcode: inline.InlineOpConstructor,
			ConstructorData: inline.InlineConstructorData{IPuts: []inline.ConstructorIPut{
				{FieldIndex: 0, Arg: 1}, {FieldIndex: 1, Arg: 2}, {FieldIndex: 2, Arg: 3},
			}},
		}, nil},
		{"Lcom/example/Point;", "getX", inline.InlineMethod{
			Opcode:     inline.InlineOpIGet,
			IFieldData: inline.InlineIGetIPutData{FieldIdx: 0, FieldOffset: 8},
		}, nil},
		{"Lcom/example/Point3;", "getX3", inline.InlineMethod{
			Opcode:     inline.InlineOpIGet,
			IFieldData: inline.InlineIGetIPutData{FieldIdx: 3, FieldOffset: 8},
		}, nil},
		{"Lcom/example/Point;", "setY", inline.InlineMethod{
			Opcode:     inline.InlineOpIPut,
			IFieldData: inline.InlineIGetIPutData{SrcArg: 1, FieldIdx: 1, FieldOffset: 12},
		}, nil},
		{"Lcom/example/Point;", "setYAndReturn", inline.InlineMethod{
			Opcode:     inline.InlineOpIPut,
			IFieldData: inline.InlineIGetIPutData{SrcArg: 1, ReturnArgPlus1: 2, FieldIdx: 1, FieldOffset: 12},
		}, nil},
		{"Lcom/example/Point;", "access$000", inline.InlineMethod{
			Opcode:     inline.InlineOpIGet,
			IFieldData: inline.InlineIGetIPutData{MethodIsStatic: true, FieldIdx: 0, FieldOffset: 8},
		}, nil},
		{"Lcom/example/Point;", "answer", inline.InlineMethod{Opcode: inline.InlineOpNonWideConst, Data: 42}, nil},
		{"Lcom/example/Point;", "big", inline.InlineMethod{Opcode: inline.InlineOpNonWideConst, Data: 0x10000}, nil},
		{"Lcom/example/Point;", "name", inline.InlineMethod{Opcode: inline.InlineOpNonWideConst}, nil},
		{"Lcom/example/Point;", "identity", inline.InlineMethod{Opcode: inline.InlineOpReturnArg, ReturnData: inline.InlineReturnArgData{Arg: 1}}, nil},
		{"Lcom/example/Point;", "nothing", inline.InlineMethod{Opcode: inline.InlineOpNop}, nil},
		{"Lcom/example/Counter;", "<init>", inline.InlineMethod{Opcode: inline.InlineOpConstructor}, nil},
		{"Lcom/example/Point;", "sum", inline.InlineMethod{}, dexerrors.ErrSUnsupportedOpcode},
		{"Lcom/example/Point;", "peek", inline.InlineMethod{}, dexerrors.ErrCNotSyntheticAccessor},
		{"Lcom/example/Point;", "getPending", inline.InlineMethod{}, dexerrors.ErrRUnresolvedField},
		{"Lcom/example/Point;", "nativeHash", inline.InlineMethod{}, dexerrors.ErrSNoCodeItem},
		{"Lcom/example/Sneaky;", "hidden", inline.InlineMethod{}, dexerrors.ErrCFieldNotAccessible},
		{"Lcom/example/Counter;", "getCount", inline.InlineMethod{}, dexerrors.ErrCStaticField},
		{"Lcom/example/Derived;", "<init>", inline.InlineMethod{}, dexerrors.ErrCCrossDexFieldIndex},
		{"Lcom/example/Wide;", "<init>", inline.InlineMethod{}, dexerrors.ErrCIPutCapacity},
		{"Lcom/example/Lazy;", "<init>", inline.InlineMethod{}, dexerrors.ErrCClassNotVerified},
	}
	for _, tt := range tests {
		t.Run(tt.class+"."+tt.method, func(t *testing.T) {
			m, err := c.FindMethod(tt.class, tt.method)
			require.NoError(t, err)
			var out inline.InlineMethod
			err = a.ExplainMethod(m, &out)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, inline.InlineMethod{}, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSampleConstructorChain(t *testing.T) {
	c, a := loadSample(t)
	m, err := c.FindMethod("Lcom/example/Point3;", "<init>")
	require.NoError(t, err)
	link, _, err := a.ConstructorChain(m)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), link.Forwarded)
	require.NotNil(t, link.Callee)
	assert.Equal(t, "Lcom/example/Point;", link.Callee.Class)
	assert.True(t, link.Callee.ObjectInit)
	assert.Nil(t, link.Callee.Callee)
}

// Scenario: a same-class forwarding constructor passing as many arguments
// as it receives is rejected before recursing.
func TestSampleSameClassForwarding(t *testing.T) {
	spec := &corpus.Spec{DexFiles: []corpus.DexFileSpec{{
		Location:  "loop.dex",
		FieldIDs:  []corpus.FieldIDSpec{{Index: 0, Class: "LLoop;", Name: "y"}},
		MethodIDs: []corpus.MethodIDSpec{{Index: 0, Class: "LLoop;", Name: "<init>", Proto: "(I)V"}},
		Classes: []corpus.ClassSpec{{
			Descriptor: "LLoop;",
			Fields:     []corpus.FieldSpec{{Name: "y", Type: "I"}},
			Methods: []corpus.MethodSpec{{
				MethodIdx: 0, Registers: 2, Ins: 2,
				Code: "invoke-direct {v0, v1}, method@0\niput v1, v0, field@0\nreturn-void",
			}},
		}},
	}}}
	c, err := corpus.New(spec)
	require.NoError(t, err)
	m, err := c.FindMethod("LLoop;", "<init>")
	require.NoError(t, err)
	assert.ErrorIs(t, inline.NewAnalyser(c).ExplainMethod(m, nil), dexerrors.ErrFSameClassForwarding)
}

func TestAnalyseMethodCodeWithoutHandle(t *testing.T) {
	c, a := loadSample(t)
	m, err := c.FindMethod("Lcom/example/Point;", "big")
	require.NoError(t, err)
	code := &dex.CodeItem{RegistersSize: 1, InsSize: 1, Insns: dex.MustAssemble("const/high16 v0, #1\nreturn v0")}
	var out inline.InlineMethod
	require.True(t, a.AnalyseMethodCode(code, m.Reference(), false, nil, &out))
	assert.Equal(t, uint64(0x10000), out.Data)
}
