package dex

// Dalvik Instructions - Unified Definition
// Opcode values follow the Dalvik bytecode reference. All other packages
// should import and use these constants instead of defining their own.

// Opcode is the low byte of the first code unit of an instruction.
type Opcode byte

// Moves and returns.
const (
	NOP                Opcode = 0x00
	MOVE               Opcode = 0x01
	MOVE_FROM16        Opcode = 0x02
	MOVE_16            Opcode = 0x03
	MOVE_WIDE          Opcode = 0x04
	MOVE_WIDE_FROM16   Opcode = 0x05
	MOVE_WIDE_16       Opcode = 0x06
	MOVE_OBJECT        Opcode = 0x07
	MOVE_OBJECT_FROM16 Opcode = 0x08
	MOVE_OBJECT_16     Opcode = 0x09
	MOVE_RESULT        Opcode = 0x0a
	MOVE_RESULT_WIDE   Opcode = 0x0b
	MOVE_RESULT_OBJECT Opcode = 0x0c
	MOVE_EXCEPTION     Opcode = 0x0d
	RETURN_VOID        Opcode = 0x0e
	RETURN             Opcode = 0x0f
	RETURN_WIDE        Opcode = 0x10
	RETURN_OBJECT      Opcode = 0x11
)

// Constants.
const (
	CONST_4            Opcode = 0x12
	CONST_16           Opcode = 0x13
	CONST              Opcode = 0x14
	CONST_HIGH16       Opcode = 0x15
	CONST_WIDE_16      Opcode = 0x16
	CONST_WIDE_32      Opcode = 0x17
	CONST_WIDE         Opcode = 0x18
	CONST_WIDE_HIGH16  Opcode = 0x19
	CONST_STRING       Opcode = 0x1a
	CONST_STRING_JUMBO Opcode = 0x1b
	CONST_CLASS        Opcode = 0x1c
)

// Object and control flow.
const (
	MONITOR_ENTER          Opcode = 0x1d
	MONITOR_EXIT           Opcode = 0x1e
	CHECK_CAST             Opcode = 0x1f
	INSTANCE_OF            Opcode = 0x20
	ARRAY_LENGTH           Opcode = 0x21
	NEW_INSTANCE           Opcode = 0x22
	NEW_ARRAY              Opcode = 0x23
	FILLED_NEW_ARRAY       Opcode = 0x24
	FILLED_NEW_ARRAY_RANGE Opcode = 0x25
	FILL_ARRAY_DATA        Opcode = 0x26
	THROW                  Opcode = 0x27
	GOTO                   Opcode = 0x28
	GOTO_16                Opcode = 0x29
	GOTO_32                Opcode = 0x2a
	PACKED_SWITCH          Opcode = 0x2b
	SPARSE_SWITCH          Opcode = 0x2c
	CMPL_FLOAT             Opcode = 0x2d
	CMPG_FLOAT             Opcode = 0x2e
	CMPL_DOUBLE            Opcode = 0x2f
	CMPG_DOUBLE            Opcode = 0x30
	CMP_LONG               Opcode = 0x31
	IF_EQ                  Opcode = 0x32
	IF_NE                  Opcode = 0x33
	IF_LT                  Opcode = 0x34
	IF_GE                  Opcode = 0x35
	IF_GT                  Opcode = 0x36
	IF_LE                  Opcode = 0x37
	IF_EQZ                 Opcode = 0x38
	IF_NEZ                 Opcode = 0x39
	IF_LTZ                 Opcode = 0x3a
	IF_GEZ                 Opcode = 0x3b
	IF_GTZ                 Opcode = 0x3c
	IF_LEZ                 Opcode = 0x3d
)

// Array and field access.
const (
	AGET         Opcode = 0x44
	AGET_WIDE    Opcode = 0x45
	AGET_OBJECT  Opcode = 0x46
	AGET_BOOLEAN Opcode = 0x47
	AGET_BYTE    Opcode = 0x48
	AGET_CHAR    Opcode = 0x49
	AGET_SHORT   Opcode = 0x4a
	APUT         Opcode = 0x4b
	APUT_WIDE    Opcode = 0x4c
	APUT_OBJECT  Opcode = 0x4d
	APUT_BOOLEAN Opcode = 0x4e
	APUT_BYTE    Opcode = 0x4f
	APUT_CHAR    Opcode = 0x50
	APUT_SHORT   Opcode = 0x51
	IGET         Opcode = 0x52
	IGET_WIDE    Opcode = 0x53
	IGET_OBJECT  Opcode = 0x54
	IGET_BOOLEAN Opcode = 0x55
	IGET_BYTE    Opcode = 0x56
	IGET_CHAR    Opcode = 0x57
	IGET_SHORT   Opcode = 0x58
	IPUT         Opcode = 0x59
	IPUT_WIDE    Opcode = 0x5a
	IPUT_OBJECT  Opcode = 0x5b
	IPUT_BOOLEAN Opcode = 0x5c
	IPUT_BYTE    Opcode = 0x5d
	IPUT_CHAR    Opcode = 0x5e
	IPUT_SHORT   Opcode = 0x5f
	SGET         Opcode = 0x60
	SGET_WIDE    Opcode = 0x61
	SGET_OBJECT  Opcode = 0x62
	SGET_BOOLEAN Opcode = 0x63
	SGET_BYTE    Opcode = 0x64
	SGET_CHAR    Opcode = 0x65
	SGET_SHORT   Opcode = 0x66
	SPUT         Opcode = 0x67
	SPUT_WIDE    Opcode = 0x68
	SPUT_OBJECT  Opcode = 0x69
	SPUT_BOOLEAN Opcode = 0x6a
	SPUT_BYTE    Opcode = 0x6b
	SPUT_CHAR    Opcode = 0x6c
	SPUT_SHORT   Opcode = 0x6d
)

// Invokes.
const (
	INVOKE_VIRTUAL         Opcode = 0x6e
	INVOKE_SUPER           Opcode = 0x6f
	INVOKE_DIRECT          Opcode = 0x70
	INVOKE_STATIC          Opcode = 0x71
	INVOKE_INTERFACE       Opcode = 0x72
	RETURN_VOID_NO_BARRIER Opcode = 0x73
	INVOKE_VIRTUAL_RANGE   Opcode = 0x74
	INVOKE_SUPER_RANGE     Opcode = 0x75
	INVOKE_DIRECT_RANGE    Opcode = 0x76
	INVOKE_STATIC_RANGE    Opcode = 0x77
	INVOKE_INTERFACE_RANGE Opcode = 0x78
)

// Arithmetic. Only the boundaries of each group are named, the rest are
// reachable through the opcode table.
const (
	NEG_INT          Opcode = 0x7b
	INT_TO_SHORT     Opcode = 0x8f
	ADD_INT          Opcode = 0x90
	REM_DOUBLE       Opcode = 0xaf
	ADD_INT_2ADDR    Opcode = 0xb0
	REM_DOUBLE_2ADDR Opcode = 0xcf
	ADD_INT_LIT16    Opcode = 0xd0
	XOR_INT_LIT16    Opcode = 0xd7
	ADD_INT_LIT8     Opcode = 0xd8
	USHR_INT_LIT8    Opcode = 0xe2
)

// Quickened and late additions.
const (
	IGET_QUICK                 Opcode = 0xe3
	IGET_WIDE_QUICK            Opcode = 0xe4
	IGET_OBJECT_QUICK          Opcode = 0xe5
	IPUT_QUICK                 Opcode = 0xe6
	IPUT_WIDE_QUICK            Opcode = 0xe7
	IPUT_OBJECT_QUICK          Opcode = 0xe8
	INVOKE_VIRTUAL_QUICK       Opcode = 0xe9
	INVOKE_VIRTUAL_RANGE_QUICK Opcode = 0xea
	IPUT_BOOLEAN_QUICK         Opcode = 0xeb
	IPUT_BYTE_QUICK            Opcode = 0xec
	IPUT_CHAR_QUICK            Opcode = 0xed
	IPUT_SHORT_QUICK           Opcode = 0xee
	IGET_BOOLEAN_QUICK         Opcode = 0xef
	IGET_BYTE_QUICK            Opcode = 0xf0
	IGET_CHAR_QUICK            Opcode = 0xf1
	IGET_SHORT_QUICK           Opcode = 0xf2
	INVOKE_POLYMORPHIC         Opcode = 0xfa
	INVOKE_POLYMORPHIC_RANGE   Opcode = 0xfb
	INVOKE_CUSTOM              Opcode = 0xfc
	INVOKE_CUSTOM_RANGE        Opcode = 0xfd
	CONST_METHOD_HANDLE        Opcode = 0xfe
	CONST_METHOD_TYPE          Opcode = 0xff
)

// Format is the encoding shape of an instruction. The first digit is the
// width in code units, the second the register count, the letter the kind
// of extra data.
type Format uint8

const (
	Format10x Format = iota
	Format10t
	Format11n
	Format11x
	Format12x
	Format20t
	Format21c
	Format21h
	Format21s
	Format21t
	Format22b
	Format22c
	Format22s
	Format22t
	Format22x
	Format23x
	Format30t
	Format31c
	Format31i
	Format31t
	Format32x
	Format35c
	Format3rc
	Format45cc
	Format4rcc
	Format51l
)

var formatNames = [...]string{
	Format10x: "10x", Format10t: "10t", Format11n: "11n", Format11x: "11x",
	Format12x: "12x", Format20t: "20t", Format21c: "21c", Format21h: "21h",
	Format21s: "21s", Format21t: "21t", Format22b: "22b", Format22c: "22c",
	Format22s: "22s", Format22t: "22t", Format22x: "22x", Format23x: "23x",
	Format30t: "30t", Format31c: "31c", Format31i: "31i", Format31t: "31t",
	Format32x: "32x", Format35c: "35c", Format3rc: "3rc", Format45cc: "45cc",
	Format4rcc: "4rcc", Format51l: "51l",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Width returns the size of an instruction of this format in code units.
func (f Format) Width() int {
	switch f {
	case Format10x, Format10t, Format11n, Format11x, Format12x:
		return 1
	case Format30t, Format31c, Format31i, Format31t, Format32x, Format35c, Format3rc:
		return 3
	case Format45cc, Format4rcc:
		return 4
	case Format51l:
		return 5
	default:
		return 2
	}
}

// IndexKind names the constant pool an index operand refers to.
type IndexKind uint8

const (
	IndexNone IndexKind = iota
	IndexString
	IndexType
	IndexField
	IndexMethod
	IndexMethodAndProto
	IndexCallSite
	IndexMethodHandle
	IndexProto
	IndexFieldOffset
	IndexVtableOffset
)

var indexKindPrefix = [...]string{
	IndexNone: "", IndexString: "string", IndexType: "type", IndexField: "field",
	IndexMethod: "method", IndexMethodAndProto: "method", IndexCallSite: "call_site",
	IndexMethodHandle: "method_handle", IndexProto: "proto",
	IndexFieldOffset: "offset", IndexVtableOffset: "vtable",
}

type opcodeInfo struct {
	name   string
	format Format
	index  IndexKind
}

var opcodeTable [256]opcodeInfo

func register(op Opcode, name string, format Format, index IndexKind) {
	opcodeTable[op] = opcodeInfo{name: name, format: format, index: index}
}

// registerSeq registers consecutive opcodes sharing one format.
func registerSeq(first Opcode, format Format, index IndexKind, names ...string) {
	for i, name := range names {
		register(first+Opcode(i), name, format, index)
	}
}

var typedSuffixes = []string{"", "-wide", "-object", "-boolean", "-byte", "-char", "-short"}

func withSuffixes(base string) []string {
	names := make([]string, len(typedSuffixes))
	for i, s := range typedSuffixes {
		names[i] = base + s
	}
	return names
}

var binops = []string{
	"add-int", "sub-int", "mul-int", "div-int", "rem-int", "and-int", "or-int", "xor-int", "shl-int", "shr-int", "ushr-int",
	"add-long", "sub-long", "mul-long", "div-long", "rem-long", "and-long", "or-long", "xor-long", "shl-long", "shr-long", "ushr-long",
	"add-float", "sub-float", "mul-float", "div-float", "rem-float",
	"add-double", "sub-double", "mul-double", "div-double", "rem-double",
}

func init() {
	for i := range opcodeTable {
		opcodeTable[i] = opcodeInfo{name: unusedName(Opcode(i)), format: Format10x}
	}

	register(NOP, "nop", Format10x, IndexNone)
	registerSeq(MOVE, Format12x, IndexNone, "move")
	registerSeq(MOVE_FROM16, Format22x, IndexNone, "move/from16")
	registerSeq(MOVE_16, Format32x, IndexNone, "move/16")
	registerSeq(MOVE_WIDE, Format12x, IndexNone, "move-wide")
	registerSeq(MOVE_WIDE_FROM16, Format22x, IndexNone, "move-wide/from16")
	registerSeq(MOVE_WIDE_16, Format32x, IndexNone, "move-wide/16")
	registerSeq(MOVE_OBJECT, Format12x, IndexNone, "move-object")
	registerSeq(MOVE_OBJECT_FROM16, Format22x, IndexNone, "move-object/from16")
	registerSeq(MOVE_OBJECT_16, Format32x, IndexNone, "move-object/16")
	registerSeq(MOVE_RESULT, Format11x, IndexNone, "move-result", "move-result-wide", "move-result-object", "move-exception")
	register(RETURN_VOID, "return-void", Format10x, IndexNone)
	registerSeq(RETURN, Format11x, IndexNone, "return", "return-wide", "return-object")

	register(CONST_4, "const/4", Format11n, IndexNone)
	register(CONST_16, "const/16", Format21s, IndexNone)
	register(CONST, "const", Format31i, IndexNone)
	register(CONST_HIGH16, "const/high16", Format21h, IndexNone)
	register(CONST_WIDE_16, "const-wide/16", Format21s, IndexNone)
	register(CONST_WIDE_32, "const-wide/32", Format31i, IndexNone)
	register(CONST_WIDE, "const-wide", Format51l, IndexNone)
	register(CONST_WIDE_HIGH16, "const-wide/high16", Format21h, IndexNone)
	register(CONST_STRING, "const-string", Format21c, IndexString)
	register(CONST_STRING_JUMBO, "const-string/jumbo", Format31c, IndexString)
	register(CONST_CLASS, "const-class", Format21c, IndexType)

	registerSeq(MONITOR_ENTER, Format11x, IndexNone, "monitor-enter", "monitor-exit")
	register(CHECK_CAST, "check-cast", Format21c, IndexType)
	register(INSTANCE_OF, "instance-of", Format22c, IndexType)
	register(ARRAY_LENGTH, "array-length", Format12x, IndexNone)
	register(NEW_INSTANCE, "new-instance", Format21c, IndexType)
	register(NEW_ARRAY, "new-array", Format22c, IndexType)
	register(FILLED_NEW_ARRAY, "filled-new-array", Format35c, IndexType)
	register(FILLED_NEW_ARRAY_RANGE, "filled-new-array/range", Format3rc, IndexType)
	register(FILL_ARRAY_DATA, "fill-array-data", Format31t, IndexNone)
	register(THROW, "throw", Format11x, IndexNone)
	register(GOTO, "goto", Format10t, IndexNone)
	register(GOTO_16, "goto/16", Format20t, IndexNone)
	register(GOTO_32, "goto/32", Format30t, IndexNone)
	registerSeq(PACKED_SWITCH, Format31t, IndexNone, "packed-switch", "sparse-switch")
	registerSeq(CMPL_FLOAT, Format23x, IndexNone, "cmpl-float", "cmpg-float", "cmpl-double", "cmpg-double", "cmp-long")
	registerSeq(IF_EQ, Format22t, IndexNone, "if-eq", "if-ne", "if-lt", "if-ge", "if-gt", "if-le")
	registerSeq(IF_EQZ, Format21t, IndexNone, "if-eqz", "if-nez", "if-ltz", "if-gez", "if-gtz", "if-lez")

	registerSeq(AGET, Format23x, IndexNone, withSuffixes("aget")...)
	registerSeq(APUT, Format23x, IndexNone, withSuffixes("aput")...)
	registerSeq(IGET, Format22c, IndexField, withSuffixes("iget")...)
	registerSeq(IPUT, Format22c, IndexField, withSuffixes("iput")...)
	registerSeq(SGET, Format21c, IndexField, withSuffixes("sget")...)
	registerSeq(SPUT, Format21c, IndexField, withSuffixes("sput")...)

	registerSeq(INVOKE_VIRTUAL, Format35c, IndexMethod,
		"invoke-virtual", "invoke-super", "invoke-direct", "invoke-static", "invoke-interface")
	register(RETURN_VOID_NO_BARRIER, "return-void-no-barrier", Format10x, IndexNone)
	registerSeq(INVOKE_VIRTUAL_RANGE, Format3rc, IndexMethod,
		"invoke-virtual/range", "invoke-super/range", "invoke-direct/range", "invoke-static/range", "invoke-interface/range")

	registerSeq(NEG_INT, Format12x, IndexNone,
		"neg-int", "not-int", "neg-long", "not-long", "neg-float", "neg-double",
		"int-to-long", "int-to-float", "int-to-double", "long-to-int", "long-to-float", "long-to-double",
		"float-to-int", "float-to-long", "float-to-double", "double-to-int", "double-to-long", "double-to-float",
		"int-to-byte", "int-to-char", "int-to-short")
	registerSeq(ADD_INT, Format23x, IndexNone, binops...)
	addr := make([]string, len(binops))
	for i, name := range binops {
		addr[i] = name + "/2addr"
	}
	registerSeq(ADD_INT_2ADDR, Format12x, IndexNone, addr...)
	registerSeq(ADD_INT_LIT16, Format22s, IndexNone,
		"add-int/lit16", "rsub-int", "mul-int/lit16", "div-int/lit16", "rem-int/lit16", "and-int/lit16", "or-int/lit16", "xor-int/lit16")
	registerSeq(ADD_INT_LIT8, Format22b, IndexNone,
		"add-int/lit8", "rsub-int/lit8", "mul-int/lit8", "div-int/lit8", "rem-int/lit8", "and-int/lit8",
		"or-int/lit8", "xor-int/lit8", "shl-int/lit8", "shr-int/lit8", "ushr-int/lit8")

	registerSeq(IGET_QUICK, Format22c, IndexFieldOffset, "iget-quick", "iget-wide-quick", "iget-object-quick",
		"iput-quick", "iput-wide-quick", "iput-object-quick")
	register(INVOKE_VIRTUAL_QUICK, "invoke-virtual-quick", Format35c, IndexVtableOffset)
	register(INVOKE_VIRTUAL_RANGE_QUICK, "invoke-virtual/range-quick", Format3rc, IndexVtableOffset)
	registerSeq(IPUT_BOOLEAN_QUICK, Format22c, IndexFieldOffset, "iput-boolean-quick", "iput-byte-quick",
		"iput-char-quick", "iput-short-quick", "iget-boolean-quick", "iget-byte-quick", "iget-char-quick", "iget-short-quick")
	register(INVOKE_POLYMORPHIC, "invoke-polymorphic", Format45cc, IndexMethodAndProto)
	register(INVOKE_POLYMORPHIC_RANGE, "invoke-polymorphic/range", Format4rcc, IndexMethodAndProto)
	register(INVOKE_CUSTOM, "invoke-custom", Format35c, IndexCallSite)
	register(INVOKE_CUSTOM_RANGE, "invoke-custom/range", Format3rc, IndexCallSite)
	register(CONST_METHOD_HANDLE, "const-method-handle", Format21c, IndexMethodHandle)
	register(CONST_METHOD_TYPE, "const-method-type", Format21c, IndexProto)

	for i, info := range opcodeTable {
		opcodeByName[info.name] = Opcode(i)
	}
}

var opcodeByName = make(map[string]Opcode, 256)

func unusedName(op Opcode) string {
	const hex = "0123456789abcdef"
	return "unused-" + string([]byte{hex[op>>4], hex[op&0xf]})
}

// OpcodeToString returns the string representation of an opcode
func OpcodeToString(op Opcode) string {
	return opcodeTable[op].name
}

func (op Opcode) String() string {
	return OpcodeToString(op)
}

// FormatOf returns the encoding shape of an opcode.
func FormatOf(op Opcode) Format {
	return opcodeTable[op].format
}

// IndexKindOf returns which constant pool the index operand of op refers to.
func IndexKindOf(op Opcode) IndexKind {
	return opcodeTable[op].index
}

// LookupOpcode maps a mnemonic such as "iget-object" back to its opcode.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// IsInstructionDirectConst reports whether op loads a numeric literal.
func IsInstructionDirectConst(op Opcode) bool {
	return CONST_4 <= op && op <= CONST_WIDE_HIGH16
}

// IsInstructionConstWide reports whether op loads a 64-bit literal into a register pair.
func IsInstructionConstWide(op Opcode) bool {
	return CONST_WIDE_16 <= op && op <= CONST_WIDE_HIGH16
}

func IsInstructionIGet(op Opcode) bool {
	return IGET <= op && op <= IGET_SHORT
}

func IsInstructionIPut(op Opcode) bool {
	return IPUT <= op && op <= IPUT_SHORT
}

func IsInstructionReturn(op Opcode) bool {
	return RETURN_VOID <= op && op <= RETURN_OBJECT
}

// MemAccessType is the typed variant shared by the iget and iput families.
type MemAccessType uint8

const (
	MemAccessWord MemAccessType = iota
	MemAccessWide
	MemAccessObject
	MemAccessBoolean
	MemAccessByte
	MemAccessChar
	MemAccessShort
)

var memAccessNames = [...]string{"word", "wide", "object", "boolean", "byte", "char", "short"}

func (t MemAccessType) String() string {
	if int(t) < len(memAccessNames) {
		return memAccessNames[t]
	}
	return "unknown"
}

// IGetVariant returns the typed variant of an iget opcode.
func IGetVariant(op Opcode) MemAccessType {
	return MemAccessType(op - IGET)
}

// IPutVariant returns the typed variant of an iput opcode.
func IPutVariant(op Opcode) MemAccessType {
	return MemAccessType(op - IPUT)
}
