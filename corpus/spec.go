package corpus

// The JSON form of a corpus. Classes live in the dex file that defines
// them and refer to fields and methods through that file's id tables, the
// same way compiled code does.

type Spec struct {
	DexFiles []DexFileSpec `json:"dex_files"`
}

type DexFileSpec struct {
	Location  string         `json:"location"`
	FieldIDs  []FieldIDSpec  `json:"field_ids,omitempty"`
	MethodIDs []MethodIDSpec `json:"method_ids,omitempty"`
	Classes   []ClassSpec    `json:"classes,omitempty"`
}

// FieldIDSpec is a symbolic field reference. Unresolved ids model fields
// the runtime has not resolved yet.
type FieldIDSpec struct {
	Index      uint32 `json:"index"`
	Class      string `json:"class"`
	Name       string `json:"name"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

type MethodIDSpec struct {
	Index      uint32 `json:"index"`
	Class      string `json:"class"`
	Name       string `json:"name"`
	Proto      string `json:"proto,omitempty"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

type ClassSpec struct {
	Descriptor string       `json:"descriptor"`
	Super      string       `json:"super,omitempty"`
	Unverified bool         `json:"unverified,omitempty"`
	Flags      []string     `json:"flags,omitempty"`
	Fields     []FieldSpec  `json:"fields,omitempty"`
	Methods    []MethodSpec `json:"methods,omitempty"`
}

type FieldSpec struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Flags []string `json:"flags,omitempty"`
	// Offset is computed from the class layout when absent.
	Offset *uint32 `json:"offset,omitempty"`
}

// MethodSpec defines a method body. Code is assembler text; Insns gives
// raw code units instead. Native and abstract methods carry neither.
type MethodSpec struct {
	MethodIdx uint32   `json:"method_idx"`
	Flags     []string `json:"flags,omitempty"`
	Registers uint16   `json:"registers"`
	Ins       uint16   `json:"ins"`
	Outs      uint16   `json:"outs,omitempty"`
	Code      string   `json:"code,omitempty"`
	Insns     []uint16 `json:"insns,omitempty"`
}
