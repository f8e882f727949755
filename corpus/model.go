package corpus

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/inline"
)

type AccessFlags uint32

const (
	AccPublic AccessFlags = 1 << iota
	AccPrivate
	AccProtected
	AccStatic
	AccFinal
	AccVolatile
	AccSynthetic
	AccNative
	AccAbstract
	AccConstructor
)

var accessFlagNames = []struct {
	name string
	flag AccessFlags
}{
	{"public", AccPublic},
	{"private", AccPrivate},
	{"protected", AccProtected},
	{"static", AccStatic},
	{"final", AccFinal},
	{"volatile", AccVolatile},
	{"synthetic", AccSynthetic},
	{"native", AccNative},
	{"abstract", AccAbstract},
	{"constructor", AccConstructor},
}

func parseFlags(names []string) (AccessFlags, error) {
	var flags AccessFlags
	for _, name := range names {
		found := false
		for _, f := range accessFlagNames {
			if f.name == name {
				flags |= f.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown access flag %q", name)
		}
	}
	if n := popcount(flags & (AccPublic | AccPrivate | AccProtected)); n > 1 {
		return 0, fmt.Errorf("conflicting visibility flags %v", names)
	}
	return flags, nil
}

func popcount(f AccessFlags) int {
	n := 0
	for ; f != 0; f &= f - 1 {
		n++
	}
	return n
}

func (f AccessFlags) String() string {
	var names []string
	for _, n := range accessFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, " ")
}

// DexFile is one dex file of the corpus. It doubles as the file's dex cache.
type DexFile struct {
	location  string
	fieldIDs  map[uint32]FieldIDSpec
	methodIDs map[uint32]MethodIDSpec
	classes   []*Class
}

func (d *DexFile) Location() string {
	return d.location
}

func (d *DexFile) MethodName(methodIdx uint32) string {
	return d.methodIDs[methodIdx].Name
}

func (d *DexFile) Classes() []*Class {
	return d.classes
}

type ClassLoader struct {
	name string
}

func (l *ClassLoader) Name() string {
	return l.name
}

type Class struct {
	descriptor string
	dexFile    *DexFile
	super      *Class
	verified   bool
	flags      AccessFlags
	fields     []*Field
	methods    []*Method
	object     bool
}

func (c *Class) Descriptor() string  { return c.descriptor }
func (c *Class) IsVerified() bool    { return c.verified }
func (c *Class) IsObjectClass() bool { return c.object }
func (c *Class) DexFile() *DexFile   { return c.dexFile }
func (c *Class) Fields() []*Field    { return c.fields }
func (c *Class) Methods() []*Method  { return c.methods }
func (c *Class) Super() *Class       { return c.super }

func (c *Class) SuperClass() inline.Class {
	if c.super == nil {
		return nil
	}
	return c.super
}

// Package returns the package part of the descriptor, "" for the default package.
func (c *Class) Package() string {
	return packageOf(c.descriptor)
}

func packageOf(descriptor string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(descriptor, "L"), ";")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// IsSubclassOf reports whether other is c or one of its superclasses.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) field(name string) *Field {
	for _, f := range c.fields {
		if f.name == name {
			return f
		}
	}
	return nil
}

func (c *Class) method(name, proto string) *Method {
	for _, m := range c.methods {
		if m.name == name && (proto == "" || m.proto == proto) {
			return m
		}
	}
	return nil
}

type Field struct {
	class  *Class
	name   string
	typ    string
	flags  AccessFlags
	offset uint32
}

func (f *Field) DeclaringClass() inline.Class { return f.class }
func (f *Field) Class() *Class                { return f.class }
func (f *Field) Name() string                 { return f.name }
func (f *Field) Type() string                 { return f.typ }
func (f *Field) Flags() AccessFlags           { return f.flags }
func (f *Field) IsStatic() bool               { return f.flags&AccStatic != 0 }
func (f *Field) IsFinal() bool                { return f.flags&AccFinal != 0 }
func (f *Field) IsVolatile() bool             { return f.flags&AccVolatile != 0 }
func (f *Field) Offset() uint32               { return f.offset }

func (f *Field) String() string {
	return f.class.descriptor + "." + f.name + ":" + f.typ
}

type Method struct {
	class  *Class
	index  uint32
	name   string
	proto  string
	flags  AccessFlags
	code   *dex.CodeItem
	loader *ClassLoader
}

func (m *Method) DeclaringClass() inline.Class    { return m.class }
func (m *Method) DexCache() inline.DexCache       { return m.class.dexFile }
func (m *Method) ClassLoader() inline.ClassLoader { return m.loader }
func (m *Method) IsStatic() bool                  { return m.flags&AccStatic != 0 }
func (m *Method) IsConstructor() bool             { return m.flags&AccConstructor != 0 }
func (m *Method) CodeItem() *dex.CodeItem         { return m.code }
func (m *Method) Class() *Class                   { return m.class }
func (m *Method) Index() uint32                   { return m.index }
func (m *Method) Name() string                    { return m.name }
func (m *Method) Proto() string                   { return m.proto }
func (m *Method) Flags() AccessFlags              { return m.flags }

func (m *Method) Reference() inline.MethodReference {
	return inline.MethodReference{DexFile: m.class.dexFile, Index: m.index}
}

func (m *Method) String() string {
	return m.class.descriptor + "." + m.name + m.proto
}
