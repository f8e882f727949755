package inline

import "github.com/colorfulnotion/dexinline/dex"

type fakeClass struct {
	name     string
	verified bool
	object   bool
	super    *fakeClass
}

func (c *fakeClass) Descriptor() string  { return c.name }
func (c *fakeClass) IsVerified() bool    { return c.verified }
func (c *fakeClass) IsObjectClass() bool { return c.object }

func (c *fakeClass) SuperClass() Class {
	if c.super == nil {
		return nil
	}
	return c.super
}

type fakeDexFile struct {
	location string
	names    map[uint32]string
}

func (d *fakeDexFile) Location() string             { return d.location }
func (d *fakeDexFile) MethodName(idx uint32) string { return d.names[idx] }

type fakeLoader struct{}

func (fakeLoader) Name() string { return "fake" }

type fakeField struct {
	class    *fakeClass
	static   bool
	final    bool
	volatile bool
	offset   uint32
}

func (f *fakeField) DeclaringClass() Class { return f.class }
func (f *fakeField) IsStatic() bool        { return f.static }
func (f *fakeField) IsFinal() bool         { return f.final }
func (f *fakeField) IsVolatile() bool      { return f.volatile }
func (f *fakeField) Offset() uint32        { return f.offset }

type fakeMethod struct {
	class  *fakeClass
	dex    *fakeDexFile
	idx    uint32
	static bool
	ctor   bool
	code   *dex.CodeItem
}

func (m *fakeMethod) DeclaringClass() Class    { return m.class }
func (m *fakeMethod) DexCache() DexCache       { return m.dex }
func (m *fakeMethod) ClassLoader() ClassLoader { return fakeLoader{} }
func (m *fakeMethod) IsStatic() bool           { return m.static }
func (m *fakeMethod) IsConstructor() bool      { return m.ctor }
func (m *fakeMethod) CodeItem() *dex.CodeItem  { return m.code }

func (m *fakeMethod) Reference() MethodReference {
	return MethodReference{DexFile: m.dex, Index: m.idx}
}

type fakeResolver struct {
	fields  map[uint32]*fakeField
	methods map[uint32]*fakeMethod
	denied  map[*fakeField]bool
	lookups int
}

func (r *fakeResolver) LookupResolvedField(idx uint32, referrer Method, isStatic bool) Field {
	r.lookups++
	if f, ok := r.fields[idx]; ok {
		return f
	}
	return nil
}

func (r *fakeResolver) LookupResolvedMethod(idx uint32, dexCache DexCache, loader ClassLoader) Method {
	if m, ok := r.methods[idx]; ok {
		return m
	}
	return nil
}

func (r *fakeResolver) CanAccessResolvedField(accessor Class, field Field, dexCache DexCache, idx uint32) bool {
	f, ok := field.(*fakeField)
	return ok && !r.denied[f]
}

// world is a single dex file with Object <- Base <- Foo. Object.<init> is
// method 0.
type world struct {
	dexFile *fakeDexFile
	r       *fakeResolver
	object  *fakeClass
	base    *fakeClass
	foo     *fakeClass
	a       *Analyser
}

func newWorld() *world {
	object := &fakeClass{name: "Ljava/lang/Object;", verified: true, object: true}
	base := &fakeClass{name: "LBase;", verified: true, super: object}
	foo := &fakeClass{name: "LFoo;", verified: true, super: base}
	w := &world{
		dexFile: &fakeDexFile{location: "test.dex", names: map[uint32]string{}},
		r: &fakeResolver{
			fields:  map[uint32]*fakeField{},
			methods: map[uint32]*fakeMethod{},
			denied:  map[*fakeField]bool{},
		},
		object: object,
		base:   base,
		foo:    foo,
	}
	w.a = NewAnalyser(w.r)
	w.ctor(object, 0, 1, 1, "return-void")
	return w
}

func code(regs, ins uint16, src string) *dex.CodeItem {
	return &dex.CodeItem{RegistersSize: regs, InsSize: ins, Insns: dex.MustAssemble(src)}
}

func (w *world) method(class *fakeClass, idx uint32, name string, static bool, regs, ins uint16, src string) *fakeMethod {
	m := &fakeMethod{class: class, dex: w.dexFile, idx: idx, static: static, code: code(regs, ins, src)}
	w.dexFile.names[idx] = name
	w.r.methods[idx] = m
	return m
}

func (w *world) ctor(class *fakeClass, idx uint32, regs, ins uint16, src string) *fakeMethod {
	m := w.method(class, idx, "<init>", false, regs, ins, src)
	m.ctor = true
	return m
}

func (w *world) field(idx uint32, class *fakeClass, offset uint32) *fakeField {
	f := &fakeField{class: class, offset: offset}
	w.r.fields[idx] = f
	return f
}

func (w *world) analyse(m *fakeMethod) (InlineMethod, error) {
	var out InlineMethod
	err := w.a.Explain(m.code, m.Reference(), m.static, m, &out)
	return out, err
}
