package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/log"
	"golang.org/x/crypto/blake2b"
)

const (
	ObjectDescriptor = "Ljava/lang/Object;"
	bootLocation     = "boot.dex"
	objectHeaderSize = 8
	loaderName       = "corpus"
)

// Corpus is a closed world of classes loaded through one class loader,
// plus the implicit root class. It implements inline.Resolver.
type Corpus struct {
	dexFiles    []*DexFile
	boot        *DexFile
	classes     map[string]*Class
	loader      *ClassLoader
	fingerprint [32]byte
}

// Load reads a JSON corpus file.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Corpus, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	return New(&spec)
}

// New builds a corpus, checking ids, the class hierarchy and method bodies.
func New(spec *Spec) (*Corpus, error) {
	canonical, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	c := &Corpus{
		classes:     make(map[string]*Class),
		loader:      &ClassLoader{name: loaderName},
		fingerprint: blake2b.Sum256(canonical),
	}
	c.addBoot()

	specs := make(map[*Class]*ClassSpec)
	locations := make(map[string]bool)
	for i := range spec.DexFiles {
		ds := &spec.DexFiles[i]
		if ds.Location == "" || ds.Location == bootLocation || locations[ds.Location] {
			return nil, fmt.Errorf("dex file %d: bad or duplicate location %q", i, ds.Location)
		}
		locations[ds.Location] = true
		d, err := newDexFile(ds)
		if err != nil {
			return nil, err
		}
		c.dexFiles = append(c.dexFiles, d)
		for j := range ds.Classes {
			cs := &ds.Classes[j]
			if !validDescriptor(cs.Descriptor) {
				return nil, fmt.Errorf("%s: bad class descriptor %q", d.location, cs.Descriptor)
			}
			if _, dup := c.classes[cs.Descriptor]; dup {
				return nil, fmt.Errorf("%s: class %s defined twice", d.location, cs.Descriptor)
			}
			flags, err := parseFlags(cs.Flags)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", cs.Descriptor, err)
			}
			k := &Class{descriptor: cs.Descriptor, dexFile: d, verified: !cs.Unverified, flags: flags}
			c.classes[cs.Descriptor] = k
			d.classes = append(d.classes, k)
			specs[k] = cs
		}
	}

	for k, cs := range specs {
		super := cs.Super
		if super == "" {
			super = ObjectDescriptor
		}
		k.super = c.classes[super]
		if k.super == nil {
			return nil, fmt.Errorf("%s: superclass %s not found", k.descriptor, super)
		}
	}
	if err := c.checkHierarchy(); err != nil {
		return nil, err
	}

	for k, cs := range specs {
		if err := c.addMembers(k, cs); err != nil {
			return nil, fmt.Errorf("%s: %w", k.descriptor, err)
		}
	}
	sizes := make(map[*Class]uint32)
	for _, d := range c.dexFiles {
		for _, k := range d.classes {
			layout(k, specs, sizes)
		}
	}
	log.Debug(log.CorpusMonitoring, "corpus loaded", "dex_files", len(c.dexFiles), "classes", len(specs), "fingerprint", fmt.Sprintf("%x", c.fingerprint[:8]))
	return c, nil
}

func (c *Corpus) addBoot() {
	boot := &DexFile{
		location:  bootLocation,
		fieldIDs:  map[uint32]FieldIDSpec{},
		methodIDs: map[uint32]MethodIDSpec{0: {Index: 0, Class: ObjectDescriptor, Name: "<init>", Proto: "()V"}},
	}
	object := &Class{descriptor: ObjectDescriptor, dexFile: boot, verified: true, flags: AccPublic, object: true}
	object.methods = []*Method{{
		class:  object,
		index:  0,
		name:   "<init>",
		proto:  "()V",
		flags:  AccPublic | AccConstructor,
		code:   &dex.CodeItem{RegistersSize: 1, InsSize: 1, Insns: []uint16{uint16(dex.RETURN_VOID)}},
		loader: c.loader,
	}}
	boot.classes = []*Class{object}
	c.boot = boot
	c.classes[ObjectDescriptor] = object
}

func validDescriptor(d string) bool {
	return len(d) > 2 && strings.HasPrefix(d, "L") && strings.HasSuffix(d, ";") && d != ObjectDescriptor
}

func newDexFile(ds *DexFileSpec) (*DexFile, error) {
	d := &DexFile{
		location:  ds.Location,
		fieldIDs:  make(map[uint32]FieldIDSpec, len(ds.FieldIDs)),
		methodIDs: make(map[uint32]MethodIDSpec, len(ds.MethodIDs)),
	}
	for _, id := range ds.FieldIDs {
		if _, dup := d.fieldIDs[id.Index]; dup {
			return nil, fmt.Errorf("%s: field id %d defined twice", d.location, id.Index)
		}
		d.fieldIDs[id.Index] = id
	}
	for _, id := range ds.MethodIDs {
		if _, dup := d.methodIDs[id.Index]; dup {
			return nil, fmt.Errorf("%s: method id %d defined twice", d.location, id.Index)
		}
		d.methodIDs[id.Index] = id
	}
	return d, nil
}

// checkHierarchy rejects superclass cycles.
func (c *Corpus) checkHierarchy() error {
	for _, k := range c.classes {
		steps := 0
		for s := k.super; s != nil; s = s.super {
			if s == k || steps > len(c.classes) {
				return fmt.Errorf("%s: circular class hierarchy", k.descriptor)
			}
			steps++
		}
	}
	return nil
}

func (c *Corpus) addMembers(k *Class, cs *ClassSpec) error {
	for _, fs := range cs.Fields {
		if fs.Name == "" || fs.Type == "" {
			return fmt.Errorf("field needs a name and a type")
		}
		if k.field(fs.Name) != nil {
			return fmt.Errorf("field %s defined twice", fs.Name)
		}
		flags, err := parseFlags(fs.Flags)
		if err != nil {
			return fmt.Errorf("field %s: %w", fs.Name, err)
		}
		k.fields = append(k.fields, &Field{class: k, name: fs.Name, typ: fs.Type, flags: flags})
	}
	seen := make(map[uint32]bool)
	for _, ms := range cs.Methods {
		id, ok := k.dexFile.methodIDs[ms.MethodIdx]
		if !ok {
			return fmt.Errorf("method id %d not in %s", ms.MethodIdx, k.dexFile.location)
		}
		if id.Class != k.descriptor {
			return fmt.Errorf("method id %d belongs to %s", ms.MethodIdx, id.Class)
		}
		if seen[ms.MethodIdx] {
			return fmt.Errorf("method id %d defined twice", ms.MethodIdx)
		}
		seen[ms.MethodIdx] = true
		m, err := c.newMethod(k, id, &ms)
		if err != nil {
			return fmt.Errorf("method %s: %w", id.Name, err)
		}
		k.methods = append(k.methods, m)
	}
	return nil
}

func (c *Corpus) newMethod(k *Class, id MethodIDSpec, ms *MethodSpec) (*Method, error) {
	flags, err := parseFlags(ms.Flags)
	if err != nil {
		return nil, err
	}
	if id.Name == "<init>" || id.Name == "<clinit>" {
		flags |= AccConstructor
	}
	m := &Method{class: k, index: id.Index, name: id.Name, proto: id.Proto, flags: flags, loader: c.loader}
	hasCode := ms.Code != "" || len(ms.Insns) > 0
	if flags&(AccNative|AccAbstract) != 0 {
		if hasCode {
			return nil, fmt.Errorf("native or abstract method has code")
		}
		return m, nil
	}
	if !hasCode {
		return nil, fmt.Errorf("method has no code")
	}
	insns := append([]uint16(nil), ms.Insns...)
	if ms.Code != "" {
		if insns, err = dex.Assemble(ms.Code); err != nil {
			return nil, err
		}
	}
	m.code = &dex.CodeItem{RegistersSize: ms.Registers, InsSize: ms.Ins, OutsSize: ms.Outs, Insns: insns}
	if err := m.code.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func fieldSize(typ string) uint32 {
	if typ == "J" || typ == "D" {
		return 8
	}
	return 4
}

// layout assigns offsets to fields without one: instance fields follow the
// superclass fields, each aligned to its size; static fields are numbered
// from zero in the class's static storage.
func layout(k *Class, specs map[*Class]*ClassSpec, sizes map[*Class]uint32) uint32 {
	if k.object {
		return objectHeaderSize
	}
	if size, ok := sizes[k]; ok {
		return size
	}
	next := layout(k.super, specs, sizes)
	var nextStatic uint32
	for i, f := range k.fields {
		size := fieldSize(f.typ)
		explicit := specs[k].Fields[i].Offset
		if f.IsStatic() {
			nextStatic = alignUp(nextStatic, size)
			f.offset = nextStatic
			if explicit != nil {
				f.offset = *explicit
			}
			nextStatic = max(nextStatic, f.offset+size)
			continue
		}
		next = alignUp(next, size)
		f.offset = next
		if explicit != nil {
			f.offset = *explicit
		}
		next = max(next, f.offset+size)
	}
	sizes[k] = next
	return next
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// Fingerprint identifies the corpus contents; equal specs give equal
// fingerprints.
func (c *Corpus) Fingerprint() [32]byte {
	return c.fingerprint
}

// DexFiles returns the corpus dex files in definition order, without the
// implicit boot file.
func (c *Corpus) DexFiles() []*DexFile {
	return c.dexFiles
}

func (c *Corpus) Class(descriptor string) (*Class, bool) {
	k, ok := c.classes[descriptor]
	return k, ok
}

// Methods returns every method defined by the corpus dex files.
func (c *Corpus) Methods() []*Method {
	var methods []*Method
	for _, d := range c.dexFiles {
		for _, k := range d.classes {
			methods = append(methods, k.methods...)
		}
	}
	return methods
}

// FindMethod looks up a method by class descriptor and name. The name may
// carry a prototype, as in "<init>(I)V".
func (c *Corpus) FindMethod(descriptor, name string) (*Method, error) {
	k, ok := c.classes[descriptor]
	if !ok {
		return nil, fmt.Errorf("class %s not found", descriptor)
	}
	proto := ""
	if i := strings.IndexByte(name, '('); i >= 0 {
		name, proto = name[:i], name[i:]
	}
	m := k.method(name, proto)
	if m == nil {
		return nil, fmt.Errorf("method %s.%s%s not found", descriptor, name, proto)
	}
	return m, nil
}
