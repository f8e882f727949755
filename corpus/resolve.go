package corpus

import (
	"github.com/colorfulnotion/dexinline/inline"
)

var _ inline.Resolver = (*Corpus)(nil)

func (c *Corpus) dexFile(cache inline.DexCache) *DexFile {
	d, ok := cache.(*DexFile)
	if !ok || d == nil {
		return nil
	}
	return d
}

// ResolveField resolves a field id of d by searching the named class and
// its superclasses, so ids naming a field through a subclass alias the
// declaring field.
func (c *Corpus) ResolveField(d *DexFile, fieldIdx uint32) *Field {
	id, ok := d.fieldIDs[fieldIdx]
	if !ok || id.Unresolved {
		return nil
	}
	for k := c.classes[id.Class]; k != nil; k = k.super {
		if f := k.field(id.Name); f != nil {
			return f
		}
	}
	return nil
}

// ResolveMethod resolves a method id of d. Constructors are looked up in
// the named class only; other methods are inherited.
func (c *Corpus) ResolveMethod(d *DexFile, methodIdx uint32) *Method {
	id, ok := d.methodIDs[methodIdx]
	if !ok || id.Unresolved {
		return nil
	}
	for k := c.classes[id.Class]; k != nil; k = k.super {
		if m := k.method(id.Name, id.Proto); m != nil {
			return m
		}
		if id.Name == "<init>" {
			break
		}
	}
	return nil
}

// LookupResolvedField ignores isStatic: the result is whatever the id
// resolved to and callers check the kind themselves.
func (c *Corpus) LookupResolvedField(fieldIdx uint32, referrer inline.Method, isStatic bool) inline.Field {
	if referrer == nil {
		return nil
	}
	d := c.dexFile(referrer.DexCache())
	if d == nil {
		return nil
	}
	if f := c.ResolveField(d, fieldIdx); f != nil {
		return f
	}
	return nil
}

func (c *Corpus) LookupResolvedMethod(methodIdx uint32, dexCache inline.DexCache, loader inline.ClassLoader) inline.Method {
	d := c.dexFile(dexCache)
	if d == nil {
		return nil
	}
	if l, ok := loader.(*ClassLoader); !ok || l != c.loader {
		return nil
	}
	if m := c.ResolveMethod(d, methodIdx); m != nil {
		return m
	}
	return nil
}

// CanAccessResolvedField applies the Java access rules: the class named
// by the field id and the declaring class must both be accessible, and
// the member's own visibility must admit the accessor.
func (c *Corpus) CanAccessResolvedField(accessor inline.Class, field inline.Field, dexCache inline.DexCache, fieldIdx uint32) bool {
	from, ok := accessor.(*Class)
	if !ok || from == nil {
		return false
	}
	f, ok := field.(*Field)
	if !ok || f == nil {
		return false
	}
	if d := c.dexFile(dexCache); d != nil {
		if id, ok := d.fieldIDs[fieldIdx]; ok {
			if named := c.classes[id.Class]; named != nil && !canAccessClass(from, named) {
				return false
			}
		}
	}
	return canAccessClass(from, f.class) && canAccessMember(from, f.class, f.flags)
}

func canAccessClass(from, to *Class) bool {
	return from == to || to.flags&AccPublic != 0 || from.Package() == to.Package()
}

func canAccessMember(from, declaring *Class, flags AccessFlags) bool {
	switch {
	case from == declaring:
		return true
	case flags&AccPublic != 0:
		return true
	case flags&AccPrivate != 0:
		return false
	case flags&AccProtected != 0:
		return from.Package() == declaring.Package() || from.IsSubclassOf(declaring)
	default:
		return from.Package() == declaring.Package()
	}
}
