package inline

import (
	"fmt"

	"github.com/colorfulnotion/dexinline/dex"
)

// Class is a loaded class. Implementations must compare equal (==) exactly
// when they denote the same class.
type Class interface {
	Descriptor() string
	IsVerified() bool
	IsObjectClass() bool
	// SuperClass returns nil for the root of the hierarchy.
	SuperClass() Class
}

// DexCache identifies the per-dex-file resolution table a method was
// loaded through. Field indices are only comparable within one cache.
type DexCache interface {
	Location() string
}

type ClassLoader interface {
	Name() string
}

// DexFile gives access to the method id table needed for name checks.
type DexFile interface {
	Location() string
	MethodName(methodIdx uint32) string
}

// MethodReference names a method by its defining dex file and method index.
type MethodReference struct {
	DexFile DexFile
	Index   uint32
}

func (r MethodReference) String() string {
	if r.DexFile == nil {
		return fmt.Sprintf("<unknown>@%d", r.Index)
	}
	return fmt.Sprintf("%s@%d(%s)", r.DexFile.Location(), r.Index, r.DexFile.MethodName(r.Index))
}

// Method is a resolved method handle.
type Method interface {
	DeclaringClass() Class
	DexCache() DexCache
	ClassLoader() ClassLoader
	IsStatic() bool
	IsConstructor() bool
	// CodeItem returns nil for native and abstract methods.
	CodeItem() *dex.CodeItem
	Reference() MethodReference
}

// Field is a resolved field handle.
type Field interface {
	DeclaringClass() Class
	IsStatic() bool
	IsFinal() bool
	IsVolatile() bool
	Offset() uint32
}

// Resolver is the read-only view of the runtime's resolution state that the
// analyser consults. Lookups never trigger resolution; an index that has not
// been resolved yet yields nil.
type Resolver interface {
	LookupResolvedField(fieldIdx uint32, referrer Method, isStatic bool) Field
	LookupResolvedMethod(methodIdx uint32, dexCache DexCache, loader ClassLoader) Method
	CanAccessResolvedField(accessor Class, field Field, dexCache DexCache, fieldIdx uint32) bool
}
