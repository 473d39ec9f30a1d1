// Package db implements the versioned item database at the heart of the
// binding pipeline: three parallel collections (native declarations, derived
// FFI wrappers, generated surface items) with identifier allocation,
// structural deduplication, cross-stage validation and per-environment
// compatibility ledgers.
package db

import (
	"fmt"

	"github.com/jward/bindery/internal/path"
	"github.com/jward/bindery/internal/typemap"
)

// NativeItemID identifies a native declaration. IDs are allocated
// monotonically per store and never reused, even across clears.
type NativeItemID uint32

func (id NativeItemID) String() string { return fmt.Sprintf("%d", uint32(id)) }

// FfiItemID identifies a derived FFI wrapper. The FFI id namespace is
// independent of the native one.
type FfiItemID uint32

func (id FfiItemID) String() string { return fmt.Sprintf("%d", uint32(id)) }

// Environment is one configuration an FFI item is validated under: a
// platform target descriptor plus an optional native-library version.
type Environment struct {
	Target         string
	LibraryVersion string
}

func (e Environment) Equal(other Environment) bool { return e == other }

func (e Environment) String() string {
	if e.LibraryVersion == "" {
		return e.Target
	}
	return e.Target + "/" + e.LibraryVersion
}

// NativePayload is the closed union of native declaration kinds. Structural
// equality via Equal defines "same declaration", independent of item id and
// origin back-link.
type NativePayload interface {
	isNativePayload()
	Equal(other NativePayload) bool
	String() string
}

// NamespaceDecl is a native namespace.
type NamespaceDecl struct {
	Path path.Path
}

// TypeDeclKind classifies a native type declaration.
type TypeDeclKind int

const (
	TypeClass TypeDeclKind = iota
	TypeEnum
	TypeFlagsEnum
	TypeAlias
)

// TypeDecl is a native class, enum or alias declaration.
type TypeDecl struct {
	Path path.Path
	Kind TypeDeclKind
}

// EnumValueDecl is one enumerator of a native enum.
type EnumValueDecl struct {
	Path  path.Path
	Value int64
}

// FunctionKind classifies a native function declaration.
type FunctionKind int

const (
	FreeFunction FunctionKind = iota
	Method
	Constructor
	Destructor
	Signal
)

// ParamDecl is one parameter of a native function, with its native type
// spelling as discovered by the parser.
type ParamDecl struct {
	Name string
	Type string
}

// FunctionDecl is a native function, method, constructor or destructor.
type FunctionDecl struct {
	Path       path.Path
	Kind       FunctionKind
	ReturnType string
	Params     []ParamDecl
	IsConst    bool
}

// ClassFieldDecl is a data member of a native class.
type ClassFieldDecl struct {
	Path path.Path
	Type string
}

// BaseRelationDecl records that Derived inherits from Base at the given base
// position.
type BaseRelationDecl struct {
	Derived path.Path
	Base    path.Path
	Index   int
}

// SignalArgsDecl is the argument type list of a native signal, the unit a
// slot wrapper is derived from.
type SignalArgsDecl struct {
	Class    path.Path
	ArgTypes []string
}

func (NamespaceDecl) isNativePayload()  {}
func (TypeDecl) isNativePayload()       {}
func (EnumValueDecl) isNativePayload()  {}
func (FunctionDecl) isNativePayload()   {}
func (ClassFieldDecl) isNativePayload() {}
func (BaseRelationDecl) isNativePayload() {}
func (SignalArgsDecl) isNativePayload() {}

func (d NamespaceDecl) Equal(other NativePayload) bool {
	o, ok := other.(NamespaceDecl)
	return ok && d.Path.Equal(o.Path)
}

func (d TypeDecl) Equal(other NativePayload) bool {
	o, ok := other.(TypeDecl)
	return ok && d.Kind == o.Kind && d.Path.Equal(o.Path)
}

func (d EnumValueDecl) Equal(other NativePayload) bool {
	o, ok := other.(EnumValueDecl)
	return ok && d.Value == o.Value && d.Path.Equal(o.Path)
}

func (d FunctionDecl) Equal(other NativePayload) bool {
	o, ok := other.(FunctionDecl)
	if !ok || d.Kind != o.Kind || d.IsConst != o.IsConst ||
		d.ReturnType != o.ReturnType || !d.Path.Equal(o.Path) ||
		len(d.Params) != len(o.Params) {
		return false
	}
	for i, p := range d.Params {
		if p != o.Params[i] {
			return false
		}
	}
	return true
}

func (d ClassFieldDecl) Equal(other NativePayload) bool {
	o, ok := other.(ClassFieldDecl)
	return ok && d.Type == o.Type && d.Path.Equal(o.Path)
}

func (d BaseRelationDecl) Equal(other NativePayload) bool {
	o, ok := other.(BaseRelationDecl)
	return ok && d.Index == o.Index && d.Derived.Equal(o.Derived) && d.Base.Equal(o.Base)
}

func (d SignalArgsDecl) Equal(other NativePayload) bool {
	o, ok := other.(SignalArgsDecl)
	if !ok || !d.Class.Equal(o.Class) || len(d.ArgTypes) != len(o.ArgTypes) {
		return false
	}
	for i, a := range d.ArgTypes {
		if a != o.ArgTypes[i] {
			return false
		}
	}
	return true
}

func (d NamespaceDecl) String() string  { return "namespace " + d.Path.String() }
func (d TypeDecl) String() string       { return "type " + d.Path.String() }
func (d EnumValueDecl) String() string  { return fmt.Sprintf("enum value %s = %d", d.Path, d.Value) }
func (d FunctionDecl) String() string   { return "function " + d.Path.String() }
func (d ClassFieldDecl) String() string { return "field " + d.Path.String() }
func (d BaseRelationDecl) String() string {
	return fmt.Sprintf("base %s : %s", d.Derived, d.Base)
}
func (d SignalArgsDecl) String() string { return "signal args of " + d.Class.String() }

// NativeItem is one stored native declaration. SourceFfiItem back-links to
// the FFI item it was synthesized from, when it was not discovered by the
// parser; the link is used only for targeted invalidation in ClearFfi and is
// never a source of truth for FFI item lifetime.
type NativeItem struct {
	ID            NativeItemID
	Payload       NativePayload
	SourceFfiItem *FfiItemID
}

// FfiPayload is the closed union of derived wrapper kinds.
type FfiPayload interface {
	isFfiPayload()
	Equal(other FfiPayload) bool
	// Path is the native entity the wrapper belongs to.
	Path() path.Path
	// IsSourceItem reports whether the wrapper requires additionally
	// emitted helper source, beyond declaring a signature.
	IsSourceItem() bool
}

// WrapperParam is one parameter of a wrapper function, with its C-compatible
// type spelling.
type WrapperParam struct {
	Name string
	Type string
}

// WrapperFunction is a plain FFI wrapper: it only declares a C-compatible
// signature for an underlying native function.
type WrapperFunction struct {
	SourcePath path.Path
	CName      string
	Kind       FunctionKind
	ReturnType string
	Params     []WrapperParam
}

// SlotWrapper adapts a native signal's argument list into a callback slot;
// unlike a plain wrapper it requires emitted helper source.
type SlotWrapper struct {
	ClassPath path.Path
	CName     string
	ArgTypes  []string
}

func (WrapperFunction) isFfiPayload() {}
func (SlotWrapper) isFfiPayload()     {}

func (w WrapperFunction) Path() path.Path { return w.SourcePath }
func (w SlotWrapper) Path() path.Path     { return w.ClassPath }

func (WrapperFunction) IsSourceItem() bool { return false }
func (SlotWrapper) IsSourceItem() bool     { return true }

func (w WrapperFunction) Equal(other FfiPayload) bool {
	o, ok := other.(WrapperFunction)
	if !ok || w.CName != o.CName || w.Kind != o.Kind ||
		w.ReturnType != o.ReturnType || !w.SourcePath.Equal(o.SourcePath) ||
		len(w.Params) != len(o.Params) {
		return false
	}
	for i, p := range w.Params {
		if p != o.Params[i] {
			return false
		}
	}
	return true
}

func (w SlotWrapper) Equal(other FfiPayload) bool {
	o, ok := other.(SlotWrapper)
	if !ok || w.CName != o.CName || !w.ClassPath.Equal(o.ClassPath) ||
		len(w.ArgTypes) != len(o.ArgTypes) {
		return false
	}
	for i, a := range w.ArgTypes {
		if a != o.ArgTypes[i] {
			return false
		}
	}
	return true
}

// FfiItem is one stored FFI wrapper with its compatibility ledger and a flag
// recording whether surface generation has consumed it.
type FfiItem struct {
	ID          FfiItemID
	Payload     FfiPayload
	Checks      Checks
	IsProcessed bool
}

// Path returns the native entity path of the item's payload.
func (i *FfiItem) Path() path.Path { return i.Payload.Path() }

// SurfacePayload is the closed union of generated surface entity kinds.
type SurfacePayload interface {
	isSurfacePayload()
	Equal(other SurfacePayload) bool
	Path() path.Path
}

// Module is a surface namespace level. Root marks the package root, the only
// surface item allowed to have no parent.
type Module struct {
	ModulePath path.Path
	Root       bool
}

// Struct is a generated surface type wrapping a native class.
type Struct struct {
	StructPath path.Path
	FfiOrigin  FfiItemID
}

// Function is a generated surface function with its fully derived boundary
// signature.
type Function struct {
	FuncPath  path.Path
	FfiOrigin FfiItemID
	Return    typemap.FinalType
	Params    []typemap.FinalType
	Unsafe    bool
}

// FlagsType is a generated bit-flags type over a native flags enum.
type FlagsType struct {
	FlagsPath path.Path
	Enum      path.Path
}

func (Module) isSurfacePayload()    {}
func (Struct) isSurfacePayload()    {}
func (Function) isSurfacePayload()  {}
func (FlagsType) isSurfacePayload() {}

func (m Module) Path() path.Path    { return m.ModulePath }
func (s Struct) Path() path.Path    { return s.StructPath }
func (f Function) Path() path.Path  { return f.FuncPath }
func (f FlagsType) Path() path.Path { return f.FlagsPath }

func (m Module) Equal(other SurfacePayload) bool {
	o, ok := other.(Module)
	return ok && m.Root == o.Root && m.ModulePath.Equal(o.ModulePath)
}

func (s Struct) Equal(other SurfacePayload) bool {
	o, ok := other.(Struct)
	return ok && s.FfiOrigin == o.FfiOrigin && s.StructPath.Equal(o.StructPath)
}

func (f Function) Equal(other SurfacePayload) bool {
	o, ok := other.(Function)
	if !ok || f.FfiOrigin != o.FfiOrigin || f.Unsafe != o.Unsafe ||
		!f.FuncPath.Equal(o.FuncPath) || !f.Return.Equal(o.Return) ||
		len(f.Params) != len(o.Params) {
		return false
	}
	for i, p := range f.Params {
		if !p.Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

func (f FlagsType) Equal(other SurfacePayload) bool {
	o, ok := other.(FlagsType)
	return ok && f.FlagsPath.Equal(o.FlagsPath) && f.Enum.Equal(o.Enum)
}

// SurfaceItem is one generated surface entity, addressed by its path.
type SurfaceItem struct {
	Payload SurfacePayload
}

// Path returns the item's placement in the surface namespace.
func (i *SurfaceItem) Path() path.Path { return i.Payload.Path() }

// IsRoot reports whether the item is a package root module.
func (i *SurfaceItem) IsRoot() bool {
	m, ok := i.Payload.(Module)
	return ok && m.Root
}
