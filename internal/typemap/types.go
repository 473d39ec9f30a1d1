// Package typemap models the types that cross the FFI boundary: how a value
// is represented on the surface-language side, how that representation was
// derived from its FFI-side counterpart, and how to label a type when a
// synthesized name needs disambiguation.
package typemap

import "github.com/jward/bindery/internal/path"

// IndirectionKind distinguishes raw pointers from borrows.
type IndirectionKind int

const (
	// Pointer is a raw pointer, mutable or const.
	Pointer IndirectionKind = iota
	// Borrow is a reference with an optional named lifetime.
	Borrow
)

// Type is a closed union over the shapes a boundary-crossing type can take.
// Every consumer switches exhaustively over Unit, Named, FuncSig and
// Indirection; adding a variant must be audited at each switch.
type Type interface {
	isType()
	// Equal reports structural equality.
	Equal(other Type) bool
	// Unsafe reports whether the type is, or recursively contains, a raw
	// pointer. A borrow is not itself unsafe but propagates unsafety found
	// in its pointee.
	Unsafe() bool
}

// Unit is the no-value type, standing in for a native void return.
type Unit struct{}

// Named is a numeric, enum or struct type: a path plus optional ordered type
// arguments.
type Named struct {
	Path path.Path
	Args []Type
}

// FuncSig is a function type: return type plus ordered parameter types.
type FuncSig struct {
	Return Type
	Params []Type
}

// Indirection wraps a pointee behind a pointer or borrow.
type Indirection struct {
	Kind IndirectionKind
	// Lifetime names the borrow's lifetime; empty means elided. Ignored for
	// pointers.
	Lifetime string
	Const    bool
	Pointee  Type
}

func (Unit) isType()        {}
func (Named) isType()       {}
func (FuncSig) isType()     {}
func (Indirection) isType() {}

func (Unit) Equal(other Type) bool {
	_, ok := other.(Unit)
	return ok
}

func (t Named) Equal(other Type) bool {
	o, ok := other.(Named)
	if !ok || !t.Path.Equal(o.Path) || len(t.Args) != len(o.Args) {
		return false
	}
	for i, arg := range t.Args {
		if !arg.Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

func (t FuncSig) Equal(other Type) bool {
	o, ok := other.(FuncSig)
	if !ok || !t.Return.Equal(o.Return) || len(t.Params) != len(o.Params) {
		return false
	}
	for i, p := range t.Params {
		if !p.Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

func (t Indirection) Equal(other Type) bool {
	o, ok := other.(Indirection)
	return ok && t.Kind == o.Kind && t.Lifetime == o.Lifetime &&
		t.Const == o.Const && t.Pointee.Equal(o.Pointee)
}

func (Unit) Unsafe() bool { return false }

func (t Named) Unsafe() bool {
	for _, arg := range t.Args {
		if arg.Unsafe() {
			return true
		}
	}
	return false
}

func (t FuncSig) Unsafe() bool {
	if t.Return.Unsafe() {
		return true
	}
	for _, p := range t.Params {
		if p.Unsafe() {
			return true
		}
	}
	return false
}

func (t Indirection) Unsafe() bool {
	return t.Kind == Pointer || t.Pointee.Unsafe()
}

// IsPointer reports whether t is a raw-pointer indirection.
func IsPointer(t Type) bool {
	ind, ok := t.(Indirection)
	return ok && ind.Kind == Pointer
}

// IsBorrow reports whether t is a borrow indirection.
func IsBorrow(t Type) bool {
	ind, ok := t.(Indirection)
	return ok && ind.Kind == Borrow
}

// Pointee returns the target of an indirection type.
func Pointee(t Type) (Type, bool) {
	ind, ok := t.(Indirection)
	if !ok {
		return nil, false
	}
	return ind.Pointee, true
}

// WithLifetime returns a copy of t with the borrow lifetime set, when t is a
// borrow; any other shape is returned unchanged.
func WithLifetime(t Type, lifetime string) Type {
	ind, ok := t.(Indirection)
	if !ok || ind.Kind != Borrow {
		return t
	}
	ind.Lifetime = lifetime
	return ind
}
