package typemap

import (
	"errors"
	"fmt"
)

// ErrConversion reports a conversion applied to a type of the wrong shape or
// applied a second time. Callers treat it as local to the one attempt.
var ErrConversion = errors.New("invalid type conversion")

// ConversionKind tags how a surface-facing type was derived from its
// FFI-facing counterpart.
type ConversionKind int

const (
	// ConversionNone: the two sides are the same type.
	ConversionNone ConversionKind = iota
	// ConversionRefFromPtr: a borrow exposed over an FFI raw pointer.
	ConversionRefFromPtr
	// ConversionOptionFromPtr: an optional wrapper over a nullable pointer.
	ConversionOptionFromPtr
	// ConversionValueFromPtr: a plain value passed through a pointer.
	ConversionValueFromPtr
	// ConversionBoxFromPtr: an owning handle over a heap pointer.
	ConversionBoxFromPtr
	// ConversionSmartPtrFromPtr: a foreign smart-pointer adapter.
	ConversionSmartPtrFromPtr
	// ConversionIntFromFlags: a bit-flags enumeration carried as an integer.
	ConversionIntFromFlags
)

var conversionNames = map[ConversionKind]string{
	ConversionNone:            "none",
	ConversionRefFromPtr:      "ref-from-ptr",
	ConversionOptionFromPtr:   "option-from-ptr",
	ConversionValueFromPtr:    "value-from-ptr",
	ConversionBoxFromPtr:      "box-from-ptr",
	ConversionSmartPtrFromPtr: "smart-ptr-from-ptr",
	ConversionIntFromFlags:    "int-from-flags",
}

func (k ConversionKind) String() string {
	if name, ok := conversionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ConversionKind(%d)", int(k))
}

// FinalType is a completely processed boundary type: the FFI-side
// representation, the surface-side representation, and the conversion that
// relates them. The FFI side is fixed at construction; conversion operations
// only ever replace the surface side and the tag together.
type FinalType struct {
	FFI        Type
	Surface    Type
	Conversion ConversionKind
}

// Identity builds a FinalType whose surface side equals its FFI side.
func Identity(t Type) FinalType {
	return FinalType{FFI: t, Surface: t, Conversion: ConversionNone}
}

// Equal reports structural equality of both sides and the tag.
func (f FinalType) Equal(other FinalType) bool {
	return f.Conversion == other.Conversion &&
		f.FFI.Equal(other.FFI) && f.Surface.Equal(other.Surface)
}

// PointerToBorrow converts the surface side from a raw pointer to a borrow
// with the given constness over the same pointee. The FFI side is untouched.
// Fails when the surface side is not a raw pointer or when a conversion has
// already been applied.
func (f FinalType) PointerToBorrow(makeConst bool) (FinalType, error) {
	if f.Conversion != ConversionNone {
		return FinalType{}, fmt.Errorf("%w: conversion already applied (%s)", ErrConversion, f.Conversion)
	}
	ind, ok := f.Surface.(Indirection)
	if !ok || ind.Kind != Pointer {
		return FinalType{}, fmt.Errorf("%w: surface type is not a raw pointer", ErrConversion)
	}
	f.Surface = Indirection{Kind: Borrow, Const: makeConst, Pointee: ind.Pointee}
	f.Conversion = ConversionRefFromPtr
	return f, nil
}

// PointerToValue converts the surface side from a raw pointer to its pointee
// type, stripping one indirection. The FFI side is untouched. Fails under the
// same conditions as PointerToBorrow.
func (f FinalType) PointerToValue() (FinalType, error) {
	if f.Conversion != ConversionNone {
		return FinalType{}, fmt.Errorf("%w: conversion already applied (%s)", ErrConversion, f.Conversion)
	}
	ind, ok := f.Surface.(Indirection)
	if !ok || ind.Kind != Pointer {
		return FinalType{}, fmt.Errorf("%w: surface type is not a raw pointer", ErrConversion)
	}
	f.Surface = ind.Pointee
	f.Conversion = ConversionValueFromPtr
	return f, nil
}

// WithConversion assigns a descriptor and surface type directly, for the
// shapes the two pointer operations do not cover (optional pointees, owning
// handles, smart-pointer adapters, bit-flag enums). The generation stage
// decides these; the algebra only carries them.
func (f FinalType) WithConversion(surface Type, kind ConversionKind) FinalType {
	f.Surface = surface
	f.Conversion = kind
	return f
}
