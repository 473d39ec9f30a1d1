package typemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/bindery/internal/path"
)

func pointerTo(pointee Type, isConst bool) Type {
	return Indirection{Kind: Pointer, Const: isConst, Pointee: pointee}
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	named := Named{Path: path.New("int32")}
	f := Identity(named)
	assert.True(t, f.FFI.Equal(named))
	assert.True(t, f.Surface.Equal(named))
	assert.Equal(t, ConversionNone, f.Conversion)
}

func TestPointerToBorrow(t *testing.T) {
	t.Parallel()

	widget := Named{Path: path.MustParse("pkg.widget")}
	f := Identity(pointerTo(widget, true))

	converted, err := f.PointerToBorrow(true)
	require.NoError(t, err)

	// The FFI side never changes; only the surface side and the tag move.
	assert.True(t, converted.FFI.Equal(f.FFI))
	assert.True(t, converted.Surface.Equal(Indirection{Kind: Borrow, Const: true, Pointee: widget}))
	assert.Equal(t, ConversionRefFromPtr, converted.Conversion)
}

func TestPointerToValue(t *testing.T) {
	t.Parallel()

	widget := Named{Path: path.MustParse("pkg.widget")}
	f := Identity(pointerTo(widget, false))

	converted, err := f.PointerToValue()
	require.NoError(t, err)
	assert.True(t, converted.FFI.Equal(f.FFI))
	assert.True(t, converted.Surface.Equal(widget))
	assert.Equal(t, ConversionValueFromPtr, converted.Conversion)
}

func TestConversionRejectsNonPointerSurface(t *testing.T) {
	t.Parallel()

	f := Identity(Named{Path: path.New("int32")})

	_, err := f.PointerToBorrow(false)
	assert.ErrorIs(t, err, ErrConversion)
	_, err = f.PointerToValue()
	assert.ErrorIs(t, err, ErrConversion)

	borrow := Identity(Indirection{Kind: Borrow, Pointee: Named{Path: path.New("int32")}})
	_, err = borrow.PointerToBorrow(false)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestConversionCannotBeReapplied(t *testing.T) {
	t.Parallel()

	widget := Named{Path: path.MustParse("pkg.widget")}
	f := Identity(pointerTo(widget, false))

	converted, err := f.PointerToBorrow(false)
	require.NoError(t, err)

	// A second conversion fails and the first result stays intact.
	_, err = converted.PointerToBorrow(false)
	assert.ErrorIs(t, err, ErrConversion)
	_, err = converted.PointerToValue()
	assert.ErrorIs(t, err, ErrConversion)
	assert.Equal(t, ConversionRefFromPtr, converted.Conversion)
	assert.True(t, converted.FFI.Equal(f.FFI))
}

func TestWithConversion(t *testing.T) {
	t.Parallel()

	widget := Named{Path: path.MustParse("pkg.widget")}
	f := Identity(pointerTo(widget, false))

	box := Named{Path: path.MustParse("std.Box"), Args: []Type{widget}}
	boxed := f.WithConversion(box, ConversionBoxFromPtr)
	assert.True(t, boxed.FFI.Equal(f.FFI))
	assert.True(t, boxed.Surface.Equal(box))
	assert.Equal(t, ConversionBoxFromPtr, boxed.Conversion)
}

func TestUnsafePropagation(t *testing.T) {
	t.Parallel()

	widget := Named{Path: path.MustParse("pkg.widget")}

	assert.False(t, Unit{}.Unsafe())
	assert.False(t, widget.Unsafe())
	assert.True(t, pointerTo(widget, false).Unsafe())

	// A borrow is not itself unsafe but propagates its pointee's unsafety.
	borrow := Indirection{Kind: Borrow, Pointee: widget}
	assert.False(t, borrow.Unsafe())
	borrowOfPtr := Indirection{Kind: Borrow, Pointee: pointerTo(widget, false)}
	assert.True(t, borrowOfPtr.Unsafe())

	assert.True(t, Named{Path: path.MustParse("std.Box"), Args: []Type{pointerTo(widget, false)}}.Unsafe())
	assert.True(t, FuncSig{Return: Unit{}, Params: []Type{pointerTo(widget, false)}}.Unsafe())
	assert.False(t, FuncSig{Return: widget}.Unsafe())
}

func TestWithLifetime(t *testing.T) {
	t.Parallel()

	widget := Named{Path: path.MustParse("pkg.widget")}
	borrow := Indirection{Kind: Borrow, Pointee: widget}

	named := WithLifetime(borrow, "a")
	ind, ok := named.(Indirection)
	require.True(t, ok)
	assert.Equal(t, "a", ind.Lifetime)

	// Non-borrow shapes pass through unchanged.
	ptr := pointerTo(widget, false)
	assert.True(t, WithLifetime(ptr, "a").Equal(ptr))
}
