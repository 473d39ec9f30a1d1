package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/bindery/internal/path"
)

// newDatabaseWithRoot creates a store for package "pkg" with its root module
// already in place, the state every surface insertion builds on.
func newDatabaseWithRoot(t *testing.T) *Database {
	t.Helper()
	d := New("pkg")
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{
		ModulePath: path.New("pkg"),
		Root:       true,
	}}))
	return d
}

func namespaceDecl(segments ...string) NativePayload {
	return NamespaceDecl{Path: path.New(segments...)}
}

func TestAddNativeAllocatesMonotonicIDs(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	first, added := d.AddNative(nil, namespaceDecl("a"))
	require.True(t, added)
	second, added := d.AddNative(nil, namespaceDecl("b"))
	require.True(t, added)
	assert.Equal(t, NativeItemID(1), first)
	assert.Equal(t, NativeItemID(2), second)

	// Identifiers are never reused, even after a clear.
	d.ClearNative()
	third, added := d.AddNative(nil, namespaceDecl("a"))
	require.True(t, added)
	assert.Equal(t, NativeItemID(3), third)
}

func TestAddNativeDeduplicates(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	id, added := d.AddNative(nil, namespaceDecl("a"))
	require.True(t, added)

	dup, added := d.AddNative(nil, namespaceDecl("a"))
	assert.False(t, added)
	assert.Equal(t, NativeItemID(0), dup)
	assert.Len(t, d.NativeItems(), 1)

	c := d.DrainCounters()
	assert.Equal(t, 1, c.Added)
	assert.Equal(t, 1, c.Ignored)

	item, err := d.NativeByID(id)
	require.NoError(t, err)
	assert.True(t, item.Payload.Equal(namespaceDecl("a")))
}

func TestAddFfiDeduplicates(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	wrapper := WrapperFunction{
		SourcePath: path.New("Widget", "show"),
		CName:      "ctw_Widget_show",
		Kind:       Method,
		ReturnType: "void",
	}
	assert.True(t, d.AddFfi(wrapper))
	assert.False(t, d.AddFfi(wrapper))
	assert.Len(t, d.FfiItems(), 1)
	assert.Equal(t, FfiItemID(1), d.FfiItems()[0].ID)

	// The FFI id sequence also survives clears.
	d.ClearFfi()
	require.True(t, d.AddFfi(wrapper))
	assert.Equal(t, FfiItemID(2), d.FfiItems()[0].ID)
}

func TestLookupByIDReportsNotFound(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	_, err := d.NativeByID(7)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.FfiByID(7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddSurfaceRootValidation(t *testing.T) {
	t.Parallel()

	d := New("pkg")

	// A root must be a single segment equal to the package name.
	err := d.AddSurface(&SurfaceItem{Payload: Module{
		ModulePath: path.MustParse("pkg.sub"),
		Root:       true,
	}})
	assert.ErrorIs(t, err, ErrUnreachablePath)

	err = d.AddSurface(&SurfaceItem{Payload: Module{
		ModulePath: path.New("other"),
		Root:       true,
	}})
	assert.ErrorIs(t, err, ErrPackageMismatch)

	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{
		ModulePath: path.New("pkg"),
		Root:       true,
	}}))
}

func TestAddSurfaceRequiresStoredAncestors(t *testing.T) {
	t.Parallel()

	d := newDatabaseWithRoot(t)

	// pkg.ui is missing, so pkg.ui.widget is unreachable.
	err := d.AddSurface(&SurfaceItem{Payload: Struct{
		StructPath: path.MustParse("pkg.ui.widget"),
	}})
	assert.ErrorIs(t, err, ErrUnreachablePath)

	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{
		ModulePath: path.MustParse("pkg.ui"),
	}}))
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Struct{
		StructPath: path.MustParse("pkg.ui.widget"),
	}}))
}

func TestAddSurfaceRejectsForeignPackage(t *testing.T) {
	t.Parallel()

	d := newDatabaseWithRoot(t)
	err := d.AddSurface(&SurfaceItem{Payload: Module{
		ModulePath: path.MustParse("other.ui"),
	}})
	assert.ErrorIs(t, err, ErrPackageMismatch)
}

func TestAddSurfaceDeduplicates(t *testing.T) {
	t.Parallel()

	d := newDatabaseWithRoot(t)
	item := Module{ModulePath: path.MustParse("pkg.ui")}
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: item}))
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: item}))
	assert.Len(t, d.SurfaceItems(), 2) // root plus one module

	c := d.DrainCounters()
	assert.Equal(t, 2, c.Added)
	assert.Equal(t, 1, c.Ignored)
}

func TestSurfaceChildrenIsRestartable(t *testing.T) {
	t.Parallel()

	d := newDatabaseWithRoot(t)
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{ModulePath: path.MustParse("pkg.ui")}}))
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{ModulePath: path.MustParse("pkg.net")}}))
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Struct{StructPath: path.MustParse("pkg.ui.widget")}}))

	children := d.SurfaceChildren(path.New("pkg"))
	for round := 0; round < 2; round++ {
		var got []string
		for item := range children {
			got = append(got, item.Path().String())
		}
		assert.ElementsMatch(t, []string{"pkg.ui", "pkg.net"}, got)
	}
}

func TestMakeUniquePath(t *testing.T) {
	t.Parallel()

	d := newDatabaseWithRoot(t)
	assert.Equal(t, "pkg.item", d.MakeUniquePath(path.MustParse("pkg.item")).String())

	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{ModulePath: path.MustParse("pkg.item")}}))
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{ModulePath: path.MustParse("pkg.item2")}}))
	assert.Equal(t, "pkg.item3", d.MakeUniquePath(path.MustParse("pkg.item")).String())

	// A base ending in a digit gets a separator so the suffix never extends
	// the existing digit run.
	require.NoError(t, d.AddSurface(&SurfaceItem{Payload: Module{ModulePath: path.MustParse("pkg.vec2")}}))
	assert.Equal(t, "pkg.vec2_2", d.MakeUniquePath(path.MustParse("pkg.vec2")).String())
}

func TestClearFfiKeepsParserSourcedNatives(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	parsed, _ := d.AddNative(nil, namespaceDecl("a"))
	d.AddFfi(WrapperFunction{SourcePath: path.New("a", "f"), CName: "ctw_a_f"})
	origin := d.FfiItems()[0].ID
	synthesized, _ := d.AddNative(&origin, namespaceDecl("b"))

	d.ClearFfi()
	assert.Empty(t, d.FfiItems())
	_, err := d.NativeByID(parsed)
	assert.NoError(t, err)
	_, err = d.NativeByID(synthesized)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearNativeDropsEnvironments(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	d.AddNative(nil, namespaceDecl("a"))
	d.AddEnvironment(Environment{Target: "x86_64-linux-gnu"})

	d.ClearNative()
	assert.Empty(t, d.NativeItems())
	assert.Empty(t, d.Environments())
}

func TestClearSurfaceResetsProcessedFlags(t *testing.T) {
	t.Parallel()

	d := newDatabaseWithRoot(t)
	d.AddFfi(WrapperFunction{SourcePath: path.New("a", "f"), CName: "ctw_a_f"})
	d.FfiItemsMut()[0].IsProcessed = true

	d.ClearSurface()
	assert.Empty(t, d.SurfaceItems())
	assert.False(t, d.FfiItems()[0].IsProcessed)
}

func TestClearChecksKeepsItems(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	d.AddFfi(WrapperFunction{SourcePath: path.New("a", "f"), CName: "ctw_a_f"})
	item := d.FfiItems()[0]
	item.Checks.Record(Environment{Target: "x86_64-linux-gnu"}, nil)
	require.True(t, item.Checks.AnyPassed())

	d.ClearChecks()
	assert.Len(t, d.FfiItems(), 1)
	assert.False(t, item.Checks.AnyPassed())
	assert.Empty(t, item.Checks.Entries())
}

func TestEnvironmentSetSemantics(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	env := Environment{Target: "x86_64-linux-gnu", LibraryVersion: "5.2"}
	d.AddEnvironment(env)
	d.AddEnvironment(env)
	d.AddEnvironment(Environment{Target: "aarch64-linux-gnu"})
	assert.Len(t, d.Environments(), 2)
}

func TestModifiedFlag(t *testing.T) {
	t.Parallel()

	d := New("pkg")
	assert.True(t, d.IsModified())
	d.SetSaved()
	assert.False(t, d.IsModified())

	// Read accessors do not flip the flag.
	d.NativeItems()
	d.Environments()
	assert.False(t, d.IsModified())

	// A duplicate environment registration changes nothing.
	d.AddEnvironment(Environment{Target: "t"})
	d.SetSaved()
	d.AddEnvironment(Environment{Target: "t"})
	assert.False(t, d.IsModified())

	// Redundant version writes change nothing either.
	d.SetPackageVersion(d.PackageVersion())
	assert.False(t, d.IsModified())
	d.SetPackageVersion("6.0")
	assert.True(t, d.IsModified())
}
