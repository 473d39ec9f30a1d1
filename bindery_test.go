package bindery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/bindery"
	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
	"github.com/jward/bindery/internal/rules"
)

// passProber approves every wrapper, so pipeline tests run without a
// compiler installed.
type passProber struct{}

func (passProber) Probe(ctx context.Context, env db.Environment, item *db.FfiItem) error {
	return nil
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "bindings.db")

	e, err := bindery.New(dbPath, "widgets",
		bindery.WithProber(passProber{}),
		bindery.WithEnvironments(bindery.Environment{Target: "x86_64-linux-gnu"}))
	require.NoError(t, err)

	header := filepath.Join(t.TempDir(), "widget.h")
	require.NoError(t, os.WriteFile(header, []byte(`
class Widget {
public:
  Widget();
  ~Widget();
  int width() const;
};
`), 0o644))

	require.NoError(t, e.Parse(ctx, []string{header}))
	counters := e.DrainCounters()
	assert.Greater(t, counters.Added, 0)

	require.NoError(t, e.Derive(ctx))
	wrapperCount := len(e.Database().FfiItems())
	require.Greater(t, wrapperCount, 0)

	// Re-deriving produces only structural duplicates.
	e.DrainCounters()
	require.NoError(t, e.Derive(ctx))
	assert.Len(t, e.Database().FfiItems(), wrapperCount)
	assert.Equal(t, wrapperCount, e.DrainCounters().Ignored)

	stats := e.Check(ctx)
	assert.Greater(t, stats.Added, 0)
	assert.Empty(t, stats.Regressions)

	require.NoError(t, e.Generate())
	require.NoError(t, e.Save())

	widget := e.Database().FindSurfaceItem(path.MustParse("widgets.widget"))
	require.NotNil(t, widget)
	width := e.Database().FindSurfaceItem(path.MustParse("widgets.widget.width"))
	require.NotNil(t, width)
	require.NoError(t, e.Close())

	// Everything survives a reopen.
	reopened, err := bindery.New(dbPath, "widgets")
	require.NoError(t, err)
	defer reopened.Close()
	assert.NotNil(t, reopened.Database().FindSurfaceItem(path.MustParse("widgets.widget.width")))
	assert.False(t, reopened.Database().IsModified())
}

func TestNewRejectsForeignPackage(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "bindings.db")

	e, err := bindery.New(dbPath, "widgets")
	require.NoError(t, err)
	require.NoError(t, e.Save())
	require.NoError(t, e.Close())

	_, err = bindery.New(dbPath, "gadgets")
	assert.Error(t, err)
}

func TestDeriveWithRulesFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "bindings.db")

	filter := rules.NewFilter(`item["path"] != "Widget.secret"`)
	e, err := bindery.New(dbPath, "widgets", bindery.WithRules(filter))
	require.NoError(t, err)
	defer e.Close()

	d := e.Database()
	d.AddNative(nil, db.FunctionDecl{
		Path: path.New("Widget", "show"),
		Kind: db.Method, ReturnType: "void",
	})
	d.AddNative(nil, db.FunctionDecl{
		Path: path.New("Widget", "secret"),
		Kind: db.Method, ReturnType: "void",
	})

	require.NoError(t, e.Derive(ctx))
	require.Len(t, d.FfiItems(), 1)
	wrapper, ok := d.FfiItems()[0].Payload.(db.WrapperFunction)
	require.True(t, ok)
	assert.Equal(t, "show", wrapper.SourcePath.Last())
}

func TestParseReclassifiesFlagsEnums(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "bindings.db")

	e, err := bindery.New(dbPath, "widgets", bindery.WithFlagsEnums("ui::Align"))
	require.NoError(t, err)
	defer e.Close()

	header := filepath.Join(t.TempDir(), "align.h")
	require.NoError(t, os.WriteFile(header, []byte(`
namespace ui {
enum Align { Left = 1, Right = 2 };
enum Mode { On, Off };
}
`), 0o644))
	require.NoError(t, e.Parse(ctx, []string{header}))

	kinds := make(map[string]db.TypeDeclKind)
	for _, item := range e.Database().NativeItems() {
		if decl, ok := item.Payload.(db.TypeDecl); ok {
			kinds[decl.Path.String()] = decl.Kind
		}
	}
	assert.Equal(t, db.TypeFlagsEnum, kinds["ui.Align"])
	assert.Equal(t, db.TypeEnum, kinds["ui.Mode"])
}

func TestParseCollectsPerFileErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "bindings.db")

	e, err := bindery.New(dbPath, "widgets")
	require.NoError(t, err)
	defer e.Close()

	good := filepath.Join(t.TempDir(), "good.h")
	require.NoError(t, os.WriteFile(good, []byte("void fine();\n"), 0o644))

	err = e.Parse(ctx, []string{"missing.h", good})
	assert.Error(t, err)

	// The readable header was still processed.
	assert.NotEmpty(t, e.Database().NativeItems())
}
