package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
)

func functionItem(segments ...string) *db.NativeItem {
	return &db.NativeItem{ID: 1, Payload: db.FunctionDecl{
		Path: path.New(segments...),
		Kind: db.FreeFunction,
	}}
}

func TestAllowByKind(t *testing.T) {
	t.Parallel()

	filter := NewFilter(`item["kind"] == "function"`)
	ctx := context.Background()

	ok, err := filter.Allow(ctx, functionItem("ui", "init"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = filter.Allow(ctx, &db.NativeItem{ID: 2, Payload: db.TypeDecl{
		Path: path.New("ui", "Widget"),
		Kind: db.TypeClass,
	}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowByPath(t *testing.T) {
	t.Parallel()

	filter := NewFilter(`item["path"] != "ui.internalHelper"`)
	ctx := context.Background()

	ok, err := filter.Allow(ctx, functionItem("ui", "init"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = filter.Allow(ctx, functionItem("ui", "internalHelper"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowTakesResultByTruthiness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// A non-empty string verdict counts as allowed.
	ok, err := NewFilter(`item["path"]`).Allow(ctx, functionItem("ui", "init"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewFilter(`""`).Allow(ctx, functionItem("ui", "init"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowReportsScriptErrors(t *testing.T) {
	t.Parallel()

	filter := NewFilter(`no_such_function()`)
	_, err := filter.Allow(context.Background(), functionItem("ui", "init"))
	assert.Error(t, err)
}

func TestLoadMissingScript(t *testing.T) {
	t.Parallel()

	_, err := Load("does/not/exist.risor")
	assert.Error(t, err)
}
