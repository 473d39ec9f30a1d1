package check

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
)

// fakeProber answers probes from a per-target script, so tests control which
// environments pass without invoking a real compiler.
type fakeProber struct {
	fail map[string]string // target -> failure message
}

func (p *fakeProber) Probe(ctx context.Context, env db.Environment, item *db.FfiItem) error {
	if msg, ok := p.fail[env.Target]; ok {
		return errors.New(msg)
	}
	return nil
}

func newCheckedDatabase(t *testing.T) *db.Database {
	t.Helper()
	d := db.New("pkg")
	require.True(t, d.AddFfi(db.WrapperFunction{
		SourcePath: path.New("Widget", "show"),
		CName:      "ctw_Widget_show",
		Kind:       db.Method,
		ReturnType: "void",
	}))
	d.AddEnvironment(db.Environment{Target: "linux"})
	d.AddEnvironment(db.Environment{Target: "darwin"})
	return d
}

func TestRunRecordsAllEnvironments(t *testing.T) {
	t.Parallel()

	d := newCheckedDatabase(t)
	prober := &fakeProber{fail: map[string]string{"darwin": "header not found"}}

	stats := NewChecker(d, prober).Run(context.Background())
	assert.Equal(t, 2, stats.Added)
	assert.Zero(t, stats.Changed)
	assert.Empty(t, stats.Regressions)

	item := d.FfiItems()[0]
	assert.True(t, item.Checks.AnyPassed())
	assert.Len(t, item.Checks.Entries(), 2)
}

func TestRunIsStableOnRepeat(t *testing.T) {
	t.Parallel()

	d := newCheckedDatabase(t)
	prober := &fakeProber{}
	checker := NewChecker(d, prober)

	checker.Run(context.Background())
	stats := checker.Run(context.Background())
	assert.Zero(t, stats.Added)
	assert.Zero(t, stats.Changed)
	assert.Equal(t, 2, stats.Unchanged)
}

func TestRunDetectsRegressions(t *testing.T) {
	t.Parallel()

	d := newCheckedDatabase(t)
	prober := &fakeProber{}
	NewChecker(d, prober).Run(context.Background())

	// The wrapper stops compiling on linux.
	prober.fail = map[string]string{"linux": "undefined symbol"}
	stats := NewChecker(d, prober).Run(context.Background())

	assert.Equal(t, 1, stats.Changed)
	require.Len(t, stats.Regressions, 1)
	r := stats.Regressions[0]
	assert.Equal(t, d.FfiItems()[0].ID, r.Item)
	assert.Equal(t, "linux", r.Env.Target)
	assert.Equal(t, "undefined symbol", r.Error)
}

func TestFailuresAreDataNotErrors(t *testing.T) {
	t.Parallel()

	d := newCheckedDatabase(t)
	prober := &fakeProber{fail: map[string]string{"linux": "x", "darwin": "y"}}
	stats := NewChecker(d, prober).Run(context.Background())

	// Every probe failed, yet the run completed and recorded everything.
	assert.Equal(t, 2, stats.Added)
	item := d.FfiItems()[0]
	assert.False(t, item.Checks.AnyPassed())
	for _, entry := range item.Checks.Entries() {
		assert.False(t, entry.Passed())
		require.NotNil(t, entry.Error)
	}
}

func TestFixedWrapperIsNotARegression(t *testing.T) {
	t.Parallel()

	d := newCheckedDatabase(t)
	prober := &fakeProber{fail: map[string]string{"linux": "broken"}}
	NewChecker(d, prober).Run(context.Background())

	// Fail-to-pass transitions are changes, never regressions.
	prober.fail = nil
	stats := NewChecker(d, prober).Run(context.Background())
	assert.Equal(t, 1, stats.Changed)
	assert.Empty(t, stats.Regressions)
}
