package db

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRecordOutcomes(t *testing.T) {
	t.Parallel()

	var c Checks
	env := Environment{Target: "x86_64-linux-gnu"}

	outcome, prev := c.Record(env, nil)
	assert.Equal(t, RecordAdded, outcome)
	assert.Nil(t, prev)

	// Same result again: nothing moves.
	outcome, prev = c.Record(env, nil)
	assert.Equal(t, RecordUnchanged, outcome)
	assert.Nil(t, prev)

	// A pass turning into a failure reports the previous (nil) error.
	outcome, prev = c.Record(env, strPtr("missing symbol"))
	assert.Equal(t, RecordChanged, outcome)
	assert.Nil(t, prev)

	// Same failure message: unchanged.
	outcome, _ = c.Record(env, strPtr("missing symbol"))
	assert.Equal(t, RecordUnchanged, outcome)

	// A different failure replaces it and hands back the old message.
	outcome, prev = c.Record(env, strPtr("bad signature"))
	assert.Equal(t, RecordChanged, outcome)
	require.NotNil(t, prev)
	assert.Equal(t, "missing symbol", *prev)

	// One entry per environment throughout.
	assert.Len(t, c.Entries(), 1)
}

func TestRecordKeepsEnvironmentsSeparate(t *testing.T) {
	t.Parallel()

	var c Checks
	linux := Environment{Target: "x86_64-linux-gnu"}
	mac := Environment{Target: "aarch64-apple-darwin"}

	c.Record(linux, nil)
	c.Record(mac, strPtr("header not found"))

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Passed())
	assert.False(t, entries[1].Passed())
	assert.True(t, c.AnyPassed())

	c.Record(linux, strPtr("broke"))
	assert.False(t, c.AnyPassed())
}

func TestChecksClear(t *testing.T) {
	t.Parallel()

	var c Checks
	c.Record(Environment{Target: "t"}, nil)
	c.Clear()
	assert.Empty(t, c.Entries())
	assert.False(t, c.AnyPassed())
}

func TestRecordIsSafeUnderParallelProbes(t *testing.T) {
	t.Parallel()

	var c Checks
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := Environment{Target: "target", LibraryVersion: string(rune('a' + i%4))}
			if i%2 == 0 {
				c.Record(env, nil)
			} else {
				c.Record(env, strPtr("fail"))
			}
		}(i)
	}
	wg.Wait()

	// Four distinct environments, one entry each.
	assert.Len(t, c.Entries(), 4)
}
