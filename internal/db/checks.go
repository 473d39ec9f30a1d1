package db

import "sync"

// CheckEntry is one compatibility result: the environment checked and the
// failure message, nil when the wrapper compiled and ran cleanly.
type CheckEntry struct {
	Env   Environment
	Error *string
}

// Passed reports whether the entry records a clean check.
func (e CheckEntry) Passed() bool { return e.Error == nil }

// RecordOutcome classifies the effect of recording a check result.
type RecordOutcome int

const (
	// RecordAdded: the environment had no prior entry.
	RecordAdded RecordOutcome = iota
	// RecordChanged: the environment's result differed; the previous error
	// is returned alongside for regression reporting.
	RecordChanged
	// RecordUnchanged: the result matched the existing entry; nothing moved.
	RecordUnchanged
)

// Checks is the per-item compatibility ledger: an ordered list of results
// with at most one entry per distinct environment. Record calls targeting
// the same item may come from parallel environment probes and are serialized
// here; distinct items need no coordination. Checks must not be copied after
// first use.
type Checks struct {
	mu      sync.Mutex
	entries []CheckEntry
}

// Record stores the result for env. An identical existing result is left
// alone; a differing one is replaced, returning the previous error.
func (c *Checks) Record(env Environment, errMsg *string) (RecordOutcome, *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.entries {
		if !entry.Env.Equal(env) {
			continue
		}
		if equalErrMsg(entry.Error, errMsg) {
			return RecordUnchanged, nil
		}
		prev := entry.Error
		c.entries[i].Error = errMsg
		return RecordChanged, prev
	}
	c.entries = append(c.entries, CheckEntry{Env: env, Error: errMsg})
	return RecordAdded, nil
}

// AnyPassed reports whether at least one environment checked cleanly.
func (c *Checks) AnyPassed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Passed() {
			return true
		}
	}
	return false
}

// Entries returns a snapshot of the ledger in recording order.
func (c *Checks) Entries() []CheckEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]CheckEntry, len(c.entries))
	copy(cp, c.entries)
	return cp
}

// Clear drops all results without touching the owning item.
func (c *Checks) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// restore replaces the ledger wholesale, used when loading persisted state.
func (c *Checks) restore(entries []CheckEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
}

func equalErrMsg(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
