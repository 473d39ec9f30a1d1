// Package check runs every FFI wrapper against the registered environments
// and records the outcomes in each item's compatibility ledger. A wrapper
// failing to compile on an environment is data, not an error: the run keeps
// going and the ledger remembers the failure message.
package check

import (
	"context"
	"sync"

	"github.com/jward/bindery/internal/db"
)

// Prober validates one wrapper under one environment. A nil return means the
// wrapper compiled and ran cleanly; any error becomes the stored failure
// message.
type Prober interface {
	Probe(ctx context.Context, env db.Environment, item *db.FfiItem) error
}

// Stats aggregates ledger outcomes across one checking run.
type Stats struct {
	Added     int
	Changed   int
	Unchanged int
	// Regressions lists wrappers whose result changed from passing to
	// failing, with the environment it happened on.
	Regressions []Regression
}

// Regression is one pass-to-fail transition observed while recording.
type Regression struct {
	Item  db.FfiItemID
	Env   db.Environment
	Error string
}

// Checker drives the checking stage for one database.
type Checker struct {
	database *db.Database
	prober   Prober
}

// NewChecker creates a Checker using the given prober.
func NewChecker(database *db.Database, prober Prober) *Checker {
	return &Checker{database: database, prober: prober}
}

// Run probes every FFI item under every registered environment. Probes for
// one item run in parallel across environments; recording into the item's
// ledger is serialized by the ledger itself.
func (c *Checker) Run(ctx context.Context) Stats {
	envs := c.database.Environments()
	items := c.database.FfiItemsMut()

	var (
		mu    sync.Mutex
		stats Stats
	)
	for _, item := range items {
		var wg sync.WaitGroup
		for _, env := range envs {
			wg.Add(1)
			go func(env db.Environment, item *db.FfiItem) {
				defer wg.Done()
				var errMsg *string
				if err := c.prober.Probe(ctx, env, item); err != nil {
					msg := err.Error()
					errMsg = &msg
				}
				outcome, prev := item.Checks.Record(env, errMsg)

				mu.Lock()
				defer mu.Unlock()
				switch outcome {
				case db.RecordAdded:
					stats.Added++
				case db.RecordChanged:
					stats.Changed++
					if prev == nil && errMsg != nil {
						stats.Regressions = append(stats.Regressions, Regression{
							Item:  item.ID,
							Env:   env,
							Error: *errMsg,
						})
					}
				default:
					stats.Unchanged++
				}
			}(env, item)
		}
		wg.Wait()
	}
	return stats
}
