package bindery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jward/bindery/internal/check"
	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/derive"
	"github.com/jward/bindery/internal/gen"
	"github.com/jward/bindery/internal/parse"
	"github.com/jward/bindery/internal/rules"
	"github.com/jward/bindery/internal/store"
)

// Engine orchestrates the binding pipeline against one item database:
// parsing headers, deriving FFI wrappers, checking environments, and
// generating surface items. Stages run one at a time, in pipeline order;
// nothing touches disk until Save.
type Engine struct {
	database   *db.Database
	store      *store.Store
	parser     *parse.Parser
	filter     *rules.Filter
	prober     check.Prober
	flagsEnums []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules installs a Risor filter deciding which native declarations the
// derivation stage wraps.
func WithRules(filter *rules.Filter) Option {
	return func(e *Engine) {
		e.filter = filter
	}
}

// WithProber replaces the default compiler prober used by the checking
// stage.
func WithProber(prober check.Prober) Option {
	return func(e *Engine) {
		e.prober = prober
	}
}

// WithFlagsEnums marks the named enums ("ns::Align") as bit-flag enums when
// their declarations are discovered during parsing, so generation gives them
// the integer-from-flags boundary conversion.
func WithFlagsEnums(names ...string) Option {
	return func(e *Engine) {
		e.flagsEnums = append(e.flagsEnums, names...)
	}
}

// WithEnvironments registers check environments up front; duplicates of
// already-registered environments are ignored.
func WithEnvironments(envs ...db.Environment) Option {
	return func(e *Engine) {
		for _, env := range envs {
			e.database.AddEnvironment(env)
		}
	}
}

// New opens (or creates) the persisted database at dbPath for packageName.
// A previously saved database must carry the same package name.
func New(dbPath, packageName string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("bindery: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("bindery: migrate: %w", err)
	}

	database, err := s.Load()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("bindery: load database: %w", err)
	}
	if database == nil {
		database = db.New(packageName)
	} else if database.PackageName() != packageName {
		s.Close()
		return nil, fmt.Errorf("bindery: database belongs to package %q, not %q",
			database.PackageName(), packageName)
	}

	e := &Engine{
		database: database,
		store:    s,
		parser:   parse.NewParser(),
		prober:   &check.CompilerProber{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the persistence connection. In-memory changes not yet
// saved are discarded.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Database exposes the item database for direct access.
func (e *Engine) Database() *db.Database {
	return e.database
}

// RegisterEnvironment adds a check environment; duplicates are ignored.
func (e *Engine) RegisterEnvironment(env db.Environment) {
	e.database.AddEnvironment(env)
}

// Parse extracts native declarations from the given header files. Per-file
// errors are reported together after the remaining files are processed.
func (e *Engine) Parse(ctx context.Context, headerPaths []string) error {
	var errs []error
	for _, headerPath := range headerPaths {
		src, err := os.ReadFile(headerPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", headerPath, err))
			continue
		}
		payloads, err := e.parser.ParseHeader(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", headerPath, err))
			continue
		}
		for _, payload := range payloads {
			e.database.AddNative(nil, e.reclassify(payload))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("parsing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// reclassify upgrades parsed enum declarations named by WithFlagsEnums to
// bit-flag enums; everything else passes through untouched.
func (e *Engine) reclassify(payload db.NativePayload) db.NativePayload {
	decl, ok := payload.(db.TypeDecl)
	if !ok || decl.Kind != db.TypeEnum {
		return payload
	}
	qualified := strings.Join(decl.Path.Parts(), "::")
	for _, name := range e.flagsEnums {
		if name == qualified {
			decl.Kind = db.TypeFlagsEnum
			return decl
		}
	}
	return payload
}

// Derive expands native declarations into FFI wrapper items, applying the
// configured rules filter when present.
func (e *Engine) Derive(ctx context.Context) error {
	var allow derive.AllowFunc
	if e.filter != nil {
		allow = e.filter.Allow
	}
	return derive.NewDeriver(e.database, allow).Run(ctx)
}

// Check probes every FFI wrapper under each registered environment and
// records the results in the wrappers' ledgers.
func (e *Engine) Check(ctx context.Context) check.Stats {
	return check.NewChecker(e.database, e.prober).Run(ctx)
}

// Generate produces surface items from wrappers with at least one passing
// check.
func (e *Engine) Generate() error {
	return gen.NewGenerator(e.database).Run()
}

// Save writes the database back if it has been modified.
func (e *Engine) Save() error {
	return e.store.Save(e.database)
}

// DrainCounters returns and resets the added/ignored tallies accumulated
// since the last drain.
func (e *Engine) DrainCounters() db.Counters {
	return e.database.DrainCounters()
}
