// Package bindery generates managed-language bindings for native C++
// libraries through a C FFI layer, keeping all bookkeeping in a single
// versioned item database.
//
// # Pipeline
//
// Bindery operates in four stages, each re-runnable on its own:
//
//  1. Parse: discover native declarations in library headers with
//     tree-sitter and record them as native items.
//
//  2. Derive: expand wrappable declarations into FFI wrapper items with
//     C-compatible signatures, deduplicated against earlier runs.
//
//  3. Check: probe every wrapper under each registered environment
//     (platform target plus library version) and record pass/fail results
//     in the wrapper's compatibility ledger.
//
//  4. Generate: turn wrappers that passed on at least one environment into
//     surface items placed in the package namespace, with boundary types
//     derived through the reversible conversion algebra.
//
// # Usage
//
// Create an Engine, run the stages, and save:
//
//	e, err := bindery.New("bindings.db", "mylib")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	e.RegisterEnvironment(bindery.Environment{Target: "x86_64-linux-gnu"})
//	err = e.Parse(ctx, headerPaths)
//	err = e.Derive(ctx)
//	stats := e.Check(ctx)
//	err = e.Generate()
//	err = e.Save()
//
// Saving is explicit and gated on the database's modified flag; aborting a
// run before Save discards its in-memory changes.
//
// # Rules scripts
//
// An optional Risor script filters which native declarations get wrapped.
// The script receives an `item` map with `path` and `kind` keys and its last
// expression is the verdict:
//
//	item["kind"] == "function" && !strings.has_prefix(item["path"], "mylib.internal")
package bindery
