package db

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"unicode"

	"github.com/jward/bindery/internal/path"
)

var (
	// ErrNotFound reports a lookup by id or path that matched nothing.
	// Always recoverable; callers treat it as absence.
	ErrNotFound = errors.New("item not found")
	// ErrPackageMismatch reports a surface item whose package segment does
	// not match the store's package.
	ErrPackageMismatch = errors.New("package name mismatch")
	// ErrUnreachablePath reports a surface item whose ancestor chain is not
	// fully present in the store.
	ErrUnreachablePath = errors.New("unreachable ancestor path")
)

// Counters accumulates add/ignore tallies between drains, for stage
// reporting.
type Counters struct {
	Added   int
	Ignored int
}

type data struct {
	packageName    string
	packageVersion string
	nativeItems    []*NativeItem
	ffiItems       []*FfiItem
	surfaceItems   []*SurfaceItem
	environments   []Environment
	nextNativeID   NativeItemID
	nextFfiID      FfiItemID
}

// Database is the versioned store for one wrapped package: parallel
// collections of native declarations, FFI wrappers and surface items, plus
// the registered check environments. Items are kept in identifier order;
// id lookup is a binary search over that order. The isModified flag flips on
// every mutation and is read by the persistence layer to decide whether to
// write back.
type Database struct {
	data       data
	isModified bool
	counters   Counters
}

// New creates an empty database for packageName.
func New(packageName string) *Database {
	return &Database{
		data: data{
			packageName:    packageName,
			packageVersion: "0.0.0",
			nextNativeID:   1,
			nextFfiID:      1,
		},
		isModified: true,
	}
}

// PackageName returns the package all surface items must belong to.
func (d *Database) PackageName() string { return d.data.packageName }

// PackageVersion returns the wrapped library version the store was built
// against.
func (d *Database) PackageVersion() string { return d.data.packageVersion }

// SetPackageVersion updates the stored package version.
func (d *Database) SetPackageVersion(v string) {
	if d.data.packageVersion != v {
		d.isModified = true
		d.data.packageVersion = v
	}
}

// IsModified reports whether the store has mutated since the last SetSaved.
func (d *Database) IsModified() bool { return d.isModified }

// SetSaved clears the modified flag after a successful write-back.
func (d *Database) SetSaved() { d.isModified = false }

// DrainCounters returns the add/ignore tallies accumulated since the last
// drain and resets them.
func (d *Database) DrainCounters() Counters {
	c := d.counters
	d.counters = Counters{}
	return c
}

// AddEnvironment registers a check environment. Set semantics: a duplicate
// registration is a no-op.
func (d *Database) AddEnvironment(env Environment) {
	for _, e := range d.data.environments {
		if e.Equal(env) {
			return
		}
	}
	d.isModified = true
	d.data.environments = append(d.data.environments, env)
}

// Environments returns the registered check environments.
func (d *Database) Environments() []Environment {
	cp := make([]Environment, len(d.data.environments))
	copy(cp, d.data.environments)
	return cp
}

// AddNative inserts a native declaration unless a structurally identical one
// is already stored, in which case the ignored counter increments and the
// second return is false. sourceFfiItem back-links synthesized declarations
// to the FFI item they came from; parser-sourced declarations pass nil.
func (d *Database) AddNative(sourceFfiItem *FfiItemID, payload NativePayload) (NativeItemID, bool) {
	for _, item := range d.data.nativeItems {
		if item.Payload.Equal(payload) {
			d.counters.Ignored++
			return 0, false
		}
	}
	d.isModified = true
	id := d.data.nextNativeID
	d.data.nextNativeID++
	d.data.nativeItems = append(d.data.nativeItems, &NativeItem{
		ID:            id,
		Payload:       payload,
		SourceFfiItem: sourceFfiItem,
	})
	d.counters.Added++
	return id, true
}

// AddFfi inserts an FFI wrapper and reports whether a new item was actually
// added; a structural duplicate only increments the ignored counter.
func (d *Database) AddFfi(payload FfiPayload) bool {
	d.isModified = true
	for _, item := range d.data.ffiItems {
		if item.Payload.Equal(payload) {
			d.counters.Ignored++
			return false
		}
	}
	id := d.data.nextFfiID
	d.data.nextFfiID++
	d.data.ffiItems = append(d.data.ffiItems, &FfiItem{ID: id, Payload: payload})
	d.counters.Added++
	return true
}

// NativeByID returns the native item with the given id.
func (d *Database) NativeByID(id NativeItemID) (*NativeItem, error) {
	items := d.data.nativeItems
	i := sort.Search(len(items), func(i int) bool { return items[i].ID >= id })
	if i == len(items) || items[i].ID != id {
		return nil, fmt.Errorf("native item #%s: %w", id, ErrNotFound)
	}
	return items[i], nil
}

// FfiByID returns the FFI item with the given id.
func (d *Database) FfiByID(id FfiItemID) (*FfiItem, error) {
	items := d.data.ffiItems
	i := sort.Search(len(items), func(i int) bool { return items[i].ID >= id })
	if i == len(items) || items[i].ID != id {
		return nil, fmt.Errorf("ffi item #%s: %w", id, ErrNotFound)
	}
	return items[i], nil
}

// NativeItems returns the native collection in id order, for reading.
func (d *Database) NativeItems() []*NativeItem { return d.data.nativeItems }

// FfiItems returns the FFI collection in id order, for reading.
func (d *Database) FfiItems() []*FfiItem { return d.data.ffiItems }

// FfiItemsMut returns the FFI collection and marks the store modified; the
// caller intends to mutate items (check ledgers, processed flags).
func (d *Database) FfiItemsMut() []*FfiItem {
	d.isModified = true
	return d.data.ffiItems
}

// SurfaceItems returns the surface collection in insertion order.
func (d *Database) SurfaceItems() []*SurfaceItem { return d.data.surfaceItems }

// FindSurfaceItem returns the surface item at p, or nil.
func (d *Database) FindSurfaceItem(p path.Path) *SurfaceItem {
	for _, item := range d.data.surfaceItems {
		if item.Path().Equal(p) {
			return item
		}
	}
	return nil
}

// SurfaceChildren iterates the surface items placed directly under p. The
// sequence is finite and restartable.
func (d *Database) SurfaceChildren(p path.Path) iter.Seq[*SurfaceItem] {
	return func(yield func(*SurfaceItem) bool) {
		for _, item := range d.data.surfaceItems {
			if item.Path().IsChildOf(p) {
				if !yield(item) {
					return
				}
			}
		}
	}
}

// AddSurface validates and inserts a generated surface item. A package root
// must carry a single-segment path equal to the store's package name; any
// other item must match the package and have its entire strict-prefix
// ancestor chain already stored. A structural duplicate is not an error: the
// existing item is kept and the ignored counter increments.
func (d *Database) AddSurface(item *SurfaceItem) error {
	d.isModified = true
	p := item.Path()
	if item.IsRoot() {
		if _, ok := p.Parent(); ok {
			return fmt.Errorf("package root %q must not have a parent: %w", p, ErrUnreachablePath)
		}
		if p.Last() != d.data.packageName {
			return fmt.Errorf("root %q does not match package %q: %w", p, d.data.packageName, ErrPackageMismatch)
		}
	} else {
		pkg, ok := p.PackageName()
		if !ok || pkg != d.data.packageName {
			return fmt.Errorf("item %q does not belong to package %q: %w", p, d.data.packageName, ErrPackageMismatch)
		}
		ancestor, ok := p.Parent()
		if !ok {
			return fmt.Errorf("item %q has no parent: %w", p, ErrUnreachablePath)
		}
		for ancestor.Len() >= 1 {
			if d.FindSurfaceItem(ancestor) == nil {
				return fmt.Errorf("ancestor %q of %q is not stored: %w", ancestor, p, ErrUnreachablePath)
			}
			parent, ok := ancestor.Parent()
			if !ok {
				break
			}
			ancestor = parent
		}
	}

	for _, existing := range d.data.surfaceItems {
		if existing.Payload.Equal(item.Payload) {
			d.counters.Ignored++
			return nil
		}
	}
	d.data.surfaceItems = append(d.data.surfaceItems, item)
	d.counters.Added++
	return nil
}

// MakeUniquePath returns desired when unoccupied, otherwise the first free
// probe with the last segment suffixed by 2, 3, 4 and so on. A separator is
// inserted before the digits only when the base segment already ends in a
// digit, so the suffix never extends an existing digit run.
func (d *Database) MakeUniquePath(desired path.Path) path.Path {
	probe := desired
	for number := 1; ; number++ {
		if number > 1 {
			sep := ""
			if endsWithDigit(desired.Last()) {
				sep = "_"
			}
			probe = desired.WithLast(desired.Last() + sep + strconv.Itoa(number))
		}
		if d.FindSurfaceItem(probe) == nil {
			return probe
		}
	}
}

func endsWithDigit(s string) bool {
	runes := []rune(s)
	return len(runes) > 0 && unicode.IsDigit(runes[len(runes)-1])
}

// ClearNative drops all native declarations and the registered environments,
// ahead of a parser re-run.
func (d *Database) ClearNative() {
	d.isModified = true
	d.data.nativeItems = nil
	d.data.environments = nil
}

// ClearFfi drops all FFI wrappers, along with any native declaration whose
// only purpose was deriving them (those back-linked to an FFI item).
// Parser-sourced declarations survive.
func (d *Database) ClearFfi() {
	d.isModified = true
	d.data.ffiItems = nil
	kept := d.data.nativeItems[:0]
	for _, item := range d.data.nativeItems {
		if item.SourceFfiItem == nil {
			kept = append(kept, item)
		}
	}
	d.data.nativeItems = kept
}

// ClearSurface drops all generated surface items and resets the processed
// flags so a generation re-run reconsiders every wrapper.
func (d *Database) ClearSurface() {
	d.isModified = true
	d.data.surfaceItems = nil
	for _, item := range d.data.ffiItems {
		item.IsProcessed = false
	}
}

// ClearChecks empties every FFI item's compatibility ledger; the items
// themselves stay valid.
func (d *Database) ClearChecks() {
	d.isModified = true
	for _, item := range d.data.ffiItems {
		item.Checks.Clear()
	}
}
