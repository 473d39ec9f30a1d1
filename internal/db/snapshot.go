package db

// Snapshot is the full persisted state of a Database, exchanged with the
// persistence layer. It mirrors the logical schema: package identity, the
// three item collections, registered environments, and the next-id counter
// of each identifier namespace.
type Snapshot struct {
	PackageName    string
	PackageVersion string
	NativeItems    []*NativeItem
	FfiItems       []*FfiItem
	SurfaceItems   []*SurfaceItem
	Environments   []Environment
	NextNativeID   NativeItemID
	NextFfiID      FfiItemID
}

// Snapshot captures the database state for writing back. The items are
// shared, not copied; the caller must not mutate them.
func (d *Database) Snapshot() Snapshot {
	return Snapshot{
		PackageName:    d.data.packageName,
		PackageVersion: d.data.packageVersion,
		NativeItems:    d.data.nativeItems,
		FfiItems:       d.data.ffiItems,
		SurfaceItems:   d.data.surfaceItems,
		Environments:   d.data.environments,
		NextNativeID:   d.data.nextNativeID,
		NextFfiID:      d.data.nextFfiID,
	}
}

// FromSnapshot reconstructs a Database from persisted state. The result is
// marked unmodified: nothing has changed since it was written.
func FromSnapshot(s Snapshot) *Database {
	d := &Database{
		data: data{
			packageName:    s.PackageName,
			packageVersion: s.PackageVersion,
			nativeItems:    s.NativeItems,
			ffiItems:       s.FfiItems,
			surfaceItems:   s.SurfaceItems,
			environments:   s.Environments,
			nextNativeID:   s.NextNativeID,
			nextFfiID:      s.NextFfiID,
		},
	}
	if d.data.nextNativeID == 0 {
		d.data.nextNativeID = 1
	}
	if d.data.nextFfiID == 0 {
		d.data.nextFfiID = 1
	}
	return d
}

// RestoreChecks reinstalls a persisted check ledger on a loaded FFI item.
func RestoreChecks(item *FfiItem, entries []CheckEntry) {
	item.Checks.restore(entries)
}
