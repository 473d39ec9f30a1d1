// Package store persists the item database to SQLite. Persistence is an
// explicit step gated by the database's modified flag, never a side effect
// of mutation: an aborted run simply discards its in-memory changes.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/bindery/internal/db"
)

// Store is the SQLite persistence layer for one package database.
type Store struct {
	sqldb *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	sqldb, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{sqldb: sqldb}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sqldb.Close()
}

// Migrate creates all tables. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.sqldb.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS native_items (
  id              INTEGER PRIMARY KEY,
  payload         TEXT NOT NULL,
  source_ffi_item INTEGER
);

CREATE TABLE IF NOT EXISTS ffi_items (
  id              INTEGER PRIMARY KEY,
  payload         TEXT NOT NULL,
  checks          TEXT NOT NULL,
  is_processed    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS surface_items (
  ord             INTEGER PRIMARY KEY AUTOINCREMENT,
  payload         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS environments (
  ord             INTEGER PRIMARY KEY AUTOINCREMENT,
  target          TEXT NOT NULL,
  library_version TEXT NOT NULL DEFAULT ''
);
`

// Save writes the database back when it has been modified since the last
// save, replacing all persisted rows in one transaction, then clears the
// modified flag. An unmodified database is a no-op.
func (s *Store) Save(database *db.Database) error {
	if !database.IsModified() {
		return nil
	}
	snap := database.Snapshot()

	tx, err := s.sqldb.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"meta", "native_items", "ffi_items", "surface_items", "environments"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		"package_name":    snap.PackageName,
		"package_version": snap.PackageVersion,
		"next_native_id":  strconv.FormatUint(uint64(snap.NextNativeID), 10),
		"next_ffi_id":     strconv.FormatUint(uint64(snap.NextFfiID), 10),
	}
	for key, value := range meta {
		if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}

	for _, item := range snap.NativeItems {
		payload, err := encodeNativePayload(item.Payload)
		if err != nil {
			return err
		}
		var origin any
		if item.SourceFfiItem != nil {
			origin = int64(*item.SourceFfiItem)
		}
		if _, err := tx.Exec(
			"INSERT INTO native_items (id, payload, source_ffi_item) VALUES (?, ?, ?)",
			int64(item.ID), string(payload), origin,
		); err != nil {
			return fmt.Errorf("insert native item #%s: %w", item.ID, err)
		}
	}

	for _, item := range snap.FfiItems {
		payload, err := encodeFfiPayload(item.Payload)
		if err != nil {
			return err
		}
		checks, err := encodeChecks(item.Checks.Entries())
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO ffi_items (id, payload, checks, is_processed) VALUES (?, ?, ?, ?)",
			int64(item.ID), string(payload), string(checks), item.IsProcessed,
		); err != nil {
			return fmt.Errorf("insert ffi item #%s: %w", item.ID, err)
		}
	}

	for _, item := range snap.SurfaceItems {
		payload, err := encodeSurfacePayload(item.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO surface_items (payload) VALUES (?)", string(payload)); err != nil {
			return fmt.Errorf("insert surface item %q: %w", item.Path(), err)
		}
	}

	for _, env := range snap.Environments {
		if _, err := tx.Exec(
			"INSERT INTO environments (target, library_version) VALUES (?, ?)",
			env.Target, env.LibraryVersion,
		); err != nil {
			return fmt.Errorf("insert environment %s: %w", env, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	database.SetSaved()
	return nil
}

// Load reconstructs the persisted database, or returns nil when nothing has
// been saved yet.
func (s *Store) Load() (*db.Database, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}
	packageName, ok := meta["package_name"]
	if !ok {
		return nil, nil
	}

	snap := db.Snapshot{
		PackageName:    packageName,
		PackageVersion: meta["package_version"],
	}
	nextNative, err := parseNextID(meta["next_native_id"])
	if err != nil {
		return nil, fmt.Errorf("meta next_native_id: %w", err)
	}
	nextFfi, err := parseNextID(meta["next_ffi_id"])
	if err != nil {
		return nil, fmt.Errorf("meta next_ffi_id: %w", err)
	}
	snap.NextNativeID = db.NativeItemID(nextNative)
	snap.NextFfiID = db.FfiItemID(nextFfi)

	if snap.NativeItems, err = s.loadNativeItems(); err != nil {
		return nil, err
	}
	if snap.FfiItems, err = s.loadFfiItems(); err != nil {
		return nil, err
	}
	if snap.SurfaceItems, err = s.loadSurfaceItems(); err != nil {
		return nil, err
	}
	if snap.Environments, err = s.loadEnvironments(); err != nil {
		return nil, err
	}
	return db.FromSnapshot(snap), nil
}

func parseNextID(s string) (uint32, error) {
	if s == "" {
		return 1, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func (s *Store) loadMeta() (map[string]string, error) {
	rows, err := s.sqldb.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

func (s *Store) loadNativeItems() ([]*db.NativeItem, error) {
	rows, err := s.sqldb.Query("SELECT id, payload, source_ffi_item FROM native_items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query native items: %w", err)
	}
	defer rows.Close()
	var items []*db.NativeItem
	for rows.Next() {
		var (
			id      int64
			payload string
			origin  sql.NullInt64
		)
		if err := rows.Scan(&id, &payload, &origin); err != nil {
			return nil, fmt.Errorf("scan native item: %w", err)
		}
		decoded, err := decodeNativePayload([]byte(payload))
		if err != nil {
			return nil, err
		}
		item := &db.NativeItem{ID: db.NativeItemID(id), Payload: decoded}
		if origin.Valid {
			ffiID := db.FfiItemID(origin.Int64)
			item.SourceFfiItem = &ffiID
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadFfiItems() ([]*db.FfiItem, error) {
	rows, err := s.sqldb.Query("SELECT id, payload, checks, is_processed FROM ffi_items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query ffi items: %w", err)
	}
	defer rows.Close()
	var items []*db.FfiItem
	for rows.Next() {
		var (
			id              int64
			payload, checks string
			isProcessed     bool
		)
		if err := rows.Scan(&id, &payload, &checks, &isProcessed); err != nil {
			return nil, fmt.Errorf("scan ffi item: %w", err)
		}
		decoded, err := decodeFfiPayload([]byte(payload))
		if err != nil {
			return nil, err
		}
		entries, err := decodeChecks([]byte(checks))
		if err != nil {
			return nil, err
		}
		item := &db.FfiItem{ID: db.FfiItemID(id), Payload: decoded, IsProcessed: isProcessed}
		db.RestoreChecks(item, entries)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadSurfaceItems() ([]*db.SurfaceItem, error) {
	rows, err := s.sqldb.Query("SELECT payload FROM surface_items ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("query surface items: %w", err)
	}
	defer rows.Close()
	var items []*db.SurfaceItem
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan surface item: %w", err)
		}
		decoded, err := decodeSurfacePayload([]byte(payload))
		if err != nil {
			return nil, err
		}
		items = append(items, &db.SurfaceItem{Payload: decoded})
	}
	return items, rows.Err()
}

func (s *Store) loadEnvironments() ([]db.Environment, error) {
	rows, err := s.sqldb.Query("SELECT target, library_version FROM environments ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("query environments: %w", err)
	}
	defer rows.Close()
	var envs []db.Environment
	for rows.Next() {
		var env db.Environment
		if err := rows.Scan(&env.Target, &env.LibraryVersion); err != nil {
			return nil, fmt.Errorf("scan environment: %w", err)
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}
