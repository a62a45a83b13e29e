package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a database from user_version i to i+1. The
// embedded schema always describes the latest version; migrations only
// add what CREATE TABLE IF NOT EXISTS cannot.
var migrations = []func(*sql.DB) error{
	addWrittenAtIndex,
}

var currentSchemaVersion = len(migrations)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Store is the SQLite database holding output records, the processed-id
// ledger and the reminder claim log. One connection serializes writers;
// WAL lets an operator read the file while palletwatch runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path.
// Applies required pragmas, the schema and pending migrations.
//
// The database is configured with:
//   - WAL mode so an operator can read the file during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// PRAGMA user_version records the schema version; a database written by an
// older build is migrated forward in place. Open is idempotent.
//
// ":memory:" gives a private in-memory database. WAL does not apply to it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	steps := []struct {
		name string
		run  func(*sql.DB) error
	}{
		{"connect", func(db *sql.DB) error { return db.Ping() }},
		{"apply pragmas", applyPragmas},
		{"apply schema", applySchema},
	}
	for _, step := range steps {
		if err := step.run(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s %s: %w", step.name, path, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var pragmas = []string{
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"busy_timeout = 5000",
	"foreign_keys = ON",
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			return fmt.Errorf("PRAGMA %s: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version == currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// addWrittenAtIndex backs newest-first record listings.
func addWrittenAtIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_written_at ON records(written_at)`)
	return err
}

// verifyPragma reports whether pragma name currently reads expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
