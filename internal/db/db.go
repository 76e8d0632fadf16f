// Package db provides the sqlite persistence layer for check runs.
//
// Schema changes are managed through embedded golang-migrate migrations;
// see the migrations directory. Opening a database with NewDB applies any
// pending migrations automatically.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ferrous-data/condition.report/internal/timeutil"
)

type DB struct {
	*sql.DB

	path  string
	clock timeutil.Clock
}

// OpenDB opens the sqlite database at path without touching the schema.
// Use this when migrations are managed explicitly (the migrate subcommand).
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database and applies any pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// SetClock replaces the clock used for retry backoff. Tests use this to
// avoid real sleeps.
func (db *DB) SetClock(clock timeutil.Clock) {
	db.clock = clock
}
