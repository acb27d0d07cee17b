// Package db stores simulation runs and their event streams in SQLite.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/dvsim/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pragmas are applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

type DB struct {
	*sql.DB

	// clock stamps new runs.
	clock timeutil.Clock
}

// NewDB opens (creating if needed) the SQLite database at path and migrates
// it to the latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, clock: timeutil.RealClock{}}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SetClock replaces the clock used to stamp new runs.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}
