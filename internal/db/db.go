// Package db opens the service's SQLite database and manages its schema
// migrations.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the service database handle.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// Single writer with concurrent HTTP readers: WAL keeps readers off
	// the writer's lock, the busy timeout absorbs checkpoint pauses.
	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return &DB{sqlDB}, nil
}
