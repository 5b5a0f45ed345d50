// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// InTolerance fails the test unless got is within tol of want.
func InTolerance(t *testing.T, got, want, tol float64, what string) {
	t.Helper()
	d := got - want
	if d < 0 {
		d = -d
	}
	if d > tol {
		t.Errorf("%s = %g, want %g (tolerance %g)", what, got, want, tol)
	}
}

// OpenTestDB opens a throwaway SQLite database in a test temp directory
// and applies the given schema. The database is closed when the test
// finishes.
func OpenTestDB(t *testing.T, schema string) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			t.Fatalf("apply test schema: %v", err)
		}
	}
	return db
}

// ReadMigration loads a migration file relative to the repository root,
// so store tests run against the real schema.
func ReadMigration(t *testing.T, name string) string {
	t.Helper()
	// Tests run from their package directory; walk up to the module
	// root by looking for go.mod.
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("module root not found")
		}
		dir = parent
	}
	data, err := os.ReadFile(filepath.Join(dir, "migrations", name))
	if err != nil {
		t.Fatalf("read migration %s: %v", name, err)
	}
	return string(data)
}
