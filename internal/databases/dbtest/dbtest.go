// Package dbtest opens throwaway migrated databases for package tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"canteen/internal/databases"
)

// New returns a migrated database living in the test's temp dir
func New(t testing.TB) *sql.DB {
	t.Helper()

	db, err := databases.Open(filepath.Join(t.TempDir(), "canteen.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := databases.Migrate(db); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role and returns its id
func CreateUser(t testing.TB, db *sql.DB, email, role string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO users (email, display_name, role) VALUES (?, ?, ?)`, email, email, role)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// CreateStudent inserts a student together with an account holding balance
func CreateStudent(t testing.TB, db *sql.DB, email, balance string) int64 {
	t.Helper()

	id := CreateUser(t, db, email, "student")
	if _, err := db.Exec(`INSERT INTO accounts (student_id, balance) VALUES (?, ?)`, id, balance); err != nil {
		t.Fatalf("create account for %s: %v", email, err)
	}
	return id
}
