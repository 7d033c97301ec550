// Package dbtest provides migrated in-memory SQLite databases for tests
package dbtest

import (
	"bitwise74/user-api/db"
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

// New returns a fresh, fully migrated database private to t. The pool is
// limited to one connection so concurrent writers queue up instead of
// failing with SQLITE_BUSY.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + gonanoid.Must(12) + "?mode=memory&cache=shared&_foreign_keys=on"

	d, err := db.New(db.Config{Driver: db.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("failed to get test connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { sqlDB.Close() })

	return d
}
