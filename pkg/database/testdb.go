package database

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/facility-inventory-api/pkg/config"
)

// NewTestDB creates a fresh in-memory SQLite database with all migrations applied.
func NewTestDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := NewSQLite(config.DatabaseConfig{SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if _, err := Migrate(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}
