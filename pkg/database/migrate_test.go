package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := NewTestDB(t)

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var version int
	require.NoError(t, db.Get(&version, `SELECT MAX(version) FROM schema_migrations`))
	assert.Equal(t, len(migrations), version)
}

func TestSchemaRoundTripsItemRow(t *testing.T) {
	db := NewTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := db.Exec(db.Rebind(`INSERT INTO items (id, barcode, name, building, category, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		"item-1", "TB-001", "Tech Bag 1", "Memorial Union", "Tech Bag", now, now)
	require.NoError(t, err)

	var row struct {
		IsAvailable bool      `db:"is_available"`
		Logs        string    `db:"logs"`
		Version     int       `db:"version"`
		CreatedAt   time.Time `db:"created_at"`
	}
	require.NoError(t, db.Get(&row, `SELECT is_available, logs, version, created_at FROM items WHERE barcode = 'TB-001'`))
	assert.True(t, row.IsAvailable)
	assert.Equal(t, "[]", row.Logs)
	assert.Equal(t, 1, row.Version)
	assert.True(t, now.Equal(row.CreatedAt))

	_, err = db.Exec(db.Rebind(`INSERT INTO items (id, barcode, name, building, category, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		"item-2", "TB-001", "Duplicate", "Memorial Union", "Tech Bag", now, now)
	assert.Error(t, err)
}
