package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// migrations run in order on both Postgres and SQLite. Append only; never edit a shipped entry.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		last_login    TIMESTAMP NULL,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMP NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NULL,
		action      TEXT NOT NULL,
		resource    TEXT NOT NULL,
		resource_id TEXT NULL,
		new_values  TEXT NOT NULL DEFAULT '',
		ip_address  TEXT NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id                  TEXT PRIMARY KEY,
		barcode             TEXT NOT NULL UNIQUE,
		name                TEXT NOT NULL,
		building            TEXT NOT NULL,
		category            TEXT NOT NULL,
		is_available        BOOLEAN NOT NULL DEFAULT TRUE,
		is_missing          BOOLEAN NOT NULL DEFAULT FALSE,
		is_broken           BOOLEAN NOT NULL DEFAULT FALSE,
		maintenance         BOOLEAN NOT NULL DEFAULT FALSE,
		archive             BOOLEAN NOT NULL DEFAULT FALSE,
		checked_out_by      TEXT NULL,
		belongs_to_tech_bag TEXT NULL,
		tech_bag_contents   TEXT NOT NULL DEFAULT '{}',
		mall_chair_refs     TEXT NOT NULL DEFAULT '[]',
		logs                TEXT NOT NULL DEFAULT '[]',
		resolved_issues     TEXT NOT NULL DEFAULT '[]',
		version             INTEGER NOT NULL DEFAULT 1,
		created_at          TIMESTAMP NOT NULL,
		updated_at          TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_category ON items(category)`,
	`CREATE INDEX IF NOT EXISTS idx_items_building ON items(building)`,
	`CREATE INDEX IF NOT EXISTS idx_items_checked_out_by ON items(checked_out_by)`,
	`CREATE TABLE IF NOT EXISTS organizations (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		name_key     TEXT NOT NULL UNIQUE,
		active       BOOLEAN NOT NULL DEFAULT FALSE,
		reservations TEXT NOT NULL DEFAULT '[]',
		version      INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_checks (
		id            TEXT PRIMARY KEY,
		user_name     TEXT NOT NULL,
		building      TEXT NOT NULL,
		checked_at    TIMESTAMP NOT NULL,
		confirmed     BOOLEAN NOT NULL DEFAULT FALSE,
		present_items TEXT NOT NULL DEFAULT '[]',
		missing_items TEXT NOT NULL DEFAULT '[]',
		notes         TEXT NOT NULL DEFAULT 'N/A'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_checks_checked_at ON inventory_checks(checked_at)`,
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
)`

// Migrate applies every migration not yet recorded in schema_migrations and returns how many ran.
func Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("run migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`), version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %d: %w", version, err)
		}
		applied++
	}

	return applied, nil
}
