package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// postgresSchema is applied in order; every statement is idempotent.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                       UUID PRIMARY KEY,
		email                    TEXT NOT NULL UNIQUE,
		password_hash            TEXT NOT NULL,
		display_name             TEXT NOT NULL DEFAULT '',
		refresh_token            TEXT,
		refresh_token_expires_at TIMESTAMPTZ,
		failed_login_attempts    INTEGER NOT NULL DEFAULT 0,
		account_locked_until     TIMESTAMPTZ,
		last_login_at            TIMESTAMPTZ,
		last_login_ip            TEXT NOT NULL DEFAULT '',
		created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS security_events (
		id          UUID PRIMARY KEY,
		user_id     UUID REFERENCES users(id) ON DELETE CASCADE,
		event_type  TEXT NOT NULL,
		severity    TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ip_address  TEXT NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS security_events_user_idx ON security_events (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id         UUID PRIMARY KEY,
		collection TEXT NOT NULL,
		body       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS documents_collection_user_idx
		ON documents (collection, (body->>'userId'))`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at)`,
}

// sqliteSchema holds the account tables only; documents need JSONB and
// live in PostgreSQL or in memory.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                       TEXT PRIMARY KEY,
		email                    TEXT NOT NULL UNIQUE,
		password_hash            TEXT NOT NULL,
		display_name             TEXT NOT NULL DEFAULT '',
		refresh_token            TEXT,
		refresh_token_expires_at TIMESTAMP,
		failed_login_attempts    INTEGER NOT NULL DEFAULT 0,
		account_locked_until     TIMESTAMP,
		last_login_at            TIMESTAMP,
		last_login_ip            TEXT NOT NULL DEFAULT '',
		created_at               TIMESTAMP NOT NULL,
		updated_at               TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS security_events (
		id          TEXT PRIMARY KEY,
		user_id     TEXT REFERENCES users(id) ON DELETE CASCADE,
		event_type  TEXT NOT NULL,
		severity    TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ip_address  TEXT NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS security_events_user_idx ON security_events (user_id, created_at)`,
}

// Migrate creates the tables and indexes used by the server. The statement
// set follows the driver db was opened with.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var stmts []string
	switch db.DriverName() {
	case "postgres", "pgx":
		stmts = postgresSchema
	case "sqlite3":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("migrate: unsupported driver %q", db.DriverName())
	}

	log.Println("🔄 Running migrations...")
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	log.Println("✅ Migrations completed")
	return nil
}
