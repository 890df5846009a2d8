package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens a SQLite database for the account tables. dsn ":memory:"
// gives a throwaway database; the pool is pinned to one connection so every
// query sees the same in-memory schema.
func NewSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	log.Printf("✅ Opened SQLite database %s", dsn)
	return db, nil
}
