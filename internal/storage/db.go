// Package storage persists PQGram profiles in SQLite. Trees are never
// stored; a profile carries everything later comparisons need.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite connection with application-level helpers.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) a SQLite database at the given path.
// If path is empty, it defaults to ~/.pqgram/pqgram.db. ":memory:" opens a
// private in-memory database.
func New(path string) (*DB, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir := filepath.Join(home, ".pqgram")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		path = filepath.Join(dir, "pqgram.db")
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	if path == ":memory:" {
		dsn = ":memory:?_foreign_keys=on"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite handles one writer at a time

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close shuts down the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate runs all schema migrations in order.
func (db *DB) migrate() error {
	migrations := []string{
		migrationV1,
		migrationV2,
	}

	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for i, m := range migrations {
		version := i + 1
		var exists int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}

		if _, err := tx.Exec(m); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}

const migrationV1 = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	p INTEGER NOT NULL,
	q INTEGER NOT NULL,
	leaf_grams INTEGER NOT NULL DEFAULT 0,
	gram_count INTEGER NOT NULL,
	grams BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_profiles_shape ON profiles(p, q, leaf_grams);
`

const migrationV2 = `
ALTER TABLE profiles ADD COLUMN content_hash TEXT NOT NULL DEFAULT '';
ALTER TABLE profiles ADD COLUMN labels_json TEXT NOT NULL DEFAULT '{}';

CREATE INDEX IF NOT EXISTS idx_profiles_hash ON profiles(content_hash);
`
