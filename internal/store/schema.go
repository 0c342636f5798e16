// Package store provides the SQLite-backed record store for projects,
// sources, tasks, notes and Drive tokens, with optional FTS5 note search.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	mime_type    TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL DEFAULT 0,
	locator_kind TEXT NOT NULL CHECK (locator_kind IN ('internal', 'external')),
	locator      TEXT NOT NULL,
	project_id   TEXT REFERENCES projects(id) ON DELETE SET NULL,
	uploaded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sources_uploaded ON sources(uploaded_at DESC);
CREATE INDEX IF NOT EXISTS idx_sources_locator ON sources(locator_kind, locator);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	project_id  TEXT REFERENCES projects(id) ON DELETE SET NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'medium',
	category    TEXT NOT NULL DEFAULT '',
	due_date    DATETIME,
	completed   INTEGER NOT NULL DEFAULT 0,
	sort_order  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL CHECK (format IN ('html', 'markdown')),
	question   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS drive_tokens (
	owner_id      TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at    DATETIME NOT NULL,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
`

// DB wraps a sql.DB with record operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
