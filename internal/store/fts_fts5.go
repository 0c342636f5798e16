//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, content string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO notes_fts (id, title, content) VALUES (?, ?, ?)`, id, title, content)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
}

// SearchNotes performs an FTS5 full-text search and returns matching notes with snippets.
func (db *DB) SearchNotes(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id,
		       title,
		       snippet(notes_fts, 2, '<b>', '</b>', '...', 64)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search notes: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
