//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; note search uses LIKE on the notes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// SearchNotes performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) SearchNotes(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, substr(content, 1, 200)
		FROM notes
		WHERE title LIKE ? OR content LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, limit)
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
