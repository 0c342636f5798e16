package store

import (
	"context"
	"fmt"

	"github.com/starford/atelier/internal/models"
)

const noteColumns = `id, project_id, title, content, format, question, created_at, updated_at`

func scanNote(r rowScanner) (models.Note, error) {
	var n models.Note
	err := r.Scan(&n.ID, &n.ProjectID, &n.Title, &n.Content, &n.Format, &n.Question, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// CreateNote inserts a note and its search entry.
func (db *DB) CreateNote(ctx context.Context, n models.Note) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.ProjectID, n.Title, n.Content, n.Format, n.Question, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create note: %w", err)
	}
	if err := ftsUpsert(tx, n.ID, n.Title, n.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// GetNote returns a note by id.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		return nil, wrapErr(err, "get note")
	}
	return &n, nil
}

// ListNotes returns notes newest first; an empty projectID lists all.
func (db *DB) ListNotes(ctx context.Context, projectID string) ([]models.Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if projectID != "" {
		q += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateNote replaces a note's title, content and project. The format set at
// creation is kept.
func (db *DB) UpdateNote(ctx context.Context, n models.Note) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET project_id = ?, title = ?, content = ?, updated_at = ? WHERE id = ?
	`, n.ProjectID, n.Title, n.Content, n.UpdatedAt, n.ID)
	if err := execOne(res, err, "update note"); err != nil {
		return err
	}
	if err := ftsUpsert(tx, n.ID, n.Title, n.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note and its search entry.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err := execOne(res, err, "delete note"); err != nil {
		return err
	}
	return tx.Commit()
}
