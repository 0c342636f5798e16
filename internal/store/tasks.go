package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/atelier/internal/models"
)

const taskColumns = `id, project_id, title, description, priority, category, due_date, completed, sort_order, created_at, updated_at`

func scanTask(r rowScanner) (models.Task, error) {
	var t models.Task
	err := r.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &t.Category,
		&t.DueDate, &t.Completed, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTask inserts a task at the end of the ordering and returns it with
// its assigned sort order.
func (db *DB) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return t, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM tasks`).Scan(&t.SortOrder); err != nil {
		return t, fmt.Errorf("store: next sort order: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.Title, t.Description, t.Priority, t.Category,
		t.DueDate, t.Completed, t.SortOrder, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return t, fmt.Errorf("store: create task: %w", err)
	}
	return t, tx.Commit()
}

// GetTask returns a task by id.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, wrapErr(err, "get task")
	}
	return &t, nil
}

// ListTasks returns tasks in display order; an empty projectID lists all.
func (db *DB) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if projectID != "" {
		q += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY sort_order, created_at DESC`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask replaces the editable fields of a task. Sort order is changed
// only through ReorderTasks.
func (db *DB) UpdateTask(ctx context.Context, t models.Task) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE tasks SET
			project_id  = ?,
			title       = ?,
			description = ?,
			priority    = ?,
			category    = ?,
			due_date    = ?,
			completed   = ?,
			updated_at  = ?
		WHERE id = ?
	`, t.ProjectID, t.Title, t.Description, t.Priority, t.Category, t.DueDate, t.Completed, t.UpdatedAt, t.ID)
	return execOne(res, err, "update task")
}

// ToggleTask flips a task's completed flag and returns the updated task.
func (db *DB) ToggleTask(ctx context.Context, id string, now time.Time) (*models.Task, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE tasks SET completed = NOT completed, updated_at = ? WHERE id = ?
	`, now, id)
	if err := execOne(res, err, "toggle task"); err != nil {
		return nil, err
	}
	return db.GetTask(ctx, id)
}

// ReorderTasks assigns sort orders 0..n-1 to ids in the given order, in one
// transaction. Any unknown id aborts the reorder.
func (db *DB) ReorderTasks(ctx context.Context, ids []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET sort_order = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare reorder: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		res, err := stmt.ExecContext(ctx, i, id)
		if err := execOne(res, err, "reorder task "+id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteTask removes a task.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return execOne(res, err, "delete task")
}
