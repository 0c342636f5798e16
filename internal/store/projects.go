package store

import (
	"context"
	"fmt"

	"github.com/starford/atelier/internal/models"
)

const projectColumns = `id, name, description, created_at, updated_at`

func scanProject(r rowScanner) (models.Project, error) {
	var p models.Project
	err := r.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProject inserts a project.
func (db *DB) CreateProject(ctx context.Context, p models.Project) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create project: %w", err)
	}
	return nil
}

// GetProject returns a project by id.
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, wrapErr(err, "get project")
	}
	return &p, nil
}

// ListProjects returns every project, newest first.
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProject replaces the mutable fields of a project.
func (db *DB) UpdateProject(ctx context.Context, p models.Project) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, p.Name, p.Description, p.UpdatedAt, p.ID)
	return execOne(res, err, "update project")
}

// DeleteProject removes a project. Records in it keep existing, unscoped.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return execOne(res, err, "delete project")
}
