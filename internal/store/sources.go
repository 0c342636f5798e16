package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/atelier/internal/models"
)

const sourceColumns = `id, name, mime_type, size, locator_kind, locator, project_id, uploaded_at`

func scanSource(r rowScanner) (models.Source, error) {
	var (
		s       models.Source
		kind    string
		locator string
	)
	if err := r.Scan(&s.ID, &s.Name, &s.MimeType, &s.Size, &kind, &locator, &s.ProjectID, &s.UploadedAt); err != nil {
		return s, err
	}
	switch models.LocatorKind(kind) {
	case models.LocatorExternal:
		s.Locator = models.ExternalLocator(locator)
	default:
		s.Locator = models.InternalLocator(locator)
	}
	return s, nil
}

// CreateSource inserts a source. Sources are never updated afterwards.
func (db *DB) CreateSource(ctx context.Context, s models.Source) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.MimeType, s.Size, string(s.Locator.Kind), s.Locator.Value(), s.ProjectID, s.UploadedAt)
	if err != nil {
		return fmt.Errorf("store: create source: %w", err)
	}
	return nil
}

// GetSource returns a source by id.
func (db *DB) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	s, err := scanSource(row)
	if err != nil {
		return nil, wrapErr(err, "get source")
	}
	return &s, nil
}

// GetSources returns the sources with the given ids in the order the ids
// were given. Unknown ids are skipped.
func (db *DB) GetSources(ctx context.Context, ids []string) ([]models.Source, error) {
	if len(ids) == 0 {
		return []models.Source{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get sources: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Source, len(ids))
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Source, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if _, dup := seen[id]; !ok || dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// ListSources returns sources newest first.
func (db *DB) ListSources(ctx context.Context, f SourceFilter) ([]models.Source, error) {
	var (
		where []string
		args  []any
	)
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Query != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.Query+"%")
	}
	q := `SELECT ` + sourceColumns + ` FROM sources`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY uploaded_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list sources: %w", err)
	}
	defer rows.Close()

	out := []models.Source{}
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindSourceByLocator returns the source stored at loc.
func (db *DB) FindSourceByLocator(ctx context.Context, loc models.Locator) (*models.Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+sourceColumns+` FROM sources WHERE locator_kind = ? AND locator = ? LIMIT 1
	`, string(loc.Kind), loc.Value())
	s, err := scanSource(row)
	if err != nil {
		return nil, wrapErr(err, "find source")
	}
	return &s, nil
}

// DeleteSource removes a source row.
func (db *DB) DeleteSource(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	return execOne(res, err, "delete source")
}
