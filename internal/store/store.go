package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/models"
)

// RecordStore is the full set of record operations. Consumers should depend
// on the narrower interfaces they need.
type RecordStore interface {
	CreateProject(ctx context.Context, p models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, p models.Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateSource(ctx context.Context, s models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetSources(ctx context.Context, ids []string) ([]models.Source, error)
	ListSources(ctx context.Context, f SourceFilter) ([]models.Source, error)
	FindSourceByLocator(ctx context.Context, loc models.Locator) (*models.Source, error)
	DeleteSource(ctx context.Context, id string) error

	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) error
	ToggleTask(ctx context.Context, id string, now time.Time) (*models.Task, error)
	ReorderTasks(ctx context.Context, ids []string) error
	DeleteTask(ctx context.Context, id string) error

	CreateNote(ctx context.Context, n models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, projectID string) ([]models.Note, error)
	UpdateNote(ctx context.Context, n models.Note) error
	DeleteNote(ctx context.Context, id string) error
	SearchNotes(ctx context.Context, query string, limit int) ([]SearchResult, error)

	GetDriveToken(ctx context.Context, ownerID string) (*models.DriveToken, error)
	SaveDriveToken(ctx context.Context, t models.DriveToken) error
	DeleteDriveToken(ctx context.Context, ownerID string) error

	Ping() error
	Close() error
}

// Verify *DB satisfies RecordStore at compile time.
var _ RecordStore = (*DB)(nil)

// SourceFilter narrows ListSources. Zero values mean no restriction.
type SourceFilter struct {
	ProjectID string
	Query     string
	Limit     int
}

// SearchResult represents one note search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

// wrapErr maps sql.ErrNoRows to apperr.ErrNotFound.
func wrapErr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: %s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

// execOne runs a statement that must touch exactly one row.
func execOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", op, apperr.ErrNotFound)
	}
	return nil
}
