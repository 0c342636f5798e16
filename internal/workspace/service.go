// Package workspace coordinates the record store, blob storage and change
// events for projects, sources, tasks and notes.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/atelier/internal/blob"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/sse"
	"github.com/starford/atelier/internal/store"
)

// Records is the part of the record store the workspace writes through.
type Records interface {
	CreateProject(ctx context.Context, p models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, p models.Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateSource(ctx context.Context, s models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context, f store.SourceFilter) ([]models.Source, error)
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
	SearchNotes(ctx context.Context, query string, limit int) ([]store.SearchResult, error)
}

// Publisher receives change notifications.
type Publisher interface {
	PublishChange(entity, action string, c sse.Change)
}

// Service implements the workspace operations.
type Service struct {
	records Records
	blobs   blob.Provider
	events  Publisher
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	// busy holds blob keys an upload or delete is working on, so reconcile
	// does not race the record write.
	mu   sync.Mutex
	busy map[string]struct{}
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a workspace service.
func New(records Records, blobs blob.Provider, opts ...Option) *Service {
	s := &Service{
		records: records,
		blobs:   blobs,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
		busy:    make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) publish(entity, action, id string, projectID *string) {
	if s.events == nil {
		return
	}
	c := sse.Change{ID: id}
	if projectID != nil {
		c.ProjectID = *projectID
	}
	s.events.PublishChange(entity, action, c)
}

func (s *Service) claim(key string) {
	s.mu.Lock()
	s.busy[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.busy, key)
	s.mu.Unlock()
}

func (s *Service) claimed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.busy[key]
	return ok
}

// timestamp returns the current time in UTC, truncated for stable storage.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// optional turns an empty string into nil.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func wrap(op string, err error) error {
	return fmt.Errorf("workspace: %s: %w", op, err)
}
