package workspace

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/atelier/internal/markdown"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/sse"
	"github.com/starford/atelier/internal/store"
)

const answerTitleRunes = 60

// NoteInput creates a note. Format is fixed at creation.
type NoteInput struct {
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Format    models.NoteFormat `json:"format"`
	ProjectID string            `json:"projectId"`
}

// Validate implements validation.Validatable.
func (in NoteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Format, validation.Required, validation.In(models.NoteFormatHTML, models.NoteFormatMarkdown)),
	)
}

// NoteUpdate replaces a note's title, content and project.
type NoteUpdate struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	ProjectID string `json:"projectId"`
}

// Validate implements validation.Validatable.
func (in NoteUpdate) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
	)
}

// AnswerInput saves an assistant answer as a note.
type AnswerInput struct {
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Sources   []models.Citation `json:"sources"`
	ProjectID string            `json:"projectId"`
}

// Validate implements validation.Validatable.
func (in AnswerInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Question, validation.Required),
		validation.Field(&in.Answer, validation.Required),
	)
}

// cleanContent sanitises HTML note bodies. Markdown is stored as written.
func cleanContent(format models.NoteFormat, content string) string {
	if format == models.NoteFormatHTML {
		return markdown.SanitizeHTML(content)
	}
	return content
}

// CreateNote adds a note.
func (s *Service) CreateNote(ctx context.Context, in NoteInput) (*models.Note, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	now := s.timestamp()
	n := models.Note{
		ID:        s.newID(),
		ProjectID: projectID,
		Title:     in.Title,
		Content:   cleanContent(in.Format, in.Content),
		Format:    in.Format,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.insertNote(ctx, n)
}

func (s *Service) insertNote(ctx context.Context, n models.Note) (*models.Note, error) {
	if err := s.records.CreateNote(ctx, n); err != nil {
		return nil, wrap("create note", err)
	}
	s.publish(sse.EntityNote, sse.ActionCreated, n.ID, n.ProjectID)
	return &n, nil
}

// SaveAnswer stores an assistant answer as a Markdown note titled after the
// question.
func (s *Service) SaveAnswer(ctx context.Context, in AnswerInput) (*models.Note, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	var body strings.Builder
	body.WriteString(strings.TrimSpace(in.Answer))
	if len(in.Sources) > 0 && !strings.Contains(in.Answer, "Sources") {
		body.WriteString("\n\n---\nSources:\n")
		for _, c := range in.Sources {
			body.WriteString("- " + c.Name + "\n")
		}
	}

	title := markdown.Title(in.Question, answerTitleRunes)
	if title == "" {
		title = "Saved answer"
	}
	now := s.timestamp()
	n := models.Note{
		ID:        s.newID(),
		ProjectID: projectID,
		Title:     title,
		Content:   body.String(),
		Format:    models.NoteFormatMarkdown,
		Question:  in.Question,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.insertNote(ctx, n)
}

// GetNote returns a note by id.
func (s *Service) GetNote(ctx context.Context, id string) (*models.Note, error) {
	return s.records.GetNote(ctx, id)
}

// ListNotes returns notes newest first.
func (s *Service) ListNotes(ctx context.Context, projectID string) ([]models.Note, error) {
	return s.records.ListNotes(ctx, projectID)
}

// UpdateNote replaces a note's title and content, keeping its format.
func (s *Service) UpdateNote(ctx context.Context, id string, in NoteUpdate) (*models.Note, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	n, err := s.records.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	n.ProjectID = projectID
	n.Title = in.Title
	n.Content = cleanContent(n.Format, in.Content)
	n.UpdatedAt = s.timestamp()
	if err := s.records.UpdateNote(ctx, *n); err != nil {
		return nil, wrap("update note", err)
	}
	s.publish(sse.EntityNote, sse.ActionUpdated, n.ID, n.ProjectID)
	return n, nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := s.records.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.publish(sse.EntityNote, sse.ActionDeleted, id, nil)
	return nil
}

// SearchNotes runs a full-text query over note titles and bodies.
func (s *Service) SearchNotes(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []store.SearchResult{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.records.SearchNotes(ctx, query, limit)
}
