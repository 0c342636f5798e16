package workspace

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/sse"
)

// TaskInput is the writable part of a task. A nil Completed leaves the
// completion state unchanged on update.
type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	Category    string          `json:"category"`
	DueDate     *time.Time      `json:"dueDate"`
	Completed   *bool           `json:"completed"`
	ProjectID   string          `json:"projectId"`
}

// Validate implements validation.Validatable.
func (in TaskInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Priority, validation.In(models.PriorityLow, models.PriorityMedium, models.PriorityHigh)),
		validation.Field(&in.Category, validation.Length(0, 100)),
	)
}

func (in TaskInput) priority() models.Priority {
	if in.Priority == "" {
		return models.PriorityMedium
	}
	return in.Priority
}

// CreateTask appends a task to the end of the list.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	now := s.timestamp()
	t := models.Task{
		ID:          s.newID(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.priority(),
		Category:    in.Category,
		DueDate:     in.DueDate,
		Completed:   in.Completed != nil && *in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.records.CreateTask(ctx, t)
	if err != nil {
		return nil, wrap("create task", err)
	}
	s.publish(sse.EntityTask, sse.ActionCreated, created.ID, created.ProjectID)
	return &created, nil
}

// ListTasks returns tasks in display order.
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	return s.records.ListTasks(ctx, projectID)
}

// UpdateTask replaces a task's fields. Its position is unchanged.
func (s *Service) UpdateTask(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	t, err := s.records.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.ProjectID = projectID
	t.Title = in.Title
	t.Description = in.Description
	t.Priority = in.priority()
	t.Category = in.Category
	t.DueDate = in.DueDate
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	t.UpdatedAt = s.timestamp()
	if err := s.records.UpdateTask(ctx, *t); err != nil {
		return nil, wrap("update task", err)
	}
	s.publish(sse.EntityTask, sse.ActionUpdated, t.ID, t.ProjectID)
	return t, nil
}

// ToggleTask flips a task's completion state.
func (s *Service) ToggleTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.records.ToggleTask(ctx, id, s.timestamp())
	if err != nil {
		return nil, err
	}
	s.publish(sse.EntityTask, sse.ActionUpdated, t.ID, t.ProjectID)
	return t, nil
}

// ReorderTasks assigns positions 0..n-1 in the order of ids.
func (s *Service) ReorderTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids are required", apperr.ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate task id %q", apperr.ErrInvalidRequest, id)
		}
		seen[id] = struct{}{}
	}
	if err := s.records.ReorderTasks(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.publish(sse.EntityTask, sse.ActionUpdated, id, nil)
	}
	return nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.records.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.publish(sse.EntityTask, sse.ActionDeleted, id, nil)
	return nil
}
