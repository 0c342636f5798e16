package workspace

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/sse"
)

// ProjectInput is the writable part of a project.
type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate implements validation.Validatable.
func (in ProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
	)
}

// CreateProject adds a project.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	now := s.timestamp()
	p := models.Project{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.records.CreateProject(ctx, p); err != nil {
		return nil, wrap("create project", err)
	}
	s.publish(sse.EntityProject, sse.ActionCreated, p.ID, nil)
	return &p, nil
}

// GetProject returns a project by id.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.records.GetProject(ctx, id)
}

// ListProjects returns all projects, newest first.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.records.ListProjects(ctx)
}

// UpdateProject replaces a project's name and description.
func (s *Service) UpdateProject(ctx context.Context, id string, in ProjectInput) (*models.Project, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	p, err := s.records.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.Description = in.Description
	p.UpdatedAt = s.timestamp()
	if err := s.records.UpdateProject(ctx, *p); err != nil {
		return nil, wrap("update project", err)
	}
	s.publish(sse.EntityProject, sse.ActionUpdated, p.ID, nil)
	return p, nil
}

// DeleteProject removes a project. Its records stay, detached from any
// project.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.records.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.publish(sse.EntityProject, sse.ActionDeleted, id, nil)
	return nil
}
