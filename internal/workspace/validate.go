package workspace

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/atelier/internal/apperr"
)

// validate runs v.Validate and marks failures as invalid requests.
func validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	return nil
}

// requireProject checks that a referenced project exists. nil means no
// project.
func (s *Service) requireProject(ctx context.Context, projectID *string) error {
	if projectID == nil {
		return nil
	}
	_, err := s.records.GetProject(ctx, *projectID)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%w: project %q does not exist", apperr.ErrInvalidRequest, *projectID)
	}
	if err != nil {
		return wrap("get project", err)
	}
	return nil
}
