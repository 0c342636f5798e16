package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/blob"
	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/sse"
	"github.com/starford/atelier/internal/store"
)

// UploadInput describes a file upload.
type UploadInput struct {
	Name      string
	MimeType  string
	ProjectID string
	Body      io.Reader
}

// Validate implements validation.Validatable.
func (in UploadInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Body, validation.NotNil),
	)
}

// DriveFileInput links a Google Drive file as a source.
type DriveFileInput struct {
	FileID      string `json:"fileId"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        int64  `json:"size"`
	WebViewLink string `json:"webViewLink"`
	ProjectID   string `json:"projectId"`
}

// Validate implements validation.Validatable.
func (in DriveFileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FileID, validation.Required),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Size, validation.Min(int64(0))),
	)
}

// Upload stores a file under "<unix-ms>-<name>" and records it as a source.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Source, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	now := s.timestamp()
	name := path.Base(strings.ReplaceAll(in.Name, "\\", "/"))
	key := fmt.Sprintf("%d-%s", now.UnixMilli(), name)
	mimeType := in.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
			mimeType = byExt
		}
	}

	s.claim(key)
	defer s.release(key)

	body := &countingReader{r: in.Body}
	if err := s.blobs.Upload(ctx, key, body, mimeType); err != nil {
		return nil, wrap("upload", err)
	}

	src := models.Source{
		ID:         s.newID(),
		Name:       name,
		MimeType:   mimeType,
		Size:       body.n,
		Locator:    models.InternalLocator(key),
		ProjectID:  projectID,
		UploadedAt: now,
	}
	if err := s.records.CreateSource(ctx, src); err != nil {
		if rmErr := s.blobs.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("workspace: orphaned upload",
				slog.String("key", key),
				slog.String("error", rmErr.Error()))
		}
		return nil, wrap("create source", err)
	}
	s.publish(sse.EntitySource, sse.ActionCreated, src.ID, src.ProjectID)
	return &src, nil
}

// LinkDriveFile records a Google Drive file as an external source. A file
// that is already linked yields apperr.ErrAlreadyExists.
func (s *Service) LinkDriveFile(ctx context.Context, in DriveFileInput) (*models.Source, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	projectID := optional(in.ProjectID)
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	link := in.WebViewLink
	if id, ok := fetcher.DriveFileID(link); !ok || id != in.FileID {
		link = "https://drive.google.com/file/d/" + in.FileID + "/view"
	}
	loc := models.ExternalLocator(link)
	if _, err := s.records.FindSourceByLocator(ctx, loc); err == nil {
		return nil, fmt.Errorf("workspace: link drive file %s: %w", in.FileID, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, wrap("find source", err)
	}

	src := models.Source{
		ID:         s.newID(),
		Name:       in.Name,
		MimeType:   in.MimeType,
		Size:       in.Size,
		Locator:    loc,
		ProjectID:  projectID,
		UploadedAt: s.timestamp(),
	}
	if err := s.records.CreateSource(ctx, src); err != nil {
		return nil, wrap("create source", err)
	}
	s.publish(sse.EntitySource, sse.ActionCreated, src.ID, src.ProjectID)
	return &src, nil
}

// GetSource returns a source by id.
func (s *Service) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return s.records.GetSource(ctx, id)
}

// ListSources returns sources newest first.
func (s *Service) ListSources(ctx context.Context, f store.SourceFilter) ([]models.Source, error) {
	return s.records.ListSources(ctx, f)
}

// OpenSource opens the stored bytes of an internal source.
func (s *Service) OpenSource(ctx context.Context, id string) (*models.Source, io.ReadCloser, error) {
	src, err := s.records.GetSource(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if src.Locator.Kind != models.LocatorInternal {
		return nil, nil, fmt.Errorf("%w: source %s is not stored locally", apperr.ErrUnsupported, id)
	}
	rc, err := s.blobs.Download(ctx, src.Locator.Path)
	if err != nil {
		return nil, nil, wrap("download", err)
	}
	return src, rc, nil
}

// DeleteSource removes the stored blob, then the record. If the blob cannot
// be removed the record is kept.
func (s *Service) DeleteSource(ctx context.Context, id string) error {
	src, err := s.records.GetSource(ctx, id)
	if err != nil {
		return err
	}
	if src.Locator.Kind == models.LocatorInternal {
		s.claim(src.Locator.Path)
		defer s.release(src.Locator.Path)
		if err := s.blobs.Remove(ctx, src.Locator.Path); err != nil {
			return wrap("remove blob", err)
		}
	}
	if err := s.records.DeleteSource(ctx, id); err != nil {
		return err
	}
	s.publish(sse.EntitySource, sse.ActionDeleted, id, src.ProjectID)
	return nil
}

// RegisterBlob records a blob that appeared in storage without an upload.
// It is a no-op when a source already points at key or an upload of key is
// in progress.
func (s *Service) RegisterBlob(ctx context.Context, obj blob.Object) (*models.Source, bool, error) {
	if s.claimed(obj.Key) {
		return nil, false, nil
	}
	loc := models.InternalLocator(obj.Key)
	if existing, err := s.records.FindSourceByLocator(ctx, loc); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, wrap("find source", err)
	}

	uploaded := obj.ModTime
	if uploaded.IsZero() {
		uploaded = s.now()
	}
	name := path.Base(obj.Key)
	src := models.Source{
		ID:         s.newID(),
		Name:       displayName(name),
		MimeType:   mime.TypeByExtension(path.Ext(name)),
		Size:       obj.Size,
		Locator:    loc,
		UploadedAt: uploaded.UTC().Truncate(time.Millisecond),
	}
	if err := s.records.CreateSource(ctx, src); err != nil {
		return nil, false, wrap("create source", err)
	}
	s.publish(sse.EntitySource, sse.ActionCreated, src.ID, nil)
	return &src, true, nil
}

// ForgetBlob drops the source that points at a blob which no longer exists.
func (s *Service) ForgetBlob(ctx context.Context, key string) (bool, error) {
	if s.claimed(key) {
		return false, nil
	}
	src, err := s.records.FindSourceByLocator(ctx, models.InternalLocator(key))
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap("find source", err)
	}
	if err := s.records.DeleteSource(ctx, src.ID); err != nil {
		return false, err
	}
	s.publish(sse.EntitySource, sse.ActionDeleted, src.ID, src.ProjectID)
	return true, nil
}

// displayName strips the "<unix-ms>-" prefix Upload adds to keys.
func displayName(key string) string {
	i := strings.IndexByte(key, '-')
	if i <= 0 {
		return key
	}
	for _, r := range key[:i] {
		if r < '0' || r > '9' {
			return key
		}
	}
	if i+1 >= len(key) {
		return key
	}
	return key[i+1:]
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
