package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/starford/atelier/internal/apperr"
)

// GCS implements Provider on a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS connects to bucket. STORAGE_EMULATOR_HOST is honoured by the client.
func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("blob: gcs bucket required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error { return g.client.Close() }

// Upload implements Provider.
func (g *GCS) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("blob: gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob: gcs close %s: %w", key, err)
	}
	return nil
}

// readCloserWithCancel keeps the download context alive until Close.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}

// Download implements Provider.
func (g *GCS) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("blob: %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("blob: gcs open %s: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// Remove implements Provider. Removing a missing object is not an error.
func (g *GCS) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("blob: gcs delete %s: %w", key, err)
	}
	return nil
}

// List implements Provider.
func (g *GCS) List(ctx context.Context) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := g.client.Bucket(g.bucket).Objects(ctx, nil)
	var out []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("blob: gcs list: %w", err)
		}
		out = append(out, Object{Key: attrs.Name, Size: attrs.Size, ModTime: attrs.Updated})
	}
	return out, nil
}

// PublicURL implements Provider.
func (g *GCS) PublicURL(key string) string {
	return publicURL(g.bucket, key)
}

func publicURL(bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}
