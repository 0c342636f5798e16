// Package blob stores uploaded source files.
package blob

import (
	"context"
	"io"
	"time"
)

// Object describes one stored blob.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for blob storage backends. Keys are relative
// slash-separated paths. Missing keys yield errors matching apperr.ErrNotFound.
type Provider interface {
	// Upload writes the content of r under key, replacing any existing blob.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	// Download opens the blob at key. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the blob at key.
	Remove(ctx context.Context, key string) error
	// List returns every blob in the store.
	List(ctx context.Context) ([]Object, error)
	// PublicURL returns an address for the blob suitable for clients.
	PublicURL(key string) string
}
