package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/atelier/internal/apperr"
)

const tmpPrefix = ".atelier-tmp-"

// FS implements Provider on a local directory.
type FS struct {
	root string // absolute path to the blob directory
}

// NewFS creates a provider rooted at dir, creating the directory if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("blob: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory backing the provider.
func (f *FS) Root() string { return f.root }

// safePath resolves key against the root and rejects anything that escapes it.
func (f *FS) safePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob: %w: empty key", apperr.ErrInvalidRequest)
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("blob: %w: absolute key %s", apperr.ErrInvalidRequest, key)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("blob: resolve key: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob: %w: key escapes root: %s", apperr.ErrInvalidRequest, key)
	}
	return abs, nil
}

// KeyFor converts an absolute path under the root into a blob key.
func (f *FS) KeyFor(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Upload atomically writes the blob: tmp file, fsync, rename.
func (f *FS) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blob: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("blob: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("blob: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("blob: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blob: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("blob: rename: %w", err)
	}
	success = true
	return nil
}

// Download opens the blob for reading.
func (f *FS) Download(_ context.Context, key string) (io.ReadCloser, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob: %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: open %s: %w", key, err)
	}
	return file, nil
}

// Remove deletes a blob. Removing a missing blob is not an error.
func (f *FS) Remove(_ context.Context, key string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: remove %s: %w", key, err)
	}
	return nil
}

// List walks the root and returns every regular file, sorted by key.
func (f *FS) List(_ context.Context) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || Hidden(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		key, ok := f.KeyFor(p)
		if !ok {
			return nil
		}
		out = append(out, Object{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PublicURL returns a file URL for the blob.
func (f *FS) PublicURL(key string) string {
	abs, err := f.safePath(key)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// Hidden reports whether a file name is a dotfile or an in-flight upload.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
