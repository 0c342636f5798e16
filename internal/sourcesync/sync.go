// Package sourcesync keeps source records in step with the blob store:
// blobs dropped into storage become sources and sources whose blob has
// vanished are removed.
package sourcesync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/atelier/internal/blob"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/store"
)

// Registry records and forgets blob-backed sources.
type Registry interface {
	RegisterBlob(ctx context.Context, obj blob.Object) (*models.Source, bool, error)
	ForgetBlob(ctx context.Context, key string) (bool, error)
	ListSources(ctx context.Context, f store.SourceFilter) ([]models.Source, error)
}

// Lister enumerates stored blobs.
type Lister interface {
	List(ctx context.Context) ([]blob.Object, error)
}

// Report counts the changes a Sync made.
type Report struct {
	Added   int
	Removed int
}

// Sync reconciles source records with the blobs in storage:
//   - blobs without a source are registered
//   - internal sources whose blob is gone are removed
//
// Per-item failures are logged and skipped.
func Sync(ctx context.Context, reg Registry, blobs Lister, logger *slog.Logger) (Report, error) {
	var rep Report

	objs, err := blobs.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("sourcesync: list blobs: %w", err)
	}
	srcs, err := reg.ListSources(ctx, store.SourceFilter{})
	if err != nil {
		return rep, fmt.Errorf("sourcesync: list sources: %w", err)
	}

	known := make(map[string]struct{}, len(srcs))
	for _, s := range srcs {
		if s.Locator.Kind == models.LocatorInternal {
			known[s.Locator.Path] = struct{}{}
		}
	}

	stored := make(map[string]struct{}, len(objs))
	for _, o := range objs {
		stored[o.Key] = struct{}{}
		if _, ok := known[o.Key]; ok {
			continue
		}
		if _, created, err := reg.RegisterBlob(ctx, o); err != nil {
			logger.Warn("sourcesync: register failed", slog.String("key", o.Key), slog.String("error", err.Error()))
		} else if created {
			rep.Added++
			logger.Debug("sourcesync: registered", slog.String("key", o.Key))
		}
	}

	for key := range known {
		if _, ok := stored[key]; ok {
			continue
		}
		if gone, err := reg.ForgetBlob(ctx, key); err != nil {
			logger.Warn("sourcesync: forget failed", slog.String("key", key), slog.String("error", err.Error()))
		} else if gone {
			rep.Removed++
			logger.Debug("sourcesync: removed stale", slog.String("key", key))
		}
	}
	return rep, nil
}
