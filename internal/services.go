package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"google.golang.org/api/option"

	"github.com/starford/atelier/internal/api"
	"github.com/starford/atelier/internal/assistant"
	"github.com/starford/atelier/internal/blob"
	"github.com/starford/atelier/internal/cache"
	"github.com/starford/atelier/internal/drive"
	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/llm"
	"github.com/starford/atelier/internal/pdftext"
	"github.com/starford/atelier/internal/sse"
	"github.com/starford/atelier/internal/store"
	"github.com/starford/atelier/internal/workspace"
)

// services is the object graph shared by the HTTP server and the MCP server.
type services struct {
	db        *store.DB
	blobs     blob.Provider
	fsBlobs   *blob.FS
	drive     *drive.Adapter
	cache     cache.Cache
	broker    *sse.Broker
	workspace *workspace.Service
	assistant *assistant.Service
	closers   []func() error
}

func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(ctx context.Context, cfg *Config, logger *slog.Logger) (_ *services, err error) {
	s := &services{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	s.db, err = store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	s.closers = append(s.closers, s.db.Close)

	if err := s.openBlobs(ctx, cfg.Storage); err != nil {
		return nil, err
	}

	pdf, err := pdftext.New(cfg.Extractor.Strategy)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	fetchOpts := []fetcher.Option{fetcher.WithMaxInternalBytes(cfg.Extractor.MaxInternalBytes)}
	if cfg.Drive.Enabled() {
		s.drive = drive.New(drive.Config{
			ClientID:     cfg.Drive.ClientID,
			ClientSecret: cfg.Drive.ClientSecret,
			RedirectURL:  cfg.Drive.RedirectURL,
			TokenURL:     cfg.Drive.TokenURL,
			Endpoint:     cfg.Drive.Endpoint,
			MaxBytes:     cfg.Drive.MaxBytes,
			Timeout:      cfg.Drive.Timeout,
		}, s.db, drive.WithLogger(logger))
		fetchOpts = append(fetchOpts, fetcher.WithDrive(s.drive))
	} else {
		logger.Info("drive: not configured, linked Drive sources will be skipped")
	}
	fetch := fetcher.New(s.blobs, pdf, fetchOpts...)

	client, err := llm.NewOpenAI(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	aiOpts := []assistant.Option{
		assistant.WithLimits(cfg.Assistant.Limits()),
		assistant.WithLogger(logger),
	}
	s.cache, err = cache.New(ctx, cfg.Cache.options())
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	if s.cache != nil {
		s.closers = append(s.closers, s.cache.Close)
		aiOpts = append(aiOpts, assistant.WithSummaryCache(s.cache, cfg.LLM.Model))
	}
	s.assistant = assistant.New(s.db, fetch, client, aiOpts...)

	s.broker = sse.NewBroker(cfg.Events.Throttle)
	s.closers = append(s.closers, func() error { s.broker.Close(); return nil })
	s.workspace = workspace.New(s.db, s.blobs,
		workspace.WithPublisher(s.broker),
		workspace.WithLogger(logger))

	return s, nil
}

func (s *services) openBlobs(ctx context.Context, cfg StorageConfig) error {
	switch cfg.Backend {
	case StorageGCS:
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		g, err := blob.NewGCS(ctx, cfg.Bucket, opts...)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		s.blobs = g
		s.closers = append(s.closers, g.Close)
	default:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
		fs, err := blob.NewFS(cfg.Dir)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		s.blobs = fs
		s.fsBlobs = fs
	}
	return nil
}

// driveAPI returns the adapter for the HTTP layer, or nil when Drive is not
// configured.
func (s *services) driveAPI() api.Drive {
	if s.drive == nil {
		return nil
	}
	return s.drive
}
