// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/atelier/internal/api"
	"github.com/starford/atelier/internal/mcpserver"
	"github.com/starford/atelier/internal/sourcesync"
	"github.com/starford/atelier/internal/store"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("llm_model", cfg.LLM.Model),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Bool("drive_enabled", cfg.Drive.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Pick up files that were added or removed while we were down.
	if svc.fsBlobs != nil {
		if _, err := sourcesync.Sync(ctx, svc.workspace, svc.fsBlobs, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	handler := api.NewHandler(svc.workspace, svc.assistant, svc.driveAPI())
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, svc.broker)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRootRouter(apiRouter, svc.db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if svc.fsBlobs != nil && cfg.Watch.Enabled {
		g.Go(func() error {
			if err := sourcesync.Watch(gCtx, svc.workspace, svc.fsBlobs, cfg.Watch.Settle, logger); err != nil {
				logger.Error("source watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams stay open until their clients leave; closing the
		// broker ends them so Shutdown can finish.
		svc.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func newRootRouter(apiRouter http.Handler, db *store.DB) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Ping(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// RunMCP serves the MCP tools over stdin/stdout. Logs go to the configured
// log output, never stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	out := app.logOutput
	if out == os.Stdout {
		out = os.Stderr
	}
	logger := newLogger(out, cfg.App.LogLevel)

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("mcp: serving on stdio", slog.String("owner", cfg.MCP.Owner))
	srv := mcpserver.New(svc.assistant, svc.workspace, cfg.MCP.Owner)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
