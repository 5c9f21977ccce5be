// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ta21cos/thread-type-note-app/internal/api"
	"github.com/ta21cos/thread-type-note-app/internal/mcpserver"
	"github.com/ta21cos/thread-type-note-app/internal/metrics"
	"github.com/ta21cos/thread-type-note-app/internal/noteservice"
	pkgconfig "github.com/ta21cos/thread-type-note-app/pkg/config"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	d, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	cfg := d.cfg
	logger := d.logger

	r := newRouter(d)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Populate the search index in the background; it is best-effort.
	g.Go(func() error {
		if err := d.rebuildIndex(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("initial reindex failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if app.configPath != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configPath, NewDefaultConfig, logger, func(next *Config) {
				applyReload(d, next)
			})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
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

// errShutdown cancels the group so background goroutines stop with the server.
var errShutdown = errors.New("shutdown")

func newRouter(d *deps) chi.Router {
	cfg := d.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Metrics.Enabled {
		r.Use(metrics.Middleware)
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := d.store.Ping(req.Context()); err != nil {
			d.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(d.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	return r
}

// applyReload applies the settings that can change at runtime. Everything
// else needs a restart.
func applyReload(d *deps, next *Config) {
	if next.App.LogLevel != d.level.Level() {
		d.level.Set(next.App.LogLevel)
		d.logger.Info("log level changed", slog.String("log_level", next.App.LogLevel.String()))
	}
	if next.Database != d.cfg.Database || next.Search != d.cfg.Search ||
		next.Auth != d.cfg.Auth || next.Metrics != d.cfg.Metrics || next.App.HTTP != d.cfg.App.HTTP {
		d.logger.Warn("config changed on disk; restart to apply settings other than log_level")
	}
}

// RunMCP serves the MCP tools on stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	d, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	d.logger.Info("MCP server starting on stdio")
	return mcpserver.New(d.svc, app.version).ServeStdio()
}

// Verify checks the persisted graph and returns the report.
func Verify(ctx context.Context, opts ...Option) (*noteservice.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	d, err := app.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	defer d.close()

	return d.svc.Verify(ctx)
}

// Reindex rebuilds the search index from the store and waits for it to finish.
func Reindex(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	d, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	return d.rebuildIndex(ctx)
}
