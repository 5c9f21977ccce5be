package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ta21cos/thread-type-note-app/internal/noteservice"
	"github.com/ta21cos/thread-type-note-app/internal/search"
	"github.com/ta21cos/thread-type-note-app/internal/store"
)

// deps are the long-lived components shared by every command.
type deps struct {
	cfg      *Config
	logger   *slog.Logger
	level    *slog.LevelVar
	store    *store.Store
	backend  search.Backend
	notifier *search.Notifier
	svc      *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap opens the store and wires search and the note service.
func (a *application) bootstrap(ctx context.Context) (*deps, error) {
	cfg := a.config

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("search_backend", cfg.Search.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	d := &deps{cfg: cfg, logger: logger, level: level, store: st}

	svcOpts := []noteservice.Option{noteservice.WithLogger(logger)}

	switch cfg.Search.Backend {
	case search.BackendMeilisearch:
		m, err := search.NewMeili(cfg.Search.Meilisearch.URL, cfg.Search.Meilisearch.APIKey, cfg.Search.Meilisearch.Index)
		if err != nil {
			logger.Warn("meilisearch unavailable, using database search",
				slog.String("url", cfg.Search.Meilisearch.URL),
				slog.String("error", err.Error()))
			d.backend = search.NewSQL(st)
			break
		}
		d.backend = m
		svcOpts = append(svcOpts, noteservice.WithSearcher(search.NewFallback(m, st, logger)))
	case search.BackendSQLite:
		d.backend = search.NewSQL(st)
	}

	if d.backend != nil {
		d.notifier = search.NewNotifier(d.backend, search.NotifierConfig{
			QueueSize:   cfg.Search.QueueSize,
			MaxFailures: cfg.Search.Breaker.MaxFailures,
			OpenTimeout: cfg.Search.Breaker.OpenTimeout,
		}, logger)
		svcOpts = append(svcOpts, noteservice.WithIndexer(d.notifier))
	}

	d.svc = noteservice.NewService(st, svcOpts...)
	return d, nil
}

// rebuildIndex repopulates the search backend from the store.
func (d *deps) rebuildIndex(ctx context.Context) error {
	if d.backend == nil {
		d.logger.Info("search disabled, nothing to reindex")
		return nil
	}
	indexed, failed, err := search.Rebuild(ctx, d.store, d.backend, d.logger)
	d.logger.Info("search index rebuilt",
		slog.Int("indexed", indexed),
		slog.Int("failed", failed))
	return err
}

func (d *deps) close() {
	if d.notifier != nil {
		d.notifier.Close()
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn("store close failed", slog.String("error", err.Error()))
	}
}
