// Package search keeps a derived full-text index of note content. The index
// is best-effort: writes are queued and may be dropped, and queries fall back
// to the primary store.
package search

import (
	"context"
	"log/slog"

	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/store"
)

// Backend names accepted in configuration.
const (
	BackendSQLite      = "sqlite"
	BackendMeilisearch = "meilisearch"
	BackendDisabled    = "disabled"
)

// Backend is a writable, queryable search index.
type Backend interface {
	Index(ctx context.Context, id, content string) error
	Remove(ctx context.Context, ids []string) error
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
}

// SQL indexes into the primary database (FTS5 table or plain LIKE).
type SQL struct {
	st *store.Store
}

// NewSQL wraps st as a search backend.
func NewSQL(st *store.Store) *SQL {
	return &SQL{st: st}
}

func (s *SQL) Index(ctx context.Context, id, content string) error {
	return s.st.IndexContent(ctx, id, content)
}

func (s *SQL) Remove(ctx context.Context, ids []string) error {
	return s.st.UnindexNotes(ctx, ids)
}

func (s *SQL) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	return s.st.Search(ctx, query, limit)
}

// Searcher answers queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
}

// Fallback queries primary and, when it fails, secondary.
type Fallback struct {
	primary   Searcher
	secondary Searcher
	logger    *slog.Logger
}

// NewFallback creates a searcher that degrades to secondary on error.
func NewFallback(primary, secondary Searcher, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	hits, err := f.primary.Search(ctx, query, limit)
	if err == nil {
		return hits, nil
	}
	f.logger.Warn("search: primary backend failed, falling back",
		slog.String("error", err.Error()))
	return f.secondary.Search(ctx, query, limit)
}
