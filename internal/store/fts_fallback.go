//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"

	"github.com/ta21cos/thread-type-note-app/internal/models"
)

func initFTS(_ context.Context, _ *sql.DB) error {
	// FTS5 not available; search uses LIKE over notes.content.
	return nil
}

// IndexContent is a no-op: content already lives in the notes table.
func (s *Store) IndexContent(_ context.Context, _, _ string) error { return nil }

// UnindexNotes is a no-op without FTS5.
func (s *Store) UnindexNotes(_ context.Context, _ []string) error { return nil }

// Search performs a case-insensitive substring search over note content.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	return s.searchLike(ctx, query, limit)
}
