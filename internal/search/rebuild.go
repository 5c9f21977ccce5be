package search

import (
	"context"
	"log/slog"

	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/store"
)

// Rebuild walks every note and writes it into backend. Individual failures
// are logged and counted; only a store error aborts the walk.
func Rebuild(ctx context.Context, st *store.Store, backend Backend, logger *slog.Logger) (indexed, failed int, err error) {
	err = st.EachNote(ctx, func(n models.Note) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := backend.Index(ctx, n.ID, n.Content); err != nil {
			failed++
			logger.Warn("reindex: index failed", slog.String("id", n.ID), slog.String("error", err.Error()))
			return nil
		}
		indexed++
		logger.Debug("reindex: indexed", slog.String("id", n.ID))
		return nil
	})
	return indexed, failed, err
}
