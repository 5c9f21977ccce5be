//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ta21cos/thread-type-note-app/internal/models"
)

func initFTS(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// IndexContent replaces the FTS row for a note.
func (s *Store) IndexContent(ctx context.Context, id, content string) error {
	if s.d == dialectPostgres {
		return nil
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.exec(ctx, `DELETE FROM notes_fts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: fts delete: %w", err)
		}
		if _, err := tx.exec(ctx, `INSERT INTO notes_fts (id, content) VALUES (?, ?)`, id, content); err != nil {
			return fmt.Errorf("store: fts insert: %w", err)
		}
		return nil
	})
}

// UnindexNotes drops FTS rows for removed notes.
func (s *Store) UnindexNotes(ctx context.Context, ids []string) error {
	if s.d == dialectPostgres || len(ids) == 0 {
		return nil
	}
	_, err := s.exec(ctx, `DELETE FROM notes_fts WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("store: fts delete: %w", err)
	}
	return nil
}

// Search performs an FTS5 match and returns hits with highlighted snippets.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if s.d == dialectPostgres {
		return s.searchLike(ctx, query, limit)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := s.query(ctx, `
		SELECT id,
		       snippet(notes_fts, 1, '<b>', '</b>', '...', 32)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.NoteID, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ftsQuery quotes the user's input as a single FTS5 phrase.
func ftsQuery(q string) string {
	out := make([]byte, 0, len(q)+2)
	out = append(out, '"')
	for i := 0; i < len(q); i++ {
		if q[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, q[i])
	}
	return string(append(out, '"'))
}
