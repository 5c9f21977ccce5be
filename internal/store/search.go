package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ta21cos/thread-type-note-app/internal/models"
)

const defaultSearchLimit = 20

// searchLike is the portable substring search used when FTS5 is unavailable
// and for PostgreSQL.
func (r repo) searchLike(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := r.query(ctx, `
		SELECT id, substr(content, 1, 200)
		FROM notes
		WHERE LOWER(content) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, like, limit)
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
