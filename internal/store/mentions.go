package store

import (
	"context"
	"fmt"

	"github.com/ta21cos/thread-type-note-app/internal/models"
)

// MentionEdges returns every distinct from -> to pair.
func (r repo) MentionEdges(ctx context.Context) ([]models.Edge, error) {
	rows, err := r.query(ctx, `SELECT DISTINCT from_note_id, to_note_id FROM mentions`)
	if err != nil {
		return nil, fmt.Errorf("store: mention edges: %w", err)
	}
	defer rows.Close()

	var out []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertMentions bulk inserts mention rows.
func (r repo) InsertMentions(ctx context.Context, mentions []models.Mention) error {
	for _, m := range mentions {
		_, err := r.exec(ctx, `
			INSERT INTO mentions (id, from_note_id, to_note_id, position, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, m.ID, m.FromNoteID, m.ToNoteID, m.Position, toUnix(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("store: insert mention: %w", err)
		}
	}
	return nil
}

// DeleteMentionsFrom removes a note's outgoing mentions.
func (r repo) DeleteMentionsFrom(ctx context.Context, noteID string) (int64, error) {
	res, err := r.exec(ctx, `DELETE FROM mentions WHERE from_note_id = ?`, noteID)
	if err != nil {
		return 0, fmt.Errorf("store: delete mentions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteMentionsTouching removes every mention whose source or target is one
// of ids.
func (r repo) DeleteMentionsTouching(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for _, id := range ids {
		res, err := r.exec(ctx, `DELETE FROM mentions WHERE from_note_id = ? OR to_note_id = ?`, id, id)
		if err != nil {
			return total, fmt.Errorf("store: delete mentions for %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// MentionsFrom returns a note's outgoing mentions ordered by position.
func (r repo) MentionsFrom(ctx context.Context, noteID string) ([]models.Mention, error) {
	rows, err := r.query(ctx, `
		SELECT id, from_note_id, to_note_id, position, created_at
		FROM mentions
		WHERE from_note_id = ?
		ORDER BY position
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("store: mentions from: %w", err)
	}
	defer rows.Close()

	var out []models.Mention
	for rows.Next() {
		var (
			m       models.Mention
			pos     int64
			created int64
		)
		if err := rows.Scan(&m.ID, &m.FromNoteID, &m.ToNoteID, &pos, &created); err != nil {
			return nil, err
		}
		m.Position = int(pos)
		m.CreatedAt = fromUnix(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Backlinks returns the notes that mention target, one entry per occurrence.
func (r repo) Backlinks(ctx context.Context, target string) ([]models.Backlink, error) {
	rows, err := r.query(ctx, `
		SELECT n.id, n.content, n.parent_id, n.depth, n.created_at, n.updated_at, m.position
		FROM mentions m
		JOIN notes n ON n.id = m.from_note_id
		WHERE m.to_note_id = ?
		ORDER BY n.created_at, n.id, m.position
	`, target)
	if err != nil {
		return nil, fmt.Errorf("store: backlinks: %w", err)
	}
	defer rows.Close()

	var out []models.Backlink
	for rows.Next() {
		var pos int64
		n, err := scanNote(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &pos)...)
		}))
		if err != nil {
			return nil, err
		}
		out = append(out, models.Backlink{Note: n, Position: int(pos)})
	}
	return out, rows.Err()
}

// DanglingMentions counts mentions whose source or target note is missing.
func (r repo) DanglingMentions(ctx context.Context) (int, error) {
	var n int
	err := r.queryRow(ctx, `
		SELECT count(*) FROM mentions m
		WHERE NOT EXISTS (SELECT 1 FROM notes n WHERE n.id = m.from_note_id)
		   OR NOT EXISTS (SELECT 1 FROM notes n WHERE n.id = m.to_note_id)
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: dangling mentions: %w", err)
	}
	return n, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
