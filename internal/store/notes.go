package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
	"github.com/ta21cos/thread-type-note-app/internal/checksum"
	"github.com/ta21cos/thread-type-note-app/internal/models"
)

const noteColumns = `id, content, parent_id, depth, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var (
		n       models.Note
		parent  sql.NullString
		created int64
		updated int64
		depth   int64
	)
	if err := s.Scan(&n.ID, &n.Content, &parent, &depth, &created, &updated); err != nil {
		return models.Note{}, err
	}
	if parent.Valid {
		p := parent.String
		n.ParentID = &p
	}
	n.Depth = int(depth)
	n.CreatedAt = fromUnix(created)
	n.UpdatedAt = fromUnix(updated)
	n.Checksum = checksum.Sum([]byte(n.Content))
	return n, nil
}

func (r repo) scanNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNote returns the note with id, or apperr.ErrNotFound.
func (r repo) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := r.queryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return &n, nil
}

// ChildrenOf returns the direct replies to parentID in posting order.
func (r repo) ChildrenOf(ctx context.Context, parentID string) ([]models.Note, error) {
	rows, err := r.query(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE parent_id = ?
		ORDER BY created_at, id
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("store: children: %w", err)
	}
	notes, err := r.scanNotes(rows)
	if err != nil {
		return nil, fmt.Errorf("store: children: %w", err)
	}
	return notes, nil
}

// InsertNote stores a new note. A primary key collision yields ErrDuplicateID.
func (r repo) InsertNote(ctx context.Context, n *models.Note) error {
	var parent any
	if n.ParentID != nil {
		parent = *n.ParentID
	}
	_, err := r.exec(ctx, `
		INSERT INTO notes (id, content, parent_id, depth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Content, parent, n.Depth, toUnix(n.CreatedAt), toUnix(n.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

// UpdateNoteContent replaces a note's content and bumps updated_at.
func (r repo) UpdateNoteContent(ctx context.Context, n *models.Note) error {
	res, err := r.exec(ctx, `UPDATE notes SET content = ?, updated_at = ? WHERE id = ?`,
		n.Content, toUnix(n.UpdatedAt), n.ID)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteNotes removes the given notes in order and returns how many rows went.
func (r repo) DeleteNotes(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for _, id := range ids {
		res, err := r.exec(ctx, `DELETE FROM notes WHERE id = ?`, id)
		if err != nil {
			return total, fmt.Errorf("store: delete note %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// ExistingNoteIDs reports which of ids are present.
func (r repo) ExistingNoteIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.query(ctx, `SELECT id FROM notes WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("store: existing ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ListRoots returns thread roots, newest first.
func (r repo) ListRoots(ctx context.Context, limit, offset int) ([]models.Note, error) {
	rows, err := r.query(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE parent_id IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list roots: %w", err)
	}
	notes, err := r.scanNotes(rows)
	if err != nil {
		return nil, fmt.Errorf("store: list roots: %w", err)
	}
	return notes, nil
}

// CountRoots returns the number of thread roots.
func (r repo) CountRoots(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT count(*) FROM notes WHERE parent_id IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count roots: %w", err)
	}
	return n, nil
}

// EachNote calls fn for every note ordered by id, stopping at the first error.
func (r repo) EachNote(ctx context.Context, fn func(models.Note) error) error {
	rows, err := r.query(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("store: each note: %w", err)
	}
	notes, err := r.scanNotes(rows)
	if err != nil {
		return fmt.Errorf("store: each note: %w", err)
	}
	for _, n := range notes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}
