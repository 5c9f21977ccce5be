// Package cascade removes a note together with its replies and every mention
// that touches any of them. The schema has no foreign-key cascades, so the
// subtree is computed here and removed inside the caller's transaction.
package cascade

import (
	"context"
	"fmt"

	"github.com/ta21cos/thread-type-note-app/internal/models"
)

// Tx is the transactional store surface used for deletion.
type Tx interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ChildrenOf(ctx context.Context, parentID string) ([]models.Note, error)
	DeleteMentionsTouching(ctx context.Context, ids []string) (int64, error)
	DeleteNotes(ctx context.Context, ids []string) (int64, error)
}

// Result describes what a cascade removed.
type Result struct {
	NoteIDs  []string
	Mentions int64
}

// Subtree returns rootID and all its descendants in discovery order.
func Subtree(ctx context.Context, tx Tx, rootID string) ([]string, error) {
	var (
		order   []string
		visited = map[string]bool{rootID: true}
		stack   = []string{rootID}
	)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, id)

		kids, err := tx.ChildrenOf(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cascade: children of %s: %w", id, err)
		}
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			visited[k.ID] = true
			stack = append(stack, k.ID)
		}
	}
	return order, nil
}

// Delete removes noteID, its descendants and all mentions touching them.
// Returns apperr.ErrNotFound if the note does not exist.
func Delete(ctx context.Context, tx Tx, noteID string) (Result, error) {
	if _, err := tx.GetNote(ctx, noteID); err != nil {
		return Result{}, err
	}
	ids, err := Subtree(ctx, tx, noteID)
	if err != nil {
		return Result{}, err
	}

	mentions, err := tx.DeleteMentionsTouching(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	// Leaves first.
	rev := make([]string, len(ids))
	for i, id := range ids {
		rev[len(ids)-1-i] = id
	}
	if _, err := tx.DeleteNotes(ctx, rev); err != nil {
		return Result{}, err
	}
	return Result{NoteIDs: ids, Mentions: mentions}, nil
}
