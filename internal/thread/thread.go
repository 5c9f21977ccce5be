// Package thread reconstructs a note's full thread: the root reached by
// following parent links, and every descendant of that root.
package thread

import (
	"context"
	"errors"
	"sort"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
	"github.com/ta21cos/thread-type-note-app/internal/models"
)

// Reader is the slice of the store the assembler needs.
type Reader interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ChildrenOf(ctx context.Context, parentID string) ([]models.Note, error)
}

// Root follows parent links from start until a note without a parent, or
// whose parent cannot be loaded, is reached.
func Root(ctx context.Context, r Reader, start *models.Note) (*models.Note, error) {
	cur := start
	seen := map[string]bool{cur.ID: true}
	for cur.ParentID != nil {
		pid := *cur.ParentID
		if seen[pid] {
			break
		}
		parent, err := r.GetNote(ctx, pid)
		if errors.Is(err, apperr.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		seen[pid] = true
		cur = parent
	}
	return cur, nil
}

// Descendants returns root and everything below it in breadth-first order.
func Descendants(ctx context.Context, r Reader, root *models.Note) ([]models.Note, error) {
	out := []models.Note{*root}
	visited := map[string]bool{root.ID: true}
	queue := []string{root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		kids, err := r.ChildrenOf(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			visited[k.ID] = true
			out = append(out, k)
			queue = append(queue, k.ID)
		}
	}
	return out, nil
}

// Assemble returns the whole thread containing noteID, ordered by depth, then
// creation time, then id.
func Assemble(ctx context.Context, r Reader, noteID string) ([]models.Note, error) {
	start, err := r.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	root, err := Root(ctx, r, start)
	if err != nil {
		return nil, err
	}
	notes, err := Descendants(ctx, r, root)
	if err != nil {
		return nil, err
	}
	Sort(notes)
	return notes, nil
}

// Sort orders notes for display.
func Sort(notes []models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
