// Package noteservice orchestrates note creation, editing, thread retrieval
// and deletion over the store, keeping the mention graph acyclic and notes and
// mentions consistent with each other.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
	"github.com/ta21cos/thread-type-note-app/internal/cascade"
	"github.com/ta21cos/thread-type-note-app/internal/checksum"
	"github.com/ta21cos/thread-type-note-app/internal/graph"
	"github.com/ta21cos/thread-type-note-app/internal/metrics"
	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/noteid"
	"github.com/ta21cos/thread-type-note-app/internal/parser"
	"github.com/ta21cos/thread-type-note-app/internal/store"
	"github.com/ta21cos/thread-type-note-app/internal/thread"
)

const (
	// MaxContentLength is the longest accepted content, in characters.
	MaxContentLength = 1000
	// MaxThreadDepth is the deepest a reply may sit below its root.
	MaxThreadDepth = 100

	maxIDAttempts = 5
)

// Search kinds accepted by Search.
const (
	SearchContent = "content"
	SearchMention = "mention"
)

// Indexer receives fire-and-forget notifications after successful writes.
type Indexer interface {
	NoteChanged(id, content string)
	NotesRemoved(ids []string)
}

// Searcher answers full-text queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
}

// NoteList is one page of thread roots.
type NoteList struct {
	Notes   []models.Note `json:"notes"`
	Total   int           `json:"total"`
	HasMore bool          `json:"hasMore"`
}

// Report summarises an integrity check of the persisted graph.
type Report struct {
	Notes            int  `json:"notes"`
	Edges            int  `json:"edges"`
	Cycle            bool `json:"cycle"`
	DanglingMentions int  `json:"danglingMentions"`
	OrphanReplies    int  `json:"orphanReplies"`
}

// OK reports whether no problem was found.
func (r Report) OK() bool {
	return !r.Cycle && r.DanglingMentions == 0 && r.OrphanReplies == 0
}

// Service coordinates the store, the mention graph and the search index.
type Service struct {
	store    *store.Store
	indexer  Indexer
	searcher Searcher
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithIndexer sets the search index notified after writes.
func WithIndexer(ix Indexer) Option {
	return func(s *Service) { s.indexer = ix }
}

// WithSearcher overrides the full-text backend. Defaults to the store.
func WithSearcher(sr Searcher) Option {
	return func(s *Service) { s.searcher = sr }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides noteid.Generate.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a new note service.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		indexer:  nopIndexer{},
		searcher: st,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    noteid.Generate,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ValidateContent checks the content length bounds.
func ValidateContent(content string) error {
	n := utf8.RuneCountInString(content)
	switch {
	case n == 0:
		return apperr.ErrEmpty
	case n > MaxContentLength:
		return apperr.ErrTooLong
	}
	return nil
}

// CreateNote stores a new note, optionally as a reply to parentID, together
// with its mentions.
func (s *Service) CreateNote(ctx context.Context, content, parentID string) (*models.Note, error) {
	n, err := s.createNote(ctx, content, parentID)
	s.track("create", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note created", slog.String("id", n.ID), slog.Int("depth", n.Depth))
	s.indexer.NoteChanged(n.ID, n.Content)
	return n, nil
}

func (s *Service) createNote(ctx context.Context, content, parentID string) (*models.Note, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	refs := parser.Mentions(content)
	targets := parser.ExtractReferences(content)

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		n, err := s.createOnce(ctx, s.newID(), content, parentID, refs, targets)
		if errors.Is(err, store.ErrDuplicateID) {
			s.logger.Debug("note id collision, retrying", slog.Int("attempt", attempt))
			continue
		}
		return n, err
	}
	return nil, fmt.Errorf("noteservice: no free note id after %d attempts", maxIDAttempts)
}

func (s *Service) createOnce(ctx context.Context, id, content, parentID string, refs []parser.Reference, targets []string) (*models.Note, error) {
	now := s.now().UTC()
	n := &models.Note{
		ID:        id,
		Content:   content,
		Checksum:  checksum.Sum([]byte(content)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := checkCycle(ctx, tx, id, targets, false); err != nil {
			return err
		}

		if parentID != "" {
			parent, err := tx.GetNote(ctx, parentID)
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.ErrParentNotFound
			}
			if err != nil {
				return err
			}
			if parent.Depth+1 > MaxThreadDepth {
				return apperr.ErrMaxDepthExceeded
			}
			pid := parent.ID
			n.ParentID = &pid
			n.Depth = parent.Depth + 1
		}

		if err := tx.InsertNote(ctx, n); err != nil {
			return err
		}
		return writeMentions(ctx, tx, id, refs, targets, now)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateNote replaces a note's content and its outgoing mentions. A non-empty
// ifMatch must equal the current content checksum.
func (s *Service) UpdateNote(ctx context.Context, id, content, ifMatch string) (*models.Note, error) {
	n, err := s.updateNote(ctx, id, content, ifMatch)
	s.track("update", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note updated", slog.String("id", n.ID))
	s.indexer.NoteChanged(n.ID, n.Content)
	return n, nil
}

func (s *Service) updateNote(ctx context.Context, id, content, ifMatch string) (*models.Note, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	refs := parser.Mentions(content)
	targets := parser.ExtractReferences(content)

	var n *models.Note
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetNote(ctx, id)
		if err != nil {
			return err
		}
		if ifMatch != "" && ifMatch != cur.Checksum {
			return apperr.ErrConflict
		}
		if err := checkCycle(ctx, tx, id, targets, true); err != nil {
			return err
		}

		now := s.now().UTC()
		if _, err := tx.DeleteMentionsFrom(ctx, id); err != nil {
			return err
		}
		if err := writeMentions(ctx, tx, id, refs, targets, now); err != nil {
			return err
		}

		cur.Content = content
		cur.Checksum = checksum.Sum([]byte(content))
		cur.UpdatedAt = now
		if err := tx.UpdateNoteContent(ctx, cur); err != nil {
			return err
		}
		n = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// GetThread returns the whole thread containing id.
func (s *Service) GetThread(ctx context.Context, id string) ([]models.Note, error) {
	return thread.Assemble(ctx, s.store, id)
}

// DeleteNote removes a note, all of its replies and every mention touching
// any of them.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	var res cascade.Result
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		res, err = cascade.Delete(ctx, tx, id)
		return err
	})
	s.track("delete", err)
	if err != nil {
		return err
	}
	metrics.CascadeNotesDeleted.Observe(float64(len(res.NoteIDs)))
	s.logger.Info("note deleted",
		slog.String("id", id),
		slog.Int("notes", len(res.NoteIDs)),
		slog.Int64("mentions", res.Mentions),
	)
	s.indexer.NotesRemoved(res.NoteIDs)
	return nil
}

// GetNote returns a single note.
func (s *Service) GetNote(ctx context.Context, id string) (*models.Note, error) {
	return s.store.GetNote(ctx, id)
}

// ListRoots returns a page of thread roots, newest first.
func (s *Service) ListRoots(ctx context.Context, limit, offset int) (*NoteList, error) {
	notes, err := s.store.ListRoots(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountRoots(ctx)
	if err != nil {
		return nil, err
	}
	return &NoteList{
		Notes:   nonNilSlice(notes),
		Total:   total,
		HasMore: offset+len(notes) < total,
	}, nil
}

// Backlinks returns the notes mentioning id with the offset of each mention.
func (s *Service) Backlinks(ctx context.Context, id string) ([]models.Backlink, error) {
	if _, err := s.store.GetNote(ctx, id); err != nil {
		return nil, err
	}
	bl, err := s.store.Backlinks(ctx, id)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// Search finds notes by content, or for kind SearchMention, the notes that
// mention the note id given as query.
func (s *Service) Search(ctx context.Context, query, kind string, limit int) ([]models.Note, error) {
	if kind == SearchMention {
		bl, err := s.store.Backlinks(ctx, query)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(bl))
		out := []models.Note{}
		for _, b := range bl {
			if seen[b.Note.ID] {
				continue
			}
			seen[b.Note.ID] = true
			out = append(out, b.Note)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return out, nil
	}

	hits, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(hits))
	for _, h := range hits {
		n, err := s.store.GetNote(ctx, h.NoteID)
		if errors.Is(err, apperr.ErrNotFound) {
			// Index lags behind deletes.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

// Verify checks the persisted graph: no mention cycle, no mention with a
// missing endpoint and no reply whose parent is gone.
func (s *Service) Verify(ctx context.Context) (*Report, error) {
	edges, err := s.store.MentionEdges(ctx)
	if err != nil {
		return nil, err
	}
	dangling, err := s.store.DanglingMentions(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Edges:            len(edges),
		Cycle:            graph.New(edges).HasCycle(),
		DanglingMentions: dangling,
	}
	ids := make(map[string]bool)
	var parents []string
	err = s.store.EachNote(ctx, func(n models.Note) error {
		rep.Notes++
		ids[n.ID] = true
		if n.ParentID != nil {
			parents = append(parents, *n.ParentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, p := range parents {
		if !ids[p] {
			rep.OrphanReplies++
		}
	}
	return rep, nil
}

// checkCycle loads the current edge snapshot inside tx and rejects targets
// that would close a cycle through from. With replace set, from's existing
// outgoing edges are ignored since they are about to be rewritten.
func checkCycle(ctx context.Context, tx *store.Tx, from string, targets []string, replace bool) error {
	if len(targets) == 0 {
		return nil
	}
	edges, err := tx.MentionEdges(ctx)
	if err != nil {
		return err
	}
	g := graph.New(edges)
	if replace {
		g.DropOutgoing(from)
	}
	if g.WouldCreateCycle(from, targets) {
		metrics.CycleRejectionsTotal.Inc()
		return apperr.ErrCircularReference
	}
	return nil
}

// writeMentions stores one row per occurrence whose target note exists.
// Unknown targets are plain text.
func writeMentions(ctx context.Context, tx *store.Tx, from string, refs []parser.Reference, targets []string, now time.Time) error {
	if len(refs) == 0 {
		return nil
	}
	existing, err := tx.ExistingNoteIDs(ctx, targets)
	if err != nil {
		return err
	}
	rows := make([]models.Mention, 0, len(refs))
	for _, r := range refs {
		if !existing[r.Target] {
			continue
		}
		rows = append(rows, models.Mention{
			ID:         uuid.NewString(),
			FromNoteID: from,
			ToNoteID:   r.Target,
			Position:   r.Position,
			CreatedAt:  now,
		})
	}
	return tx.InsertMentions(ctx, rows)
}

func (s *Service) track(op string, err error) {
	switch {
	case err == nil:
		metrics.TrackNoteOperation(op, "ok")
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrCircularReference),
		errors.Is(err, apperr.ErrConflict):
		metrics.TrackNoteOperation(op, "rejected")
	default:
		metrics.TrackNoteOperation(op, "error")
		s.logger.Error("note operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
}

type nopIndexer struct{}

func (nopIndexer) NoteChanged(string, string) {}
func (nopIndexer) NotesRemoved([]string)      {}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
