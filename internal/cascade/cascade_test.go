package cascade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/store"
	"github.com/ta21cos/thread-type-note-app/internal/testutil"
)

func mention(id, from, to string, pos int) models.Mention {
	return models.Mention{ID: id, FromNoteID: from, ToNoteID: to, Position: pos, CreatedAt: time.Now()}
}

func TestDelete_RemovesSubtreeAndTouchingMentions(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()

	a := testutil.SeedNote(t, st, "AAAAAA", "root @XXXXXX", nil, time.Time{})
	b := testutil.SeedNote(t, st, "BBBBBB", "reply", a, time.Time{})
	testutil.SeedNote(t, st, "CCCCCC", "nested", b, time.Time{})
	testutil.SeedNote(t, st, "XXXXXX", "bystander", nil, time.Time{})
	testutil.SeedNote(t, st, "YYYYYY", "mentions @BBBBBB", nil, time.Time{})
	_ = st.InsertMentions(ctx, []models.Mention{
		mention("1", "AAAAAA", "XXXXXX", 5),
		mention("2", "YYYYYY", "BBBBBB", 9),
	})

	var res Result
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		res, err = Delete(ctx, tx, "AAAAAA")
		return err
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(res.NoteIDs) != 3 || res.Mentions != 2 {
		t.Errorf("result = %+v, want 3 notes and 2 mentions", res)
	}

	for _, id := range []string{"AAAAAA", "BBBBBB", "CCCCCC"} {
		if _, err := st.GetNote(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("%s still present", id)
		}
	}
	for _, id := range []string{"XXXXXX", "YYYYYY"} {
		if _, err := st.GetNote(ctx, id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
	if n, _ := st.DanglingMentions(ctx); n != 0 {
		t.Errorf("dangling mentions = %d", n)
	}
	if edges, _ := st.MentionEdges(ctx); len(edges) != 0 {
		t.Errorf("edges left = %+v", edges)
	}
}

func TestDelete_NotFound(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := Delete(ctx, tx, "ZZZZZZ")
		return err
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_LeafLeavesParent(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	a := testutil.SeedNote(t, st, "PARENT", "p", nil, time.Time{})
	testutil.SeedNote(t, st, "LEAF00", "l", a, time.Time{})

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := Delete(ctx, tx, "LEAF00")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetNote(ctx, "PARENT"); err != nil {
		t.Errorf("parent removed: %v", err)
	}
}

// failingTx fails on note deletion so the caller's transaction must roll back.
type failingTx struct {
	*store.Tx
}

func (failingTx) DeleteNotes(context.Context, []string) (int64, error) {
	return 0, errors.New("disk full")
}

func TestDelete_ErrorRollsBack(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	testutil.SeedNote(t, st, "KEEPME", "k", nil, time.Time{})
	testutil.SeedNote(t, st, "OTHER0", "o", nil, time.Time{})
	_ = st.InsertMentions(ctx, []models.Mention{mention("1", "OTHER0", "KEEPME", 0)})

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := Delete(ctx, failingTx{tx}, "KEEPME")
		return err
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := st.GetNote(ctx, "KEEPME"); err != nil {
		t.Errorf("note lost after rollback: %v", err)
	}
	if edges, _ := st.MentionEdges(ctx); len(edges) != 1 {
		t.Errorf("mention lost after rollback: %+v", edges)
	}
}

func TestSubtree_DiscoveryOrder(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	r := testutil.SeedNote(t, st, "ROOT00", "r", nil, time.Time{})
	c := testutil.SeedNote(t, st, "CHILD0", "c", r, time.Time{})
	testutil.SeedNote(t, st, "GRAND0", "g", c, time.Time{})

	var ids []string
	_ = st.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		ids, err = Subtree(ctx, tx, "ROOT00")
		return err
	})
	want := []string{"ROOT00", "CHILD0", "GRAND0"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}
