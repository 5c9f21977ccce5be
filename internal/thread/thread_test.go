package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
	"github.com/ta21cos/thread-type-note-app/internal/models"
)

// memReader is an in-memory Reader.
type memReader struct {
	notes map[string]models.Note
	calls int
}

func newReader(notes ...models.Note) *memReader {
	m := &memReader{notes: map[string]models.Note{}}
	for _, n := range notes {
		m.notes[n.ID] = n
	}
	return m
}

func (m *memReader) GetNote(_ context.Context, id string) (*models.Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &n, nil
}

func (m *memReader) ChildrenOf(_ context.Context, parentID string) ([]models.Note, error) {
	m.calls++
	var out []models.Note
	for _, n := range m.notes {
		if n.ParentID != nil && *n.ParentID == parentID {
			out = append(out, n)
		}
	}
	return out, nil
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func note(id string, parent string, depth int, offset time.Duration) models.Note {
	n := models.Note{ID: id, Depth: depth, CreatedAt: t0.Add(offset)}
	if parent != "" {
		p := parent
		n.ParentID = &p
	}
	return n
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAssemble_SameResultFromAnyMember(t *testing.T) {
	r := newReader(
		note("R00000", "", 0, 0),
		note("C10000", "R00000", 1, time.Second),
		note("C20000", "R00000", 1, 2*time.Second),
	)
	want := []string{"R00000", "C10000", "C20000"}
	for _, start := range want {
		got, err := Assemble(context.Background(), r, start)
		if err != nil {
			t.Fatalf("Assemble(%s): %v", start, err)
		}
		if !equal(ids(got), want) {
			t.Errorf("Assemble(%s) = %v, want %v", start, ids(got), want)
		}
	}
}

func TestAssemble_OrderByDepthThenTimeThenID(t *testing.T) {
	r := newReader(
		note("root00", "", 0, 0),
		note("b00000", "root00", 1, time.Second),
		note("a00000", "root00", 1, time.Second),
		note("late00", "root00", 1, 5*time.Second),
		note("deep00", "b00000", 2, 500*time.Millisecond),
	)
	got, err := Assemble(context.Background(), r, "deep00")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"root00", "a00000", "b00000", "late00", "deep00"}
	if !equal(ids(got), want) {
		t.Errorf("order = %v, want %v", ids(got), want)
	}
}

func TestAssemble_LoneRoot(t *testing.T) {
	r := newReader(note("solo00", "", 0, 0))
	got, err := Assemble(context.Background(), r, "solo00")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "solo00" {
		t.Errorf("got %v", ids(got))
	}
}

func TestAssemble_MissingParentBecomesRoot(t *testing.T) {
	r := newReader(
		note("orphan", "ghost0", 1, 0),
		note("child0", "orphan", 2, time.Second),
	)
	got, err := Assemble(context.Background(), r, "child0")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"orphan", "child0"}; !equal(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
}

func TestAssemble_CorruptedParentLoopTerminates(t *testing.T) {
	r := newReader(
		note("loopaa", "loopbb", 1, 0),
		note("loopbb", "loopaa", 1, time.Second),
	)
	got, err := Assemble(context.Background(), r, "loopaa")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want both notes once", ids(got))
	}
}

func TestAssemble_NotFound(t *testing.T) {
	r := newReader()
	if _, err := Assemble(context.Background(), r, "nope00"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDescendants_VisitsEachNoteOnce(t *testing.T) {
	notes := []models.Note{note("n0", "", 0, 0)}
	for i := 1; i < 50; i++ {
		notes = append(notes, note(string(rune('A'+i%26))+string(rune('a'+i/26)), "n0", 1, time.Duration(i)))
	}
	r := newReader(notes...)
	root := notes[0]
	got, err := Descendants(context.Background(), r, &root)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Errorf("len = %d, want 50", len(got))
	}
	if r.calls != 50 {
		t.Errorf("ChildrenOf calls = %d, want 50", r.calls)
	}
}
