// Package testutil provides shared test helpers for setting up databases and
// seeding notes.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/store"
)

// TestStore creates a temporary SQLite database that is automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "threadnote-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	st, err := store.Open(context.Background(), store.DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// SeedNote inserts a note row directly, bypassing validation. A zero created
// time defaults to now.
func SeedNote(t *testing.T, st *store.Store, id, content string, parent *models.Note, created time.Time) *models.Note {
	t.Helper()
	if created.IsZero() {
		created = time.Now().UTC()
	}
	n := &models.Note{ID: id, Content: content, CreatedAt: created, UpdatedAt: created}
	if parent != nil {
		pid := parent.ID
		n.ParentID = &pid
		n.Depth = parent.Depth + 1
	}
	if err := st.InsertNote(context.Background(), n); err != nil {
		t.Fatalf("seed note %s: %v", id, err)
	}
	return n
}

// SyncIndexer writes search index updates straight into the store so tests
// can query right after a write.
type SyncIndexer struct{ Store *store.Store }

func (i SyncIndexer) NoteChanged(id, content string) {
	_ = i.Store.IndexContent(context.Background(), id, content)
}

func (i SyncIndexer) NotesRemoved(ids []string) {
	_ = i.Store.UnindexNotes(context.Background(), ids)
}
