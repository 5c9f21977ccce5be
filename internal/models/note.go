// Package models defines the domain types for threaded notes.
package models

import "time"

// Note is a single post. A note without a parent is the root of its thread.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ParentID  *string   `json:"parentId,omitempty"`
	Depth     int       `json:"depth"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsRoot reports whether the note starts a thread.
func (n *Note) IsRoot() bool {
	return n.ParentID == nil
}

// Mention is a reference from one note's content to another note.
type Mention struct {
	ID         string    `json:"id"`
	FromNoteID string    `json:"fromNoteId"`
	ToNoteID   string    `json:"toNoteId"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Edge is a directed mention edge, stripped of row metadata.
type Edge struct {
	From string
	To   string
}

// Backlink pairs a mentioning note with the offset of the mention in it.
type Backlink struct {
	Note     Note `json:"note"`
	Position int  `json:"position"`
}

// SearchHit is one full-text match.
type SearchHit struct {
	NoteID  string `json:"noteId"`
	Snippet string `json:"snippet,omitempty"`
}
