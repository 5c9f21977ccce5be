package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/noteid"
	"github.com/ta21cos/thread-type-note-app/internal/noteservice"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("noteid", func(fl validator.FieldLevel) bool {
		return noteid.IsValid(fl.Field().String())
	})
	return v
}

// CreateNoteRequest is the request body for creating a note. Content length
// is checked by the service so the error carries its own code.
type CreateNoteRequest struct {
	Content  string `json:"content" example:"Hello @abc123"`
	ParentID string `json:"parentId,omitempty" example:"abc123" validate:"omitempty,noteid"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"Edited text"`
}

type listQuery struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

type searchQuery struct {
	Q     string `validate:"required,max=200"`
	Type  string `validate:"oneof=content mention"`
	Limit int    `validate:"min=1,max=100"`
}

type noteIDParam struct {
	ID string `validate:"required,noteid"`
}

// NoteListResponse wraps paginated root listings.
type NoteListResponse = noteservice.NoteList

// NoteDetailResponse is a note, optionally with its thread.
type NoteDetailResponse struct {
	Note   models.Note   `json:"note" validate:"required"`
	Thread []models.Note `json:"thread,omitempty"`
}

// MentionsResponse lists notes mentioning a note.
type MentionsResponse struct {
	Mentions []models.Backlink `json:"mentions" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.Note `json:"results" validate:"required"`
	Total   int           `json:"total" example:"3" validate:"required"`
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "noteid":
			msgs = append(msgs, fmt.Sprintf("%s must be a %d-character alphanumeric id", field, noteid.Length))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
