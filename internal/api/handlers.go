package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ta21cos/thread-type-note-app/internal/noteservice"
)

const maxBodyBytes = 64 << 10

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteID extracts and validates the {id} path parameter. It writes a 400 and
// returns false when the id is malformed.
func noteID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := noteIDParam{ID: chi.URLParam(r, "id")}
	if err := validate.Struct(p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeValidation, validationMessage(err)))
		return "", false
	}
	return p.ID, true
}

func intParam(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Out of range for every validated field.
		return -1
	}
	return n
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeInvalidRequest, "invalid JSON body"))
		return false
	}
	return true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List thread roots, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int	false	"Page size (1-100)"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := listQuery{Limit: intParam(r, "limit", 20), Offset: intParam(r, "offset", 0)}
	if err := validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeValidation, validationMessage(err)))
		return
	}
	list, err := h.svc.ListRoots(r.Context(), q.Limit, q.Offset)
	if err != nil {
		writeServiceError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note, optionally with its whole thread
//	@Tags			notes
//	@Produce		json
//	@Param			id				path		string	true	"Note id"
//	@Param			includeThread	query		bool	false	"Include the thread"
//	@Success		200				{object}	NoteDetailResponse
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get note", err, slog.String("id", id))
		return
	}
	resp := NoteDetailResponse{Note: *note}
	if include, _ := strconv.ParseBool(r.URL.Query().Get("includeThread")); include {
		th, err := h.svc.GetThread(r.Context(), id)
		if err != nil {
			writeServiceError(w, "get thread", err, slog.String("id", id))
			return
		}
		resp.Thread = th
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note or a reply
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeValidation, validationMessage(err)))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Content, req.ParentID)
	if err != nil {
		writeServiceError(w, "create note", err, slog.String("parent", req.ParentID))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Edit a note's content
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"Content checksum for optimistic concurrency"
//	@Param			body		body		UpdateNoteRequest	true	"Updated content"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), id, req.Content, ifMatch)
	if err != nil {
		writeServiceError(w, "update note", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note with all its replies
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeServiceError(w, "delete note", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Mentions handles GET /api/notes/{id}/mentions.
//
//	@Summary		Notes that mention this note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	MentionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/mentions [get]
func (h *Handler) Mentions(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), id)
	if err != nil {
		writeServiceError(w, "mentions", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, MentionsResponse{Mentions: bl})
}

// Search handles GET /api/notes/search.
//
//	@Summary		Search notes by content or by mention
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Query text, or a note id for type=mention"
//	@Param			type	query		string	false	"Search kind"	Enums(content, mention)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{
		Q:     r.URL.Query().Get("q"),
		Type:  r.URL.Query().Get("type"),
		Limit: intParam(r, "limit", 20),
	}
	if q.Type == "" {
		q.Type = noteservice.SearchContent
	}
	if err := validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeValidation, validationMessage(err)))
		return
	}
	results, err := h.svc.Search(r.Context(), q.Q, q.Type, q.Limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q.Q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Total: len(results)})
}
