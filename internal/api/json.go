package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
)

// Error codes returned in errResponse.Code.
const (
	codeNotFound       = "NOTE_NOT_FOUND"
	codeInvalidParent  = "INVALID_PARENT"
	codeContentLength  = "INVALID_CONTENT_LENGTH"
	codeCircular       = "CIRCULAR_REFERENCE"
	codeMaxDepth       = "MAX_DEPTH_EXCEEDED"
	codeValidation     = "VALIDATION_ERROR"
	codeConflict       = "CHECKSUM_MISMATCH"
	codeUnauthorized   = "UNAUTHORIZED"
	codeInternal       = "INTERNAL_ERROR"
	codeInvalidRequest = "INVALID_REQUEST"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: msg, Code: code}
}

// writeServiceError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as 500.
func writeServiceError(w http.ResponseWriter, op string, err error, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrParentNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(codeInvalidParent, "parent note not found"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(codeNotFound, "note not found"))
	case errors.Is(err, apperr.ErrCircularReference):
		writeJSON(w, http.StatusBadRequest, errorBody(codeCircular, err.Error()))
	case errors.Is(err, apperr.ErrMaxDepthExceeded):
		writeJSON(w, http.StatusBadRequest, errorBody(codeMaxDepth, err.Error()))
	case errors.Is(err, apperr.ErrEmpty), errors.Is(err, apperr.ErrTooLong):
		writeJSON(w, http.StatusBadRequest, errorBody(codeContentLength, "content must be between 1 and 1000 characters"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(codeValidation, err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(codeConflict, "checksum mismatch"))
	default:
		args := []any{slog.String("error", err.Error())}
		for _, a := range attrs {
			args = append(args, a)
		}
		slog.Error(op+" failed", args...)
		writeJSON(w, http.StatusInternalServerError, errorBody(codeInternal, "internal error"))
	}
}
