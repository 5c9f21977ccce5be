// Package apperr defines the error taxonomy shared by the note services and
// their transports. Callers match with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrCircularReference = errors.New("circular reference detected in mentions")
)

var (
	ErrEmpty            = fmt.Errorf("%w: note content is empty", ErrValidation)
	ErrTooLong          = fmt.Errorf("%w: note content is too long", ErrValidation)
	ErrMaxDepthExceeded = fmt.Errorf("%w: thread depth limit exceeded", ErrValidation)
	ErrParentNotFound   = fmt.Errorf("parent note %w", ErrNotFound)
)
