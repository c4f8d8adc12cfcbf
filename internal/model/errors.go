package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no item has the requested id.
	ErrNotFound = errors.New("item not found")

	// ErrConflict is the parent of every state-machine violation.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyClaimed is returned when claiming an item that is already claimed.
	ErrAlreadyClaimed = fmt.Errorf("%w: item is already claimed", ErrConflict)

	// ErrClaimedImmutable is returned when updating an item that is already claimed.
	ErrClaimedImmutable = fmt.Errorf("%w: cannot update claimed items", ErrConflict)

	// ErrInvalidMediaType is returned for uploads that are not an accepted image type.
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrStorage wraps I/O failures against the item store or the image store.
	ErrStorage = errors.New("storage error")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

// Add records a problem with field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// StorageError wraps err as an ErrStorage failure for op.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
