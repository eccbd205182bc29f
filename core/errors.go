package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched (via errors.Is) by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy is returned when another operation holds the thread's lock for
	// longer than the configured lock timeout. The caller may retry.
	ErrBusy = errors.New("thread is busy")

	// ErrNotFound is returned when an external entity does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected caller input. No state is mutated when
// a ValidationError is returned.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidInput) hold for validation errors.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
