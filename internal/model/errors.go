package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches any *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when an operation references a missing id.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a profile name is already taken.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps I/O and durability failures of a store.
	ErrStorage = errors.New("storage error")
)

// ValidationError reports bad user input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
