package exportanalysis

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("caller does not own this resource")
	ErrConflict    = errors.New("analysis already exists")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Issue string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Issue)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, issue string) error {
	return &ValidationError{Field: field, Issue: issue}
}

// notFound wraps ErrNotFound with the missing resource.
func notFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
