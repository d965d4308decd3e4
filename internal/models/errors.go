package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a record, ticket, session or entry does not exist
	ErrNotFound = errors.New("not found")
)

// ValidationError describes rejected user input. No state is mutated when it is returned.
type ValidationError struct {
	Fields  []string
	Message string
}

// Error returns the message
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for a single field
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Fields: []string{field}, Message: fmt.Sprintf(format, args...)}
}
