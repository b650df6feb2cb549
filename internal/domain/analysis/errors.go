package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound covers both a missing session and one owned by someone else.
	ErrNotFound = errors.New("session not found")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoTranscript means none of the requested sessions has usable text.
	ErrNoTranscript = errors.New("no valid transcript found for the selected sessions")

	ErrUnsupportedType = errors.New("unsupported analysis type")
)

// ValidationError rejects a request before any store access.
type ValidationError struct {
	Field   string
	Message string
	cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func unsupportedType(got string) error {
	valid := make([]string, len(Types))
	for i, t := range Types {
		valid[i] = string(t)
	}
	return &ValidationError{
		Field:   "analysisType",
		Message: fmt.Sprintf("unsupported analysis type %q (valid: %s)", got, strings.Join(valid, ", ")),
		cause:   ErrUnsupportedType,
	}
}
