package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is missing or belongs to another owner
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert violates the (owner, url) uniqueness
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for a missing owner or malformed URL
	ErrValidation = errors.New("validation failed")

	// ErrParse is returned when a remote document or provider response cannot be parsed
	ErrParse = errors.New("parse failed")
)

// FetchErrorKind classifies transport-level failures
type FetchErrorKind string

const (
	FetchErrorTimeout   FetchErrorKind = "timeout"
	FetchErrorTransport FetchErrorKind = "transport"
	FetchErrorStatus    FetchErrorKind = "status"
)

// FetchError describes why a remote fetch failed
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrorStatus:
		return fmt.Sprintf("fetch %s: HTTP error: %d", e.URL, e.StatusCode)
	case FetchErrorTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError wraps ErrValidation with a field-specific message
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
