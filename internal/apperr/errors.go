// Package apperr defines the typed domain errors shared across the data layer.
//
// Repositories and services translate low-level driver errors into these before
// they cross a component boundary; the raw cause stays wrapped for logging but
// is never shown to a user.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors, matchable with errors.Is.
var (
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrNotFound       = errors.New("not found")
	ErrNotInitialized = errors.New("not initialized")
	ErrQueryFailed    = errors.New("query failed")
	ErrInitFailed     = errors.New("initialization failed")
	ErrPhotoIO        = errors.New("photo io failed")
)

// Error carries a machine code, a message safe to show to the user, and the
// wrapped low-level cause.
type Error struct {
	Code        string
	UserMessage string
	sentinel    error
	cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.UserMessage)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.sentinel, e.cause}
	}
	return []error{e.sentinel}
}

func newError(code string, sentinel error, userMessage string, cause error) *Error {
	return &Error{Code: code, UserMessage: userMessage, sentinel: sentinel, cause: cause}
}

// Duplicate reports a unique-constraint collision as a domain error.
func Duplicate(userMessage string, cause error) *Error {
	return newError("duplicate_entry", ErrDuplicateEntry, userMessage, cause)
}

// NotFound reports a missing row or file as a domain error.
func NotFound(userMessage string, cause error) *Error {
	return newError("not_found", ErrNotFound, userMessage, cause)
}

// NotInitialized reports use of the store before a successful Initialize.
func NotInitialized(userMessage string) *Error {
	return newError("not_initialized", ErrNotInitialized, userMessage, nil)
}

// Query reports a generic storage failure.
func Query(userMessage string, cause error) *Error {
	return newError("query_failed", ErrQueryFailed, userMessage, cause)
}

// Init reports a startup/schema failure.
func Init(userMessage string, cause error) *Error {
	return newError("init_failed", ErrInitFailed, userMessage, cause)
}

// PhotoIO reports a photo directory or file failure.
func PhotoIO(userMessage string, cause error) *Error {
	return newError("photo_io", ErrPhotoIO, userMessage, cause)
}

// UserMessage returns the user-facing message carried by err, or fallback when
// err carries none.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.UserMessage != "" {
		return e.UserMessage
	}
	return fallback
}
