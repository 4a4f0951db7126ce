// Package apierr defines the typed error kinds used across every domain
// service, and the HTTP status mapping for them.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for status-code mapping and client handling.
type Kind string

const (
	InvalidArgument   Kind = "invalid_argument"
	FailedPrecondition Kind = "failed_precondition"
	NotFound          Kind = "not_found"
	AlreadyExists     Kind = "already_exists"
	Internal          Kind = "internal"
)

// Error is the typed error every Service method returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFoundf is a convenience constructor for the common NotFound case.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// InvalidArgumentf is a convenience constructor for InvalidArgument.
func InvalidArgumentf(format string, args ...any) *Error {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

// FailedPreconditionf is a convenience constructor for FailedPrecondition,
// the kind used for optimistic-concurrency version mismatches.
func FailedPreconditionf(format string, args ...any) *Error {
	return New(FailedPrecondition, fmt.Sprintf(format, args...))
}

// AlreadyExistsf is a convenience constructor for AlreadyExists.
func AlreadyExistsf(format string, args ...any) *Error {
	return New(AlreadyExists, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the status code a handler should respond with.
// Errors that are not *Error map to 500.
func HTTPStatus(err error) int {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case InvalidArgument:
		return http.StatusBadRequest
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code string used in HTTP error
// envelopes for err.
func Code(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "internal"
	}
	return string(apiErr.Kind)
}
