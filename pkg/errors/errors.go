// Package errors defines the coded error taxonomy shared by services and
// the HTTP layer. Services attach a Code to every failure they surface;
// the transport derives status, public message, and detail exposure from
// the code alone, so internals never leak by accident.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// HTTPStatus maps the code onto a response status. Unknown codes are
// treated as internal.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeIdempotency:
		return http.StatusConflict
	case CodeStateConflict:
		return http.StatusUnprocessableEntity
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the fallback shown when the error carries no message
// of its own, or when the code does not permit exposing one.
func (c Code) PublicMessage() string {
	switch c {
	case CodeValidation:
		return "validation failed"
	case CodeUnauthorized:
		return "authentication required"
	case CodeForbidden:
		return "access denied"
	case CodeNotFound:
		return "resource not found"
	case CodeConflict:
		return "conflict detected"
	case CodeStateConflict:
		return "state transition disallowed"
	case CodeIdempotency:
		return "idempotency key reused"
	case CodeRateLimit:
		return "rate limit exceeded"
	case CodeDependency:
		return "dependency unavailable"
	default:
		return "internal server error"
	}
}

// ExposesMessage reports whether an error's own message is safe to show
// to the caller. Internal and dependency failures always fall back to
// the generic message.
func (c Code) ExposesMessage() bool {
	switch c {
	case CodeInternal, CodeDependency:
		return false
	default:
		return true
	}
}

// ExposesDetails reports whether structured details may ride along on
// the response body.
func (c Code) ExposesDetails() bool {
	switch c {
	case CodeValidation, CodeStateConflict, CodeIdempotency:
		return true
	default:
		return false
	}
}

// Error is a coded error with an optional cause and optional structured
// details. The zero Code reads as internal.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// degrades to New.
func Wrap(code Code, cause error, message string) *Error {
	if cause == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: cause}
}

// As extracts a coded error from anywhere in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func (e *Error) Code() Code {
	if e == nil || e.code == "" {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches a structured payload for codes that expose them.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}
