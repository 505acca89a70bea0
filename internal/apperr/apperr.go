// Package apperr defines the error taxonomy surfaced to API clients.
//
// Domain packages return sentinel errors or *Error values; the HTTP layer
// maps them to a status code and a machine-readable code with KindOf and
// As. Errors that carry no Kind are treated as Internal and their text is
// never shown to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the caller should react to it.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code used for errors of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified, client-safe error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying the given details.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = details
	return &out
}

// Wrap returns a copy of e that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.Err = cause
	return &out
}

// Is reports whether target is an *Error with the same kind and code, so
// that package-level *Error values can be used as sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// BadRequest covers malformed payloads and business-rule violations.
func BadRequest(code, format string, args ...any) *Error {
	return newError(KindBadRequest, code, fmt.Sprintf(format, args...))
}

// Unauthorized covers missing, invalid or expired credentials.
func Unauthorized(code, format string, args ...any) *Error {
	return newError(KindUnauthorized, code, fmt.Sprintf(format, args...))
}

// Forbidden covers authenticated requests the lifecycle or policy disallows.
func Forbidden(code, format string, args ...any) *Error {
	return newError(KindForbidden, code, fmt.Sprintf(format, args...))
}

// NotFound covers unknown or expired resources.
func NotFound(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, fmt.Sprintf(format, args...))
}

// Conflict covers duplicate identifiers and stale writes.
func Conflict(code, format string, args ...any) *Error {
	return newError(KindConflict, code, fmt.Sprintf(format, args...))
}

// RateLimited covers callers that exceeded an attempt budget.
func RateLimited(code, format string, args ...any) *Error {
	return newError(KindRateLimited, code, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the classified error from err. Unclassified errors are
// wrapped as Internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
