// Package apperr defines the error taxonomy shared by the service and HTTP layers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified failure. Msg is safe to show to clients; Err holds the cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidInput reports missing or malformed fields.
func InvalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

// Unauthorized reports a missing, invalid or expired credential, or a failed login.
func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

// Conflict reports a uniqueness violation.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// NotFound reports an absent record, or one owned by someone else.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "Internal server error"
}

// Is reports whether err is classified as k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Status maps err to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus classifies an HTTP error response received by a client.
func FromStatus(code int, msg string) error {
	switch code {
	case http.StatusBadRequest:
		return InvalidInput(msg)
	case http.StatusUnauthorized:
		return Unauthorized(msg)
	case http.StatusConflict:
		return Conflict(msg)
	case http.StatusNotFound:
		return NotFound(msg)
	default:
		return &Error{Kind: KindInternal, Msg: msg}
	}
}
