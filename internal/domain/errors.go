package domain

import "errors"

// ErrorKind classifies a client-visible failure so callers can branch on
// kind instead of matching message text.
type ErrorKind string

const (
	KindInvalidInput  ErrorKind = "invalid_input"
	KindConflict      ErrorKind = "conflict"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindNotFound      ErrorKind = "not_found"
	KindNoContent     ErrorKind = "no_content"
	KindMalformedData ErrorKind = "malformed_data"
	// KindInternal is the fallback for errors outside the closed set above.
	KindInternal ErrorKind = "internal"
)

// Error is a classified, recoverable service error.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Invalid(msg string) error      { return &Error{Kind: KindInvalidInput, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func NoContent(msg string) error    { return &Error{Kind: KindNoContent, Message: msg} }
func Malformed(msg string) error    { return &Error{Kind: KindMalformedData, Message: msg} }

// KindOf extracts the kind from err, or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
