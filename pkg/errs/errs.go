// Package errs defines the error taxonomy shared by the access guard, the
// services, and the HTTP layer.
//
// Every failure that reaches a handler is classified by [Kind]. The HTTP layer
// maps a kind to exactly one status code and one JSON error body, so services
// never write responses themselves and handlers never inspect error strings.
//
//	err := errs.E("notes.get", errs.NotFound, "Note not found")
//	errs.KindOf(err)                // errs.NotFound
//	errs.KindOf(err).HTTPStatus()   // 404
//
// Errors that do not carry a kind (store failures, decoding bugs) are treated as
// [Internal]; their message is never shown to clients.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for translation into an HTTP response.
type Kind uint8

const (
	// Internal is any unexpected failure, including store errors.
	Internal Kind = iota
	// Unauthorized means a missing, malformed, or expired token, or bad credentials.
	Unauthorized
	// Forbidden means a role mismatch or a tenant mismatch.
	Forbidden
	// NotFound means the id or slug does not resolve within the caller's tenant.
	NotFound
	// Validation means a required field is missing or malformed.
	Validation
	// LimitReached means the tenant's plan does not allow another note.
	LimitReached
	// Unavailable means the store is refusing writes (read-only mode).
	Unavailable
)

var kindNames = [...]string{
	Internal:     "internal",
	Unauthorized: "unauthorized",
	Forbidden:    "forbidden",
	NotFound:     "not_found",
	Validation:   "validation",
	LimitReached: "limit_reached",
	Unavailable:  "unavailable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// HTTPStatus returns the status code the HTTP layer answers with for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden, LimitReached:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to show to clients; Err is the
// underlying cause and is only logged.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error for operation op.
func E(op string, kind Kind, message string) error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap classifies err under kind, keeping it as the cause. A nil err yields nil.
func Wrap(op string, kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// Internalf wraps an unexpected failure. An already classified err is returned
// unchanged.
func Internalf(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Kind: Internal, Err: err}
}

// KindOf reports the kind of err, or Internal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message of err. Unclassified and internal
// errors get a generic message.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == Internal {
		return "Internal server error"
	}
	if e.Message == "" {
		return http.StatusText(e.Kind.HTTPStatus())
	}
	return e.Message
}

// Op returns the operation name recorded on err, if any.
func Op(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
