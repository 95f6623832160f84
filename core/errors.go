package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how it surfaces over HTTP
type Kind int

// error kinds
const (
	KindUpstream Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindNoOp
	KindUnauthorized
)

// Error is the error type returned by handlers and stores. Anything that is
// not an *Error is treated as KindUpstream.
type Error struct {
	Kind    Kind
	Message string
	// Details carries validation failures, echoed to the client
	Details []string
	// Status overrides the default status for the kind; used by KindNoOp
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on the kind, so that errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && e.Kind != KindUpstream
}

// sentinels for errors.Is
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNoOp         = &Error{Kind: KindNoOp}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// Validation returns a validation error with optional details
func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// NotFound returns a not-found error for the named resource
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Forbidden returns a forbidden error
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "forbidden"}
}

// Unauthorized returns an error for requests lacking valid credentials
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "unauthorized"}
}

// NoOp returns an error for a mutation that affected zero rows. Missing
// targets map to 404, a no-op on an existing target to 400.
func NoOp(message string, missingTarget bool) *Error {
	status := http.StatusBadRequest
	if missingTarget {
		status = http.StatusNotFound
	}
	return &Error{Kind: KindNoOp, Message: message, Status: status}
}

// Upstream wraps a database or integration failure
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// StatusOf maps an error to its HTTP status code
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNoOp:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
