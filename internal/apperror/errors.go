// Package apperror defines the error taxonomy surfaced by the task service.
// The HTTP layer maps each Kind to a status code in one place.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindValidation    Kind = "VALIDATION"
	KindConflict      Kind = "CONFLICT"
	KindNotFound      Kind = "NOT_FOUND"
	KindPersistence   Kind = "PERSISTENCE"
	KindRouteNotFound Kind = "ROUTE_NOT_FOUND"
)

// Error is the typed error returned by the service layer.
type Error struct {
	kind    Kind
	message string
	fields  []string
	cause   error
}

// New creates an error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap is New with an underlying cause. The cause is never shown to clients.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// InvalidFields is a validation error naming the offending fields.
func InvalidFields(message string, fields []string) *Error {
	e := New(KindValidation, message)
	e.fields = append([]string(nil), fields...)
	return e
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Persistence(cause error, message string) *Error {
	return Wrap(KindPersistence, cause, message)
}

func RouteNotFound() *Error {
	return New(KindRouteNotFound, "Route does not exist")
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.kind == t.kind
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindUnknown
	}
	return e.kind
}

// Message is the text safe to return to a client.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Fields lists offending input fields, if any.
func (e *Error) Fields() []string {
	if e == nil || len(e.fields) == 0 {
		return nil
	}
	return append([]string(nil), e.fields...)
}

// From extracts an *Error from an error chain.
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	if e, ok := From(err); ok {
		return e.Kind()
	}
	return KindUnknown
}
