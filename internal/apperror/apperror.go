// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP layer knows how they map to
// status codes (see handler.writeError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Machine-readable kinds, one per sentinel. KindInternal covers everything
// else.
const (
	KindNotFound     = "not_found"
	KindValidation   = "validation_error"
	KindConflict     = "conflict"
	KindForbidden    = "forbidden"
	KindUnauthorized = "unauthorized"
	KindInternal     = "internal_error"
)

// kinds is checked in order; the first sentinel err matches wins.
var kinds = []struct {
	sentinel error
	kind     string
}{
	{ErrValidation, KindValidation},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
}

// AppError is a client-safe error: Message may be shown to the caller.
type AppError struct {
	Err     error  // sentinel matched by errors.Is
	Message string
	Field   string // offending input, validation only
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Err }

func newError(sentinel error, field, msg string) *AppError {
	return &AppError{Err: sentinel, Message: msg, Field: field}
}

// Kind classifies err. Anything that is not an *AppError wrapping one of
// the sentinels is KindInternal, including plain errors that happen to wrap
// a sentinel: their text was never meant for clients.
func Kind(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(appErr, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// NotFound builds "<resource> not found with id <id>".
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, "", fmt.Sprintf("%s not found with id %s", resource, id))
}

// NotFoundMessage is NotFound with a fixed message such as "Complaint not found".
func NotFoundMessage(message string) *AppError {
	return newError(ErrNotFound, "", message)
}

func ValidationFailed(field, message string) *AppError {
	return newError(ErrValidation, field, message)
}

func Conflict(resource, id string) *AppError {
	return newError(ErrConflict, "", fmt.Sprintf("%s conflict with id %s", resource, id))
}

// Forbidden means the caller is known but its role is not enough.
func Forbidden(message string) *AppError {
	return newError(ErrForbidden, "", message)
}

// Unauthorized means missing, malformed or expired credentials.
func Unauthorized(message string) *AppError {
	return newError(ErrUnauthorized, "", message)
}
