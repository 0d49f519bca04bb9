// Package apperr defines the error taxonomy surfaced by HTTP handlers.
//
// Services return *Error values; the Fiber error handler maps them to a status
// code and a client-safe message. The wrapped cause is only ever logged.
package apperr

import (
	"errors"
	"net/http"
)

// Error is an error with an HTTP status and a message that is safe to show clients
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed input, and rejected credentials.
func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg}
}

// Forbidden reports a failed role check or a rejected token.
func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg}
}

// NotFound reports a missing resource.
func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// Internal wraps an unexpected downstream failure.
func Internal(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
