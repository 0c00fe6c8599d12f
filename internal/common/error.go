// Package common defines shared constants and sentinel errors used across
// the server, its repositories and the operator CLI. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Domain error kinds. Every *Error unwraps to exactly one of these.
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
)

// Error is a domain error carrying a user-facing message and, optionally,
// the names of the fields it refers to.
type Error struct {
	Kind   error
	Msg    string
	Fields []string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	return e.Msg + ": " + strings.Join(e.Fields, ", ")
}

func (e *Error) Unwrap() error { return e.Kind }

// Validation builds an ErrValidation error.
func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: ErrValidation, Msg: msg, Fields: fields}
}

// NotFound builds an ErrNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

// Conflict builds an ErrConflict error.
func Conflict(msg string, fields ...string) *Error {
	return &Error{Kind: ErrConflict, Msg: msg, Fields: fields}
}

// Forbidden builds an ErrForbidden error.
func Forbidden(msg string) *Error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

// BadRequest builds an ErrBadRequest error.
func BadRequest(msg string, fields ...string) *Error {
	return &Error{Kind: ErrBadRequest, Msg: msg, Fields: fields}
}

// Message returns the user-facing message of err when it is a domain error,
// otherwise fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return fallback
}

// FieldsOf returns the field names attached to a domain error, if any.
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
