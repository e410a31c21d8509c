package models

import (
	"errors"
	"net/http"
)

// HTTPError is implemented by errors that carry their own response status.
type HTTPError interface {
	error
	StatusCode() int
}

type (
	// ValidationError reports missing or invalid input.
	ValidationError struct {
		Message string
	}

	// NotFoundError reports an unknown folder, image or blob.
	NotFoundError struct {
		Message string
	}

	// UnauthorizedError reports a missing or invalid owner token.
	UnauthorizedError struct {
		Message string
	}
)

func (e *ValidationError) Error() string   { return e.Message }
func (e *NotFoundError) Error() string     { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }

func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

// StorageError wraps an unexpected database or filesystem failure.
// Clients only see Op; the cause stays in the logs.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error   { return e.Err }
func (e *StorageError) StatusCode() int { return http.StatusInternalServerError }

// NewValidationError returns a *ValidationError with the given message.
func NewValidationError(msg string) error { return &ValidationError{Message: msg} }

// NewNotFoundError returns a *NotFoundError with the given message.
func NewNotFoundError(msg string) error { return &NotFoundError{Message: msg} }

// NewStorageError wraps err as a *StorageError for operation op.
func NewStorageError(op string, err error) error { return &StorageError{Op: op, Err: err} }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusOf maps err to an HTTP status; unknown errors are internal failures.
func StatusOf(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to put in a failure envelope.
func PublicMessage(err error) string {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Op
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.Error()
	}
	return "internal server error"
}
