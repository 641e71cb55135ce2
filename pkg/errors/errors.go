// Package errors defines the error kinds shared by the search services and
// maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrIndexIO marks a failure inside an index or retrieval collaborator.
	// It is fatal to the current request and is never retried by the core.
	ErrIndexIO  = errors.New("index i/o failure")
	ErrInternal = errors.New("internal error")
	ErrTimeout  = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Invalid returns an ErrInvalidInput AppError with a 400 status.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// IndexIO wraps a collaborator failure so that errors.Is(err, ErrIndexIO)
// holds while the original cause stays reachable through the chain.
func IndexIO(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIndexIO) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIndexIO, err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexIO), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
