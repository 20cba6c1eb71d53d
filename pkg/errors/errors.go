// Package errors defines the sentinel errors shared across the engine and an
// AppError wrapper that carries an HTTP status for the searcher service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDictionaryNotLoaded is returned when a query arrives before any
	// dictionary variant has been loaded or built.
	ErrDictionaryNotLoaded = errors.New("dictionary not loaded")
	// ErrVariantMismatch is returned when a query path would mix a stemmed
	// tokenizer with an unstemmed dictionary or vice versa.
	ErrVariantMismatch  = errors.New("dictionary variant mismatch")
	ErrDocumentNotFound = errors.New("document not found")
	ErrIndexCorrupt     = errors.New("index file corrupt")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// AppError attaches a human-readable message and an HTTP status to a sentinel.
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

// HTTPStatusCode maps an error to the HTTP status the searcher service
// should report.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDictionaryNotLoaded), errors.Is(err, ErrVariantMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
