package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConfiguration   = errors.New("configuration error")
	ErrExternalService = errors.New("external service error")
	ErrInternal        = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFoundError marks an error as a missing session or file.
func NotFoundError(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInputError marks an error as a bad request.
func InvalidInputError(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// ConfigurationError marks an error as a server misconfiguration
// (e.g. vision endpoints called without an API key).
func ConfigurationError(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConfiguration)
}

// HTTPStatus maps the error taxonomy onto HTTP status codes:
// NotFound -> 404, InvalidInput -> 400, everything else -> 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
