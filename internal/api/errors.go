package api

import (
	"errors"
	"net/http"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes
// without leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrCacheMiss):
		return http.StatusNotFound

	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, store.ErrQueueUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly message for
// the error type.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier"

	case errors.Is(err, store.ErrJobNotFound):
		return "Generation job not found"

	case errors.Is(err, store.ErrCacheMiss):
		return "Result not found"

	case errors.Is(err, store.ErrInvalidTransition):
		return "Job is not in a state that allows this operation"

	case errors.Is(err, store.ErrQueueUnavailable):
		return "Generation queue is temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}
