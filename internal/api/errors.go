package api

import (
	"errors"
	"net/http"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/queue"
	"github.com/tagworks/tagworks-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, queue.ErrInvalidToken),
		errors.Is(err, queue.ErrExpiredToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrUnknownConfigType),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest

	// Upstream queue failures surface as a bad gateway so callers can
	// distinguish them from faults in this service.
	case errors.Is(err, queue.ErrDispatchRejected):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, queue.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, queue.ErrInvalidToken):
		return "Invalid token"

	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return "Operation not permitted for this service account"

	// Not found errors
	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrShardNotFound):
		return "Shard not found"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrConfigNotFound):
		return "Config not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	// Bad request errors
	case errors.Is(err, domain.ErrUnknownConfigType):
		return "Unknown config type"

	case errors.Is(err, domain.ErrInvalidTransition):
		return "Invalid task status transition"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFormat):
		return "Invalid request data"

	// Queue failures
	case errors.Is(err, queue.ErrDispatchRejected):
		return "Work queue rejected the dispatch"

	default:
		return "An unexpected error occurred"
	}
}
