package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnknownConfigType is returned when a config type string does not
	// name one of the supported configuration variants.
	ErrUnknownConfigType = errors.New("unknown config type")

	// ErrInvalidTransition is returned when a status change would violate
	// the task state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when an operation is not permitted for
	// the calling service account.
	ErrUnauthorized = errors.New("unauthorized operation")
)
