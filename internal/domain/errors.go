// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidJobState is returned when a job state is not one of the
	// known states.
	ErrInvalidJobState = errors.New("invalid job state")

	// ErrInvalidStage is returned when a pipeline stage name is unknown.
	ErrInvalidStage = errors.New("invalid pipeline stage")

	// ErrCancelled marks work abandoned because the owning job was
	// cancelled. It is terminal but not treated as a failure.
	ErrCancelled = errors.New("job cancelled")

	// ErrJobTimeout marks a job that exceeded its wall-clock ceiling,
	// regardless of remaining retry budget.
	ErrJobTimeout = errors.New("job exceeded its time limit")
)

// ErrorKindMessage maps a recorded error kind to the human-readable
// message callers and subscribers see. Raw error text stays in the job
// record and logs, never in a response body or event.
func ErrorKindMessage(kind string) string {
	switch kind {
	case "timeout":
		return "generation took too long and was stopped"
	case "transient_exhausted":
		return "generation service was unavailable after retries"
	case "permanent":
		return "generation service rejected the request"
	case "cancelled":
		return "generation cancelled"
	default:
		return "generation failed"
	}
}
