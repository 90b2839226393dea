package store

import (
	"errors"
)

// Common store errors used across all store implementations.
var (
	// ErrJobNotFound is returned when the requested job does not exist or
	// has expired. Status queries surface this as a normal result, not a
	// panic or a 500.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a compare-and-set state
	// transition is rejected because the job was not in the expected
	// prior state (e.g. cancelling an already-terminal job).
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrQueueUnavailable is returned when a submission cannot be durably
	// recorded. Surfaced to the caller as a submission failure.
	ErrQueueUnavailable = errors.New("job queue unavailable")

	// ErrNoJobAvailable is returned by a claim attempt when no queued job
	// exists. Workers poll; this is an idle signal, not a failure.
	ErrNoJobAvailable = errors.New("no queued job available")

	// ErrCacheMiss is returned when a result cache lookup finds no entry,
	// either because none was written or because the TTL elapsed.
	// Explicit absence, not an error condition.
	ErrCacheMiss = errors.New("result cache miss")
)
