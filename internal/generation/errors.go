package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package.
var (
	// ErrGenerationFailed is returned when artifact generation fails for
	// any general reason.
	ErrGenerationFailed = errors.New("failed to generate artifact")

	// ErrInvalidResponse is returned when a service response cannot be
	// parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from generation service")

	// ErrContentBlocked is returned when the service refuses the content
	// due to safety filters. Not retriable.
	ErrContentBlocked = errors.New("content blocked by generation service safety filters")

	// ErrInvalidConfig is returned when a generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// ErrorKind classifies a service failure for retry purposes.
type ErrorKind string

// Service error kinds.
const (
	// KindTransient marks failures that may resolve on retry: timeouts,
	// rate-limit rejections, connection resets.
	KindTransient ErrorKind = "transient"

	// KindPermanent marks failures that will not resolve on retry:
	// malformed input, safety blocks, unsupported parameters.
	KindPermanent ErrorKind = "permanent"
)

// ServiceError wraps a failure from an external generation service with
// its classification. The pipeline retries transient errors per its
// backoff policy and fails immediately on permanent ones; it never
// inspects service internals beyond the kind.
type ServiceError struct {
	// Kind classifies the failure as transient or permanent.
	Kind ErrorKind

	// Op names the capability call that failed, e.g. "visuals.generate".
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retriable service failure.
func NewTransientError(op string, err error) *ServiceError {
	return &ServiceError{Kind: KindTransient, Op: op, Err: err}
}

// NewPermanentError wraps err as a non-retriable service failure.
func NewPermanentError(op string, err error) *ServiceError {
	return &ServiceError{Kind: KindPermanent, Op: op, Err: err}
}

// IsTransient reports whether err is a service error classified as
// transient. Unclassified errors are treated as permanent so that an
// unknown failure mode never loops through the retry budget.
func IsTransient(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind == KindTransient
	}
	return false
}
