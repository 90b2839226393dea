package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
)

// JobStore defines the durable storage interface for generation jobs.
// Job records survive process restarts and are shared by all worker pool
// instances; every state transition is compare-and-set against the
// expected prior state, rejecting transitions from anything else with
// ErrInvalidTransition.
type JobStore interface {
	// CreateOrGet persists a new queued job, unless a non-terminal job
	// already exists for the same content key, in which case the existing
	// job is returned instead (idempotent submission). The returned bool
	// is true when the job was newly created. Returns ErrQueueUnavailable
	// when the record cannot be durably written.
	CreateOrGet(ctx context.Context, job *domain.Job) (*domain.Job, bool, error)

	// GetByID returns the current job snapshot, or ErrJobNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ClaimNext atomically claims the oldest queued job for the given
	// worker: the job moves to active with a fresh lease, and no other
	// worker can claim it while the lease holds. Returns ErrNoJobAvailable
	// when the queue is empty.
	ClaimNext(ctx context.Context, workerID string) (*domain.Job, error)

	// Heartbeat refreshes the lease on a held job and returns the job's
	// current state, so the worker observes a cancellation request at its
	// next liveness signal.
	Heartbeat(ctx context.Context, id uuid.UUID, workerID string) (domain.JobState, error)

	// UpdateProgress records the job's aggregate percent and current
	// stage. Only non-terminal jobs are updated; stale writes after the
	// job terminates are dropped silently.
	UpdateProgress(ctx context.Context, id uuid.UUID, percent int, stage domain.Stage) error

	// RecordAttempt keeps the job's per-stage attempt counter at the
	// highest attempt number observed for any unit of that stage. Only
	// non-terminal jobs are updated.
	RecordAttempt(ctx context.Context, id uuid.UUID, stage domain.Stage, attempt int) error

	// Transition moves the job from the expected prior state to the next
	// state, or returns ErrInvalidTransition if the job is not in that
	// state (or ErrJobNotFound if it does not exist).
	Transition(ctx context.Context, id uuid.UUID, from, to domain.JobState) error

	// Complete moves an active or cancelling job to completed and records
	// the result cache key. CAS-guarded like Transition.
	Complete(ctx context.Context, id uuid.UUID, resultKey string) error

	// Fail moves an active or cancelling job to failed, recording the
	// last error kind and a human-readable message.
	Fail(ctx context.Context, id uuid.UUID, errorKind, message string) error

	// ReclaimStale returns active jobs whose lease heartbeat is older
	// than the given age back to queued, so another worker can pick them
	// up after a crash. Reports how many jobs were reclaimed.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}
