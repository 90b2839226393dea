package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/events"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// Manager is the submission-side surface of the job queue: it validates
// requests, deduplicates them by content key, and handles status and
// cancellation. Execution belongs to the worker pool.
type Manager struct {
	jobs      store.JobStore
	publisher events.Publisher
	validate  *validator.Validate
}

// NewManager creates a Manager on the given store and event publisher.
func NewManager(jobs store.JobStore, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		jobs:      jobs,
		publisher: publisher,
		validate:  validator.New(),
	}
}

// Submit enqueues a generation job for the lesson. When a non-terminal
// job for the same content key already exists, that job is returned
// instead and the returned bool is false.
func (m *Manager) Submit(ctx context.Context, lessonID, userID uuid.UUID, opts domain.GenerationOptions) (*domain.Job, bool, error) {
	log := logger.FromContext(ctx)

	opts.Normalize()
	if err := m.validate.Struct(opts); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	job, err := domain.NewJob(lessonID, userID, opts)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	stored, created, err := m.jobs.CreateOrGet(ctx, job)
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.JobSubmitted("created")
		log.Info("generation job enqueued",
			"job_id", stored.ID, "lesson_id", lessonID, "content_key", stored.ContentKey)
	} else {
		metrics.JobSubmitted("joined")
		log.Info("joined existing generation job",
			"job_id", stored.ID, "lesson_id", lessonID, "content_key", stored.ContentKey)
	}

	return stored, created, nil
}

// GetStatus returns the current job snapshot.
func (m *Manager) GetStatus(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return m.jobs.GetByID(ctx, id)
}

// Cancel requests cancellation of a job. Queued jobs cancel
// immediately; active jobs move to cancelling and the worker winds down
// at its next checkpoint. Cancelling a job that is already cancelling
// or cancelled is a no-op; cancelling a completed or failed job returns
// ErrInvalidTransition.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	// One retry absorbs the race where a worker claims the job between
	// our snapshot and the CAS.
	for attempt := 0; attempt < 2; attempt++ {
		job, err := m.jobs.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		switch job.State {
		case domain.JobStateQueued:
			if err := m.jobs.Transition(ctx, id, domain.JobStateQueued, domain.JobStateCancelled); err != nil {
				if errors.Is(err, store.ErrInvalidTransition) {
					continue
				}
				return nil, err
			}
			// No worker holds this job, so the final event is ours to emit.
			m.publishCancelled(ctx, job)
			metrics.JobProcessed("cancelled")
			log.Info("cancelled queued job", "job_id", id)
			return m.jobs.GetByID(ctx, id)

		case domain.JobStateActive:
			if err := m.jobs.Transition(ctx, id, domain.JobStateActive, domain.JobStateCancelling); err != nil {
				if errors.Is(err, store.ErrInvalidTransition) {
					continue
				}
				return nil, err
			}
			log.Info("requested cancellation of active job", "job_id", id, "worker_id", job.WorkerID)
			return m.jobs.GetByID(ctx, id)

		case domain.JobStateCancelling, domain.JobStateCancelled:
			return job, nil

		default:
			return nil, fmt.Errorf("%w: job is %s", store.ErrInvalidTransition, job.State)
		}
	}

	return nil, fmt.Errorf("%w: cancellation raced repeatedly", store.ErrInvalidTransition)
}

func (m *Manager) publishCancelled(ctx context.Context, job *domain.Job) {
	m.publisher.Publish(ctx,
		[]string{events.JobTopic(job.ID), events.ContentTopic(job.ContentKey)},
		events.Event{
			Type:      events.TypeFailed,
			JobID:     job.ID,
			Percent:   job.Percent,
			Stage:     string(job.Stage),
			ErrorKind: "cancelled",
			Message:   "generation cancelled before it started",
			At:        time.Now().UTC(),
		})
}
