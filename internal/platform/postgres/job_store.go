package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// JobStore implements store.JobStore on PostgreSQL. All state
// transitions are compare-and-set against the expected prior state, so
// concurrent workers and the cancellation path can never corrupt a job
// record, and claims use FOR UPDATE SKIP LOCKED so competing consumers
// never double-claim.
type JobStore struct {
	db store.DBTX
}

// NewJobStore creates a JobStore backed by the given database handle.
func NewJobStore(db store.DBTX) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `
	id, lesson_id, user_id, content_key, options, state, percent, stage,
	attempts, result_key, error_kind, error_message, worker_id,
	created_at, started_at, completed_at, heartbeat_at
`

// CreateOrGet persists a new queued job unless a non-terminal job
// already exists for the same content key.
func (s *JobStore) CreateOrGet(ctx context.Context, job *domain.Job) (*domain.Job, bool, error) {
	log := logger.FromContext(ctx)

	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal job options: %w", err)
	}

	insert := `
		INSERT INTO generation_jobs
			(id, lesson_id, user_id, content_key, options, state, percent, stage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		ON CONFLICT (content_key) WHERE state IN ('queued', 'active', 'cancelling')
		DO NOTHING
	`

	// Two rounds cover the race where the conflicting job terminates
	// between our failed insert and the lookup.
	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.db.ExecContext(ctx, insert,
			job.ID, job.LessonID, job.UserID, job.ContentKey, optionsJSON,
			job.State, job.Stage, job.CreatedAt,
		)
		if err != nil {
			log.Error("failed to persist job",
				"job_id", job.ID, "content_key", job.ContentKey, "error", err)
			return nil, false, fmt.Errorf("%w: %v", store.ErrQueueUnavailable, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", store.ErrQueueUnavailable, err)
		}
		if rows > 0 {
			return job, true, nil
		}

		existing, err := s.getNonTerminalByContentKey(ctx, job.ContentKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, store.ErrJobNotFound) {
			return nil, false, err
		}
	}

	return nil, false, fmt.Errorf("%w: submission raced repeatedly", store.ErrQueueUnavailable)
}

// GetByID returns the current job snapshot.
func (s *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// ClaimNext atomically claims the oldest queued job for the worker.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string) (*domain.Job, error) {
	now := time.Now().UTC()
	query := `
		UPDATE generation_jobs
		SET state = 'active',
		    worker_id = $1,
		    started_at = COALESCE(started_at, $2),
		    heartbeat_at = $2
		WHERE id = (
			SELECT id FROM generation_jobs
			WHERE state = 'queued'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	job, err := s.scanOne(s.db.QueryRowContext(ctx, query, workerID, now))
	if errors.Is(err, store.ErrJobNotFound) {
		return nil, store.ErrNoJobAvailable
	}
	return job, err
}

// Heartbeat refreshes the lease and reports the job's current state so
// the worker observes a pending cancellation request.
func (s *JobStore) Heartbeat(ctx context.Context, id uuid.UUID, workerID string) (domain.JobState, error) {
	query := `
		UPDATE generation_jobs
		SET heartbeat_at = $1
		WHERE id = $2 AND worker_id = $3 AND state IN ('active', 'cancelling')
		RETURNING state
	`

	var state domain.JobState
	err := s.db.QueryRowContext(ctx, query, time.Now().UTC(), id, workerID).Scan(&state)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to heartbeat job %s: %w", id, err)
	}

	// Lease no longer held: the job was reclaimed or terminated. Report
	// the state so the worker can abandon the pipeline.
	job, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return "", getErr
	}
	return job.State, nil
}

// UpdateProgress records percent and stage for a non-terminal job.
// GREATEST keeps the stored percent monotonic even when a reclaimed job
// restarts its pipeline from stage one.
func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, stage domain.Stage) error {
	query := `
		UPDATE generation_jobs
		SET percent = GREATEST(percent, $1), stage = $2
		WHERE id = $3 AND state IN ('active', 'cancelling')
	`

	if _, err := s.db.ExecContext(ctx, query, percent, stage, id); err != nil {
		return fmt.Errorf("failed to update progress for job %s: %w", id, err)
	}
	return nil
}

// RecordAttempt keeps the stored per-stage attempt counter at the
// highest attempt number observed, mirroring the GREATEST guard on
// percent so concurrent units never lower it.
func (s *JobStore) RecordAttempt(ctx context.Context, id uuid.UUID, stage domain.Stage, attempt int) error {
	query := `
		UPDATE generation_jobs
		SET attempts = attempts || jsonb_build_object(
			$1::text, GREATEST($2::int, COALESCE((attempts->>$1)::int, 0)))
		WHERE id = $3 AND state IN ('active', 'cancelling')
	`

	if _, err := s.db.ExecContext(ctx, query, string(stage), attempt, id); err != nil {
		return fmt.Errorf("failed to record attempt for job %s: %w", id, err)
	}
	return nil
}

// Transition moves the job between states with compare-and-set
// semantics.
func (s *JobStore) Transition(ctx context.Context, id uuid.UUID, from, to domain.JobState) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, from, to)
	}

	query := `
		UPDATE generation_jobs
		SET state = $1,
		    completed_at = CASE WHEN $1 IN ('completed', 'failed', 'cancelled') THEN $2 ELSE completed_at END
		WHERE id = $3 AND state = $4
	`

	return s.casExec(ctx, id, query, to, time.Now().UTC(), id, from)
}

// Complete finishes an active job and records the result cache key.
func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, resultKey string) error {
	query := `
		UPDATE generation_jobs
		SET state = 'completed', result_key = $1, percent = 100, completed_at = $2
		WHERE id = $3 AND state = 'active'
	`
	return s.casExec(ctx, id, query, resultKey, time.Now().UTC(), id)
}

// Fail terminates an active or cancelling job with its last error.
func (s *JobStore) Fail(ctx context.Context, id uuid.UUID, errorKind, message string) error {
	query := `
		UPDATE generation_jobs
		SET state = 'failed', error_kind = $1, error_message = $2, completed_at = $3
		WHERE id = $4 AND state IN ('active', 'cancelling')
	`
	return s.casExec(ctx, id, query, errorKind, message, time.Now().UTC(), id)
}

// ReclaimStale returns crashed workers' jobs to the queue. Active jobs
// whose heartbeat lapsed go back to queued (the pipeline restarts from
// stage one); stale cancelling jobs resolve directly to cancelled since
// no worker remains to observe the request.
func (s *JobStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContext(ctx)
	cutoff := time.Now().UTC().Add(-olderThan)

	requeue := `
		UPDATE generation_jobs
		SET state = 'queued', worker_id = NULL, heartbeat_at = NULL, stage = 'script'
		WHERE state = 'active' AND heartbeat_at < $1
	`
	result, err := s.db.ExecContext(ctx, requeue, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}
	requeued, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reclaimed jobs: %w", err)
	}

	cancel := `
		UPDATE generation_jobs
		SET state = 'cancelled', worker_id = NULL, completed_at = $1
		WHERE state = 'cancelling' AND heartbeat_at < $2
	`
	if _, err := s.db.ExecContext(ctx, cancel, time.Now().UTC(), cutoff); err != nil {
		return int(requeued), fmt.Errorf("failed to resolve stale cancelling jobs: %w", err)
	}

	if requeued > 0 {
		log.Info("reclaimed stale jobs", "count", requeued)
	}
	return int(requeued), nil
}

func (s *JobStore) casExec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition job %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition of job %s: %w", id, err)
	}
	if rows == 0 {
		// Distinguish a missing job from a CAS rejection.
		if _, getErr := s.GetByID(ctx, id); errors.Is(getErr, store.ErrJobNotFound) {
			return store.ErrJobNotFound
		}
		return store.ErrInvalidTransition
	}
	return nil
}

func (s *JobStore) getNonTerminalByContentKey(ctx context.Context, contentKey string) (*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE content_key = $1 AND state IN ('queued', 'active', 'cancelling')
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, contentKey))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *JobStore) scanOne(row rowScanner) (*domain.Job, error) {
	var (
		job          domain.Job
		optionsJSON  []byte
		attemptsJSON []byte
		resultKey    sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		workerID     sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		heartbeatAt  sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.LessonID, &job.UserID, &job.ContentKey, &optionsJSON,
		&job.State, &job.Percent, &job.Stage,
		&attemptsJSON, &resultKey, &errorKind, &errorMessage, &workerID,
		&job.CreatedAt, &startedAt, &completedAt, &heartbeatAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to scan job row: %w", err)
	}

	if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job options: %w", err)
	}
	if len(attemptsJSON) > 0 {
		if err := json.Unmarshal(attemptsJSON, &job.Attempts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job attempts: %w", err)
		}
	}

	job.ResultKey = resultKey.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	job.WorkerID = workerID.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if heartbeatAt.Valid {
		t := heartbeatAt.Time
		job.HeartbeatAt = &t
	}

	return &job, nil
}
