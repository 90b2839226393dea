package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a generation job.
type JobState string

// Possible job states.
const (
	JobStateQueued     JobState = "queued"
	JobStateActive     JobState = "active"
	JobStateCancelling JobState = "cancelling"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// Common validation errors for Job.
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyLessonID    = errors.New("job lesson ID cannot be empty")
	ErrEmptyJobUserID   = errors.New("job user ID cannot be empty")
	ErrEmptyContentKey  = errors.New("job content key cannot be empty")
	ErrPercentDecreased = errors.New("job progress percent cannot decrease")
)

// Job is one tracked request to produce a slide-deck bundle for a lesson.
// A job is created on submission, mutated only by the worker pool and the
// cancellation path, and immutable once terminal.
type Job struct {
	ID       uuid.UUID `json:"id"`
	LessonID uuid.UUID `json:"lesson_id"`
	UserID   uuid.UUID `json:"user_id"`

	// ContentKey identifies the content this job generates, derived from
	// the lesson ID and options. Non-terminal jobs are unique per key.
	ContentKey string            `json:"content_key"`
	Options    GenerationOptions `json:"options"`

	State   JobState `json:"state"`
	Percent int      `json:"percent"`
	Stage   Stage    `json:"stage"`

	// Attempts records the highest attempt number any unit of a stage
	// reached. Stages absent from the map succeeded without a retry.
	Attempts map[Stage]int `json:"attempts,omitempty"`

	// ResultKey is set when the job completes and names the cache entry
	// holding the finished bundle.
	ResultKey string `json:"result_key,omitempty"`

	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// WorkerID identifies the pool instance currently holding the job's
	// lease, if any.
	WorkerID string `json:"worker_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
}

// NewJob creates a queued Job for the given lesson, user and options.
// Options are normalized before the content key is derived.
func NewJob(lessonID, userID uuid.UUID, opts GenerationOptions) (*Job, error) {
	opts.Normalize()

	job := &Job{
		ID:         uuid.New(),
		LessonID:   lessonID,
		UserID:     userID,
		ContentKey: ContentKey(lessonID, opts),
		Options:    opts,
		State:      JobStateQueued,
		Stage:      StageScript,
		CreatedAt:  time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if j.LessonID == uuid.Nil {
		return ErrEmptyLessonID
	}
	if j.UserID == uuid.Nil {
		return ErrEmptyJobUserID
	}
	if j.ContentKey == "" {
		return ErrEmptyContentKey
	}
	if !IsValidJobState(j.State) {
		return ErrInvalidJobState
	}
	return nil
}

// IsTerminal reports whether the job has reached a terminal state.
// Terminal states are write-once: no further transition is allowed.
func (j *Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// TotalUnits returns the number of dispatchable units across all stages:
// one script, one visual and one narration segment per slide, and one
// composition.
func (j *Job) TotalUnits() int {
	return 1 + 2*j.Options.SlideCount + 1
}

// IsTerminal reports whether the state admits no further transitions.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a job in state s may move to next.
// The allowed transitions mirror the lifecycle: queued jobs are claimed
// or cancelled outright, active jobs finish, fail, or enter cancelling,
// and cancelling jobs resolve to cancelled (or failed, if the failure
// raced the cancellation request).
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateActive || next == JobStateCancelled
	case JobStateActive:
		return next == JobStateCompleted ||
			next == JobStateFailed ||
			next == JobStateCancelling ||
			next == JobStateQueued // lease reclaim after worker crash
	case JobStateCancelling:
		return next == JobStateCancelled || next == JobStateFailed
	default:
		return false
	}
}

// IsValidJobState checks if the given state is a known JobState.
func IsValidJobState(s JobState) bool {
	switch s {
	case JobStateQueued, JobStateActive, JobStateCancelling,
		JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}
