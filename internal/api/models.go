package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
)

// SubmitGenerationRequest is the request body for submitting a
// generation job.
type SubmitGenerationRequest struct {
	LessonID uuid.UUID                `json:"lesson_id" validate:"required"`
	UserID   uuid.UUID                `json:"user_id"   validate:"required"`
	Options  domain.GenerationOptions `json:"options"`
}

// JobResponse is the wire shape of a generation job.
type JobResponse struct {
	ID         uuid.UUID      `json:"id"`
	LessonID   uuid.UUID      `json:"lesson_id"`
	State      string         `json:"state"`
	Percent    int            `json:"percent"`
	Stage      string         `json:"stage"`
	TotalUnits int            `json:"total_units"`
	Attempts   map[string]int `json:"attempts,omitempty"`
	ResultKey  string         `json:"result_key,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Message    string         `json:"message,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewJobResponse converts a domain job to its wire shape. The message
// is derived from the recorded error kind; the raw error text never
// leaves the job record.
func NewJobResponse(job *domain.Job) JobResponse {
	var attempts map[string]int
	if len(job.Attempts) > 0 {
		attempts = make(map[string]int, len(job.Attempts))
		for stage, n := range job.Attempts {
			attempts[string(stage)] = n
		}
	}

	var message string
	if job.ErrorKind != "" {
		message = domain.ErrorKindMessage(job.ErrorKind)
	}

	return JobResponse{
		ID:         job.ID,
		LessonID:   job.LessonID,
		State:      string(job.State),
		Percent:    job.Percent,
		Stage:      string(job.Stage),
		TotalUnits: job.TotalUnits(),
		Attempts:   attempts,
		ResultKey:  job.ResultKey,
		ErrorKind:  job.ErrorKind,
		Message:    message,
		CreatedAt:  job.CreatedAt,
	}
}
