package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of pipeline event.
type Type string

// Event types delivered to subscribers.
const (
	// TypeSnapshot is the latest known progress, replayed to every new
	// subscriber so a late joiner sees current state immediately.
	TypeSnapshot Type = "snapshot"

	// TypeProgress is an incremental progress update, emitted at most
	// once per unit completion.
	TypeProgress Type = "progress"

	// TypeCompleted announces a finished job and names the result key.
	TypeCompleted Type = "completed"

	// TypeFailed announces a terminally failed (or cancelled) job.
	TypeFailed Type = "failed"
)

// Event is one pipeline notification. Progress carries percent and
// stage; completion carries the result key; failure carries the error
// kind and a safe, human-readable message.
type Event struct {
	Type    Type      `json:"type"`
	JobID   uuid.UUID `json:"job_id"`
	Percent int       `json:"percent"`
	Stage   string    `json:"stage,omitempty"`

	ResultKey string `json:"result_key,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`

	At time.Time `json:"at"`
}

// JobTopic names the per-job subscription topic.
func JobTopic(jobID uuid.UUID) string {
	return "job:" + jobID.String()
}

// ContentTopic names the cross-job topic for a content identity, letting
// observers follow every generation of the same lesson content.
func ContentTopic(contentKey string) string {
	return "content:" + contentKey
}

// Publisher fans events out to whoever is listening on the given topics.
// Publishing must never block job execution.
type Publisher interface {
	Publish(ctx context.Context, topics []string, event Event)
}

// NopPublisher discards all events. Useful for tests and for running the
// pipeline without a notification layer.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, []string, Event) {}
