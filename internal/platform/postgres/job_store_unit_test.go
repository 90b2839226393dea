package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests cover the store logic that runs before or after the
// database round trip; the SQL itself is exercised against a real
// database in integration environments.

func TestTransitionRejectsIllegalPairWithoutQuerying(t *testing.T) {
	// A nil handle proves the lifecycle check short-circuits before any
	// database access.
	s := NewJobStore(nil)

	err := s.Transition(context.Background(), uuid.New(), domain.JobStateCompleted, domain.JobStateQueued)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.Transition(context.Background(), uuid.New(), domain.JobStateQueued, domain.JobStateCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

// fakeRow feeds canned column values into scanOne.
type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch target := d.(type) {
		case *uuid.UUID:
			*target = r.values[i].(uuid.UUID)
		case *string:
			*target = r.values[i].(string)
		case *[]byte:
			*target = r.values[i].([]byte)
		case *int:
			*target = r.values[i].(int)
		case *domain.JobState:
			*target = r.values[i].(domain.JobState)
		case *domain.Stage:
			*target = r.values[i].(domain.Stage)
		case *sql.NullString:
			*target = r.values[i].(sql.NullString)
		case *sql.NullTime:
			*target = r.values[i].(sql.NullTime)
		case *time.Time:
			*target = r.values[i].(time.Time)
		default:
			panic("unexpected scan destination")
		}
	}
	return nil
}

func TestScanOneMapsNoRowsToNotFound(t *testing.T) {
	s := NewJobStore(nil)

	_, err := s.scanOne(&fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestScanOnePopulatesJob(t *testing.T) {
	s := NewJobStore(nil)

	opts := domain.GenerationOptions{SlideCount: 3, Voice: "nova", Style: "standard", Language: "en"}
	optsJSON, err := json.Marshal(opts)
	require.NoError(t, err)

	id := uuid.New()
	lessonID := uuid.New()
	userID := uuid.New()
	created := time.Now().UTC().Truncate(time.Second)
	started := created.Add(time.Second)

	row := &fakeRow{values: []any{
		id, lessonID, userID, "contentkey", optsJSON,
		domain.JobStateActive, 35, domain.StageVisuals,
		[]byte(`{"visuals": 2}`),
		sql.NullString{}, sql.NullString{}, sql.NullString{},
		sql.NullString{String: "worker-1", Valid: true},
		created,
		sql.NullTime{Time: started, Valid: true},
		sql.NullTime{},
		sql.NullTime{Time: started, Valid: true},
	}}

	job, err := s.scanOne(row)
	require.NoError(t, err)

	assert.Equal(t, id, job.ID)
	assert.Equal(t, lessonID, job.LessonID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, domain.JobStateActive, job.State)
	assert.Equal(t, 35, job.Percent)
	assert.Equal(t, domain.StageVisuals, job.Stage)
	assert.Equal(t, opts, job.Options)
	assert.Equal(t, map[domain.Stage]int{domain.StageVisuals: 2}, job.Attempts)
	assert.Equal(t, "worker-1", job.WorkerID)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, started, *job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}
