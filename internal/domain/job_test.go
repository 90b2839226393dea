package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() GenerationOptions {
	return GenerationOptions{
		SlideCount: 5,
		Voice:      "nova",
	}
}

func TestNewJob(t *testing.T) {
	lessonID := uuid.New()
	userID := uuid.New()

	job, err := NewJob(lessonID, userID, validOptions())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, lessonID, job.LessonID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, JobStateQueued, job.State)
	assert.Equal(t, StageScript, job.Stage)
	assert.Equal(t, 0, job.Percent)
	assert.NotEmpty(t, job.ContentKey)
	assert.False(t, job.CreatedAt.IsZero())

	// Optional fields are defaulted before the content key is derived.
	assert.Equal(t, "standard", job.Options.Style)
	assert.Equal(t, "en", job.Options.Language)
}

func TestNewJobValidation(t *testing.T) {
	_, err := NewJob(uuid.Nil, uuid.New(), validOptions())
	assert.ErrorIs(t, err, ErrEmptyLessonID)

	_, err = NewJob(uuid.New(), uuid.Nil, validOptions())
	assert.ErrorIs(t, err, ErrEmptyJobUserID)
}

func TestTotalUnits(t *testing.T) {
	job, err := NewJob(uuid.New(), uuid.New(), GenerationOptions{SlideCount: 5, Voice: "nova"})
	require.NoError(t, err)

	// 1 script + 5 visuals + 5 narration segments + 1 composition.
	assert.Equal(t, 12, job.TotalUnits())
}

func TestContentKeyStability(t *testing.T) {
	lessonID := uuid.New()

	a := GenerationOptions{SlideCount: 5, Voice: "Nova", Style: "standard", Language: "en"}
	b := GenerationOptions{SlideCount: 5, Voice: "nova", Style: "standard", Language: "en"}

	// Case differences in the voice name do not change the identity.
	assert.Equal(t, ContentKey(lessonID, a), ContentKey(lessonID, b))

	// Different slide counts are different content.
	c := GenerationOptions{SlideCount: 6, Voice: "nova", Style: "standard", Language: "en"}
	assert.NotEqual(t, ContentKey(lessonID, a), ContentKey(lessonID, c))

	// Same options for another lesson are different content.
	assert.NotEqual(t, ContentKey(lessonID, a), ContentKey(uuid.New(), a))
}

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobState
		to      JobState
		allowed bool
	}{
		{"queued to active", JobStateQueued, JobStateActive, true},
		{"queued to cancelled", JobStateQueued, JobStateCancelled, true},
		{"queued to completed", JobStateQueued, JobStateCompleted, false},
		{"active to completed", JobStateActive, JobStateCompleted, true},
		{"active to failed", JobStateActive, JobStateFailed, true},
		{"active to cancelling", JobStateActive, JobStateCancelling, true},
		{"active to queued (reclaim)", JobStateActive, JobStateQueued, true},
		{"cancelling to cancelled", JobStateCancelling, JobStateCancelled, true},
		{"cancelling to failed", JobStateCancelling, JobStateFailed, true},
		{"cancelling to completed", JobStateCancelling, JobStateCompleted, false},
		{"completed is terminal", JobStateCompleted, JobStateQueued, false},
		{"failed is terminal", JobStateFailed, JobStateActive, false},
		{"cancelled is terminal", JobStateCancelled, JobStateActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, JobStateCompleted.IsTerminal())
	assert.True(t, JobStateFailed.IsTerminal())
	assert.True(t, JobStateCancelled.IsTerminal())
	assert.False(t, JobStateQueued.IsTerminal())
	assert.False(t, JobStateActive.IsTerminal())
	assert.False(t, JobStateCancelling.IsTerminal())
}

func TestStageOrder(t *testing.T) {
	require.Len(t, StageOrder, 4)
	assert.Equal(t, StageScript, StageOrder[0])
	assert.Equal(t, StageComposition, StageOrder[3])

	for _, s := range StageOrder {
		assert.True(t, IsValidStage(s))
	}
	assert.False(t, IsValidStage(Stage("rendering")))
}
