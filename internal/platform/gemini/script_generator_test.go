package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateScriptEnforcesSlideContract(t *testing.T) {
	script := &domain.LessonScript{Slides: []domain.SlideScript{
		{Index: 7, Title: "Intro", Body: "Welcome"},
		{Index: 9, Title: "Close", Body: "Recap"},
	}}

	require.NoError(t, validateScript(script, 2))

	// Indices are normalized to slide position regardless of what the
	// model returned.
	assert.Equal(t, 0, script.Slides[0].Index)
	assert.Equal(t, 1, script.Slides[1].Index)

	err := validateScript(script, 3)
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)

	empty := &domain.LessonScript{Slides: []domain.SlideScript{{Body: "  "}}}
	err = validateScript(empty, 1)
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}

func TestClassifyAPIError(t *testing.T) {
	const op = "script.generate"

	assert.True(t, generation.IsTransient(classifyAPIError(op, context.DeadlineExceeded)))
	assert.False(t, generation.IsTransient(classifyAPIError(op, context.Canceled)))

	// Unclassified transport errors get one more try.
	assert.True(t, generation.IsTransient(classifyAPIError(op, errors.New("connection reset"))))
}

func TestGenerateScriptRejectsBadSlideCount(t *testing.T) {
	g := &ScriptGenerator{logger: testLogger(), model: "gemini-2.0-flash"}

	_, err := g.GenerateScript(context.Background(), generation.ScriptRequest{
		LessonID:   uuid.New(),
		SlideCount: 0,
	})
	require.Error(t, err)
	assert.False(t, generation.IsTransient(err))
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
