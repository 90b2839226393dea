package media

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, testLogger())
	require.NoError(t, err)
	return c
}

func TestGenerateVisualRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/visuals", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req generation.VisualRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.SlideIndex)

		_ = json.NewEncoder(w).Encode(domain.SlideVisual{ImageURL: "https://cdn/img.png"})
	})

	out, err := c.GenerateVisual(context.Background(), generation.VisualRequest{
		LessonID:   uuid.New(),
		SlideIndex: 2,
		Script:     domain.SlideScript{Index: 2, Body: "body"},
		Style:      "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/img.png", out.ImageURL)
	assert.Equal(t, 2, out.Index, "index follows the request, not the response")
}

func TestServerErrorsAreTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GenerateNarration(context.Background(), generation.NarrationRequest{SlideIndex: 0})
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
}

func TestRateLimitIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Compose(context.Background(), generation.ComposeRequest{})
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
}

func TestClientErrorsArePermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := c.GenerateVisual(context.Background(), generation.VisualRequest{})
	require.Error(t, err)
	assert.False(t, generation.IsTransient(err))
}

func TestMalformedResponseIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := c.GenerateVisual(context.Background(), generation.VisualRequest{})
	require.Error(t, err)
	assert.False(t, generation.IsTransient(err))
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}
