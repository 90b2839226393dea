package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/generation"
)

// Client implements the visual, narration and composition capabilities
// against the media service's REST API. Every failure is classified
// transient or permanent; retry policy belongs to the pipeline.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a media service client. The HTTP client carries no
// timeout of its own; the pipeline's per-unit timeout governs each call.
func NewClient(baseURL string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: media service URL cannot be empty", generation.ErrInvalidConfig)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger.With("component", "media_client"),
	}, nil
}

// GenerateVisual renders the imagery for one slide.
func (c *Client) GenerateVisual(ctx context.Context, req generation.VisualRequest) (*domain.SlideVisual, error) {
	var out domain.SlideVisual
	if err := c.post(ctx, "visuals.generate", "/v1/visuals", req, &out); err != nil {
		return nil, err
	}
	out.Index = req.SlideIndex
	return &out, nil
}

// GenerateNarration synthesizes the narration audio for one slide.
func (c *Client) GenerateNarration(ctx context.Context, req generation.NarrationRequest) (*domain.NarrationSegment, error) {
	var out domain.NarrationSegment
	if err := c.post(ctx, "narration.generate", "/v1/narration", req, &out); err != nil {
		return nil, err
	}
	out.Index = req.SlideIndex
	return &out, nil
}

// Compose assembles the final lesson video from the stage outputs.
func (c *Client) Compose(ctx context.Context, req generation.ComposeRequest) (*domain.CompositionArtifact, error) {
	var out domain.CompositionArtifact
	if err := c.post(ctx, "composition.compose", "/v1/compositions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return generation.NewPermanentError(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return generation.NewPermanentError(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return generation.NewPermanentError(op, err)
		}
		// Timeouts and connection failures are worth retrying.
		return generation.NewTransientError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "media service call",
		"op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if err := classifyStatus(op, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return generation.NewPermanentError(op,
			fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err))
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the retry taxonomy: rate
// limits and server-side failures are transient, everything else in the
// error range is permanent.
func classifyStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests, status >= 500:
		return generation.NewTransientError(op,
			fmt.Errorf("%w: media service returned %d", generation.ErrGenerationFailed, status))
	default:
		return generation.NewPermanentError(op,
			fmt.Errorf("%w: media service returned %d", generation.ErrGenerationFailed, status))
	}
}
