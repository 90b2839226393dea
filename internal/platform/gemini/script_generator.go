package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/generation"
	"google.golang.org/genai"
)

const scriptPromptTemplate = `You are writing the script for an educational slide deck.
Produce exactly %d slides for lesson %s in language %q, presentation style %q.
Respond with JSON only, in the shape:
{"slides":[{"index":0,"title":"...","body":"...","speaker_notes":"..."}]}`

// ScriptGenerator implements generation.ScriptGenerator on Google's
// Gemini API. It classifies every failure as transient or permanent so
// the pipeline can apply its retry policy without knowing API details.
type ScriptGenerator struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewScriptGenerator creates a Gemini-backed script generator.
func NewScriptGenerator(ctx context.Context, logger *slog.Logger, cfg config.GenerationConfig) (*ScriptGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &ScriptGenerator{
		logger: logger.With("component", "gemini_script_generator"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// GenerateScript produces the per-slide lesson script in one model
// call. Retries and timeouts belong to the caller; this adapter only
// classifies failures.
func (g *ScriptGenerator) GenerateScript(ctx context.Context, req generation.ScriptRequest) (*domain.LessonScript, error) {
	const op = "script.generate"

	if req.SlideCount < 1 {
		return nil, generation.NewPermanentError(op,
			fmt.Errorf("%w: slide count must be positive", generation.ErrInvalidConfig))
	}

	prompt := fmt.Sprintf(scriptPromptTemplate, req.SlideCount, req.LessonID, req.Language, req.Style)

	g.logger.DebugContext(ctx, "calling gemini for lesson script",
		"lesson_id", req.LessonID, "slide_count", req.SlideCount, "model", g.model)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, classifyAPIError(op, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, generation.NewPermanentError(op,
			fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse))
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, generation.NewPermanentError(op, generation.ErrContentBlocked)
	}

	var script domain.LessonScript
	if err := json.Unmarshal([]byte(resp.Text()), &script); err != nil {
		return nil, generation.NewPermanentError(op,
			fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err))
	}

	if err := validateScript(&script, req.SlideCount); err != nil {
		return nil, generation.NewPermanentError(op, err)
	}

	g.logger.DebugContext(ctx, "lesson script generated",
		"lesson_id", req.LessonID, "slides", len(script.Slides))
	return &script, nil
}

// validateScript checks the model honored the slide contract and
// normalizes slide indices to their position.
func validateScript(script *domain.LessonScript, want int) error {
	if len(script.Slides) != want {
		return fmt.Errorf("%w: expected %d slides, got %d",
			generation.ErrInvalidResponse, want, len(script.Slides))
	}
	for i := range script.Slides {
		if strings.TrimSpace(script.Slides[i].Body) == "" {
			return fmt.Errorf("%w: slide %d has empty body", generation.ErrInvalidResponse, i)
		}
		script.Slides[i].Index = i
	}
	return nil
}

// classifyAPIError maps a Gemini transport failure onto the service
// error taxonomy. Rate limits and server-side failures are retriable;
// everything else is permanent.
func classifyAPIError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429, apiErr.Code >= 500:
			return generation.NewTransientError(op, err)
		default:
			return generation.NewPermanentError(op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return generation.NewTransientError(op, err)
	}
	if errors.Is(err, context.Canceled) {
		return generation.NewPermanentError(op, err)
	}
	// Network-level failures with no API status are worth one more try.
	return generation.NewTransientError(op, err)
}
