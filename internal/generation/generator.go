package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
)

// ScriptRequest carries the input for the script stage.
type ScriptRequest struct {
	LessonID   uuid.UUID
	SlideCount int
	Style      string
	Language   string
}

// VisualRequest carries the input for one visual unit: the script of the
// slide the image illustrates.
type VisualRequest struct {
	LessonID   uuid.UUID
	SlideIndex int
	Script     domain.SlideScript
	Style      string
}

// NarrationRequest carries the input for one narration unit.
type NarrationRequest struct {
	LessonID   uuid.UUID
	SlideIndex int
	Script     domain.SlideScript
	Voice      string
	Language   string
}

// ComposeRequest carries the fully materialized stage outputs for the
// final composition. Visuals and narration are in stable slide order.
type ComposeRequest struct {
	LessonID  uuid.UUID
	Script    domain.LessonScript
	Visuals   []domain.SlideVisual
	Narration []domain.NarrationSegment
}

// ScriptGenerator produces the per-slide lesson script.
type ScriptGenerator interface {
	// GenerateScript creates the lesson script. Failures are classified
	// ServiceErrors; the caller supplies retry policy and timeout via ctx.
	GenerateScript(ctx context.Context, req ScriptRequest) (*domain.LessonScript, error)
}

// VisualGenerator produces the imagery for a single slide.
type VisualGenerator interface {
	GenerateVisual(ctx context.Context, req VisualRequest) (*domain.SlideVisual, error)
}

// NarrationGenerator produces the narration audio for a single slide.
type NarrationGenerator interface {
	GenerateNarration(ctx context.Context, req NarrationRequest) (*domain.NarrationSegment, error)
}

// Composer assembles the final lesson video from the stage outputs.
type Composer interface {
	Compose(ctx context.Context, req ComposeRequest) (*domain.CompositionArtifact, error)
}

// Capabilities bundles the four external generation capabilities the
// pipeline consumes, one per stage.
type Capabilities struct {
	Script    ScriptGenerator
	Visuals   VisualGenerator
	Narration NarrationGenerator
	Composer  Composer
}
