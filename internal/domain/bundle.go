package domain

import (
	"time"

	"github.com/google/uuid"
)

// SlideScript is the generated script for a single slide.
type SlideScript struct {
	Index        int    `json:"index"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	SpeakerNotes string `json:"speaker_notes,omitempty"`
}

// LessonScript is the output of the script stage: one ordered script
// per slide.
type LessonScript struct {
	Slides []SlideScript `json:"slides"`
}

// SlideVisual is the generated imagery for a single slide.
type SlideVisual struct {
	Index    int    `json:"index"`
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text,omitempty"`
}

// NarrationSegment is the generated narration audio for a single slide.
type NarrationSegment struct {
	Index      int    `json:"index"`
	AudioURL   string `json:"audio_url"`
	DurationMS int    `json:"duration_ms"`
}

// CompositionArtifact is the final composed lesson video.
type CompositionArtifact struct {
	VideoURL   string `json:"video_url"`
	DurationMS int    `json:"duration_ms"`
}

// ArtifactBundle is the complete output of one generation job: the
// script, per-slide visuals and narration in stable slide order, and the
// final composition. Bundles are written to the result cache on job
// completion and retrieved by key afterwards.
type ArtifactBundle struct {
	JobID       uuid.UUID           `json:"job_id"`
	LessonID    uuid.UUID           `json:"lesson_id"`
	ContentKey  string              `json:"content_key"`
	Script      LessonScript        `json:"script"`
	Visuals     []SlideVisual       `json:"visuals"`
	Narration   []NarrationSegment  `json:"narration"`
	Composition CompositionArtifact `json:"composition"`
	GeneratedAt time.Time           `json:"generated_at"`
}
