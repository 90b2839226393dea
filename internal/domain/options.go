package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerationOptions is the closed, validated set of options accepted on
// submission. Unknown fields are rejected at the API boundary; invalid
// values are rejected here before a job is ever created.
type GenerationOptions struct {
	// SlideCount is the number of slides to generate. Each slide yields
	// one visual unit and one narration unit.
	SlideCount int `json:"slide_count" validate:"required,min=1,max=50"`

	// Voice selects the narration voice.
	Voice string `json:"voice" validate:"required,max=64"`

	// Style selects the visual style for slide imagery.
	Style string `json:"style" validate:"omitempty,oneof=standard minimal illustrated"`

	// Language is a two-letter ISO 639-1 code for script and narration.
	Language string `json:"language" validate:"omitempty,len=2,lowercase"`
}

// Normalize fills defaults for optional fields.
func (o *GenerationOptions) Normalize() {
	if o.Style == "" {
		o.Style = "standard"
	}
	if o.Language == "" {
		o.Language = "en"
	}
}

// canonical returns a stable string form of the options, independent of
// JSON field ordering, suitable for hashing.
func (o GenerationOptions) canonical() string {
	return fmt.Sprintf("slides=%d|voice=%s|style=%s|lang=%s",
		o.SlideCount,
		strings.ToLower(o.Voice),
		strings.ToLower(o.Style),
		strings.ToLower(o.Language),
	)
}

// ContentKey derives the content identity for a lesson and option set.
// Jobs are deduplicated on this key while non-terminal, and the result
// cache alias ("latest for this content") is keyed by it alone, without
// the requesting user.
func ContentKey(lessonID uuid.UUID, opts GenerationOptions) string {
	sum := sha256.Sum256([]byte(lessonID.String() + "|" + opts.canonical()))
	return hex.EncodeToString(sum[:16])
}
