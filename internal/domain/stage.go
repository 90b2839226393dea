package domain

// Stage identifies one ordered phase of the generation pipeline.
type Stage string

// Pipeline stages, in execution order.
const (
	StageScript      Stage = "script"
	StageVisuals     Stage = "visuals"
	StageNarration   Stage = "narration"
	StageComposition Stage = "composition"
)

// StageOrder lists the pipeline stages in the order they execute.
// Stage N's outputs are fully materialized before stage N+1 begins.
var StageOrder = []Stage{
	StageScript,
	StageVisuals,
	StageNarration,
	StageComposition,
}

// IsValidStage reports whether the given stage is a known pipeline stage.
func IsValidStage(s Stage) bool {
	switch s {
	case StageScript, StageVisuals, StageNarration, StageComposition:
		return true
	default:
		return false
	}
}
