package generation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceErrorClassification(t *testing.T) {
	base := errors.New("connection reset")

	transient := NewTransientError("visuals.generate", base)
	assert.True(t, IsTransient(transient))
	assert.ErrorIs(t, transient, base)
	assert.Contains(t, transient.Error(), "visuals.generate")
	assert.Contains(t, transient.Error(), "transient")

	permanent := NewPermanentError("script.generate", ErrContentBlocked)
	assert.False(t, IsTransient(permanent))
	assert.ErrorIs(t, permanent, ErrContentBlocked)
}

func TestIsTransientWrapped(t *testing.T) {
	// Classification survives further wrapping up the call chain.
	err := fmt.Errorf("stage visuals unit 2: %w",
		NewTransientError("visuals.generate", errors.New("timeout")))
	assert.True(t, IsTransient(err))
}

func TestIsTransientUnclassified(t *testing.T) {
	// Unknown failure modes never loop through the retry budget.
	assert.False(t, IsTransient(errors.New("something odd")))
	assert.False(t, IsTransient(nil))
}
