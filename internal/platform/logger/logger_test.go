package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"invalid level falls back to info", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Setup(config.ServerConfig{LogLevel: tt.logLevel})
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestFromContextDefault(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotNil(t, log, "FromContext must never return nil")
}

func TestWithLoggerRoundTrip(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "test")
	ctx := WithLogger(context.Background(), custom)

	assert.Same(t, custom, FromContext(ctx))

	// The original context remains unchanged.
	assert.NotSame(t, custom, FromContext(context.Background()))
}
