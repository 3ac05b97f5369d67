package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagworks/tagworks-api/internal/config"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		configured string
		want       slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo}, // invalid falls back to info
	}

	for _, tc := range tests {
		t.Run(tc.configured, func(t *testing.T) {
			log, err := Setup(config.ServerConfig{Port: 8080, LogLevel: tc.configured})
			require.NoError(t, err)
			require.NotNil(t, log)

			assert.True(t, log.Enabled(context.Background(), tc.want))
			if tc.want > slog.LevelDebug {
				assert.False(t, log.Enabled(context.Background(), tc.want-4))
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()

	// Without an attached logger the default is returned.
	assert.Equal(t, slog.Default(), FromContext(ctx))

	attached := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx = WithLogger(ctx, attached)
	assert.Same(t, attached, FromContext(ctx))
}

func TestFromContextOrDefault(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(os.Stderr, nil))

	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	assert.Equal(t, slog.Default(), FromContextOrDefault(context.Background(), nil))

	attached := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := WithLogger(context.Background(), attached)
	assert.Same(t, attached, FromContextOrDefault(ctx, fallback))
}
