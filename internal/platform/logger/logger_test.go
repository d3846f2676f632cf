package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{name: "debug level", logLevel: "debug"},
		{name: "info level", logLevel: "info"},
		{name: "warn level", logLevel: "warn"},
		{name: "error level", logLevel: "error"},
		{name: "mixed case", logLevel: "INFO"},
		{name: "invalid level falls back to info", logLevel: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Setup(tt.logLevel)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestFromContextOrDefault(t *testing.T) {
	defaultLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("returns logger from context", func(t *testing.T) {
		ctxLogger := slog.New(slog.NewTextHandler(io.Discard, nil)).With("scope", "ctx")
		ctx := WithLogger(context.Background(), ctxLogger)

		assert.Same(t, ctxLogger, FromContextOrDefault(ctx, defaultLogger))
	})

	t.Run("falls back to default", func(t *testing.T) {
		assert.Same(t, defaultLogger, FromContextOrDefault(context.Background(), defaultLogger))
	})

	t.Run("nil default falls back to slog default", func(t *testing.T) {
		assert.NotNil(t, FromContextOrDefault(context.Background(), nil))
	})
}
