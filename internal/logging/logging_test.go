package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"", "json", "JSON", "console"} {
		logger, err := New(Config{Level: "info", Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, logger)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")

	_, err = New(Config{Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestSlog_RespectsLevel(t *testing.T) {
	logger, err := New(Config{Level: "warn", Format: "json"})
	require.NoError(t, err)

	sl := Slog(logger)
	ctx := context.Background()
	assert.False(t, sl.Enabled(ctx, slog.LevelInfo))
	assert.True(t, sl.Enabled(ctx, slog.LevelWarn))
	assert.True(t, sl.Enabled(ctx, slog.LevelError))
}

func TestSlog_ForwardsAttributesAndServiceField(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger, err := New(Config{Level: "debug", Format: "json"},
		zap.WrapCore(func(zapcore.Core) zapcore.Core { return obsCore }))
	require.NoError(t, err)

	Slog(logger).Info("vault updated", "label", "OPENAI_API_KEY", "count", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "vault updated", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "artsengine", fields["service"])
	assert.Equal(t, "OPENAI_API_KEY", fields["label"])
	assert.EqualValues(t, 2, fields["count"])
}
