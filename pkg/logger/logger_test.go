package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestForComponentTagsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ForComponent(NewFromZap(zap.New(core)), "resolver")

	l.With("tile", "10/512/341@256").Warn("tile fetch failed", "attempts", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, map[string]any{
		"component": "resolver",
		"tile":      "10/512/341@256",
		"attempts":  int64(3),
	}, entries[0].ContextMap())
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("request")
	assert.Equal(t, 1, logs.Len())

	// Without a logger the fallback swallows everything.
	nop := FromContext(context.Background())
	nop.With("k", "v").Error("dropped")
	assert.Equal(t, 1, logs.Len())
}

func TestToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, toZapLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, toZapLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel("loud"))
}
