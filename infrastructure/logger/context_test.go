package logger_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	return l
}

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	t.Parallel()

	base := newTestLogger(t)
	enriched := base.With(logger.String("request_id", "abc-123"))

	ctx := logger.WithContext(context.Background(), enriched)

	assert.Same(t, enriched, logger.FromContext(ctx))
	assert.NotSame(t, base, logger.FromContext(ctx))
}

func TestFromContext_LaterLoggerWins(t *testing.T) {
	t.Parallel()

	first := newTestLogger(t)
	second := newTestLogger(t)

	ctx := logger.WithContext(context.Background(), first)
	ctx = logger.WithContext(ctx, second)

	assert.Same(t, second, logger.FromContext(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	a := logger.FromContext(context.Background())
	require.NotNil(t, a)
	assert.Same(t, logger.Default(), a)
	a.Warn("fallback warn", logger.String("key", "value"))

	installed := newTestLogger(t)
	logger.SetDefault(installed)
	t.Cleanup(func() { logger.SetDefault(a) })

	assert.Same(t, installed, logger.FromContext(context.Background()))

	logger.SetDefault(nil)
	assert.Same(t, installed, logger.Default())
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "chatty", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	l.Debug("dropped")
	l.Info("kept")
}
