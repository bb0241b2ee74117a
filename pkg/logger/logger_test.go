package logger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/mailroom/mailroom/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return the logger stored in the context", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(&logger.Config{Level: "debug", Output: &buf})
		ctx := logger.ContextWithLogger(context.Background(), log)
		logger.FromContext(ctx).Info("hello", "k", "v")
		assert.Contains(t, buf.String(), "hello")
		assert.Contains(t, buf.String(), "k=v")
	})
	t.Run("Should fall back to a usable logger when the context is empty", func(t *testing.T) {
		log := logger.FromContext(context.Background())
		assert.NotNil(t, log)
	})
}

func TestNew(t *testing.T) {
	t.Run("Should respect the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(&logger.Config{Level: "warn", Output: &buf})
		log.Info("ignored")
		log.Warn("kept")
		assert.NotContains(t, buf.String(), "ignored")
		assert.Contains(t, buf.String(), "kept")
	})
	t.Run("Should emit JSON when configured", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(&logger.Config{Level: "info", Output: &buf, JSON: true})
		log.Info("structured", "key", "value")
		assert.Contains(t, buf.String(), `"key":"value"`)
	})
}
