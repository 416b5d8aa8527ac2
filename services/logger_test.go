package services

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyHandler(t *testing.T) {
	t.Run("Writes Message And Attributes", func(t *testing.T) {
		buf := captureLogs(t, slog.LevelDebug)
		slog.Info("Stored dataset", "id", "abc", "rows", 3)
		out := buf.String()
		assert.Contains(t, out, "INFO: Stored dataset")
		assert.Contains(t, out, `"id": "abc"`)
		assert.Contains(t, out, `"rows": 3`)
	})

	t.Run("Filters Below Level", func(t *testing.T) {
		buf := captureLogs(t, slog.LevelWarn)
		slog.Info("quiet")
		slog.Debug("quieter")
		slog.Warn("loud")
		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "WARN: loud")
	})

	t.Run("Errors As Strings", func(t *testing.T) {
		buf := captureLogs(t, slog.LevelDebug)
		slog.Error("failed", "error", errors.New("boom"))
		assert.Contains(t, buf.String(), `"error": "boom"`)
	})

	t.Run("With Attrs And Group", func(t *testing.T) {
		buf := captureLogs(t, slog.LevelDebug)
		slog.Default().With("request_id", "r1").WithGroup("llm").Info("called", "tokens", 12)
		out := buf.String()
		assert.Contains(t, out, `"llm.tokens": 12`)
		assert.Contains(t, out, `"request_id": "r1"`)
		assert.Equal(t, 1, strings.Count(out, "called"))
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false, slog.LevelWarn).Info("dropped")
	NewLogger(&buf, false, slog.LevelWarn).Warn("kept", "rows", 3)
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	assert.Contains(t, buf.String(), `"rows":3`)
}
