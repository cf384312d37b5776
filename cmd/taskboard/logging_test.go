// ABOUTME: Tests for the server's log handler setup
// ABOUTME: Covers level parsing, JSON output and the color handler's attribute handling

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/taskboard/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "component", "store")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "store", line["component"])
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug"}, &buf)

	logger.With("component", "tracker").WithGroup("task").Debug("task created", "id", "t1")
	out := buf.String()
	assert.Contains(t, out, "DBG task created")
	assert.Contains(t, out, " component=tracker")
	assert.Contains(t, out, " task.id=t1")

	buf.Reset()
	logger.Error("boom", slog.Group("req", "path", "/x"))
	assert.Contains(t, buf.String(), "ERR boom")
	assert.Contains(t, buf.String(), " req.path=/x")
}
