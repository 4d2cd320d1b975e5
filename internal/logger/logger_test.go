package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	l := New(Options{Level: "info", Format: FormatJSON, Writer: &buf})
	l.With("host", "h.example").Info("fetched", "status", 200)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetched", entry["msg"])
	assert.Equal(t, "h.example", entry["host"])
	assert.InDelta(t, 200, entry["status"], 0)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	l := New(Options{Level: "warn", Writer: &buf})
	l.Info("hidden")
	assert.Empty(t, buf.String())

	child := l.With("k", "v")
	l.SetLevel("debug")
	child.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
