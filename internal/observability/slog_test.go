package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewSlogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewSlogger(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("planning run", "browser", "chrome")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "planning run", line["msg"])
	assert.Equal(t, "chrome", line["browser"])
}

func TestNewSlogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewSlogger(&buf, "debug", "text")
	require.NoError(t, err)

	logger.Debug("decision", "verdict", "skip")
	assert.Contains(t, buf.String(), "verdict=skip")
}

func TestNewSlogger_UnknownFormat(t *testing.T) {
	_, err := NewSlogger(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
