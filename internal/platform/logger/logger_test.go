package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execledger/internal/platform/config"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.Log{Format: "json", Level: "info"})
	log.Info("policy created", "policy_id", "0")
	log.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "policy created", line["msg"])
	assert.Equal(t, "0", line["policy_id"])
	assert.Equal(t, "execledger", line["service"])
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.Log{Format: "TEXT", Level: "debug"})
	log.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
