package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestInitLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := InitLogger(&Config{Level: "debug", Format: "json", Output: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	reqLog := ForRequest(ForComponent(log, "executor"), "req-1", "GET", "http://example.com")
	reqLog.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sqlhttp", entry["app"])
	assert.Equal(t, "executor", entry["component"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "hello", entry["message"])
}

func TestForSession(t *testing.T) {
	var buf bytes.Buffer
	log := InitLogger(&Config{Level: "info", Format: "json", WithCaller: true, Output: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	sessLog := ForSession(log, "sess-1")
	sessLog.Warn().Msg("skipped")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "caller")
}
