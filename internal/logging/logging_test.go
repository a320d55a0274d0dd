package logging

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
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("plansync-mcp", &buf, JSON, "warn")

	logger.Info().Msg("dropped")
	logger.Warn().Str("team", "core").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "plansync-mcp", line["app"])
	assert.Equal(t, "core", line["team"])
	assert.Equal(t, "kept", line["message"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New("plansync", &buf, Console, "info")
	logger.Info().Msg("pulled")
	assert.Contains(t, buf.String(), "pulled")
	assert.Contains(t, buf.String(), "plansync")
}
