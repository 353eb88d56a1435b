package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("settings loaded")
	assert.Contains(t, buf.String(), "settings loaded")
}

func TestNewDefaultWriter(t *testing.T) {
	assert.NotNil(t, New(nil, "info"))
	assert.NotNil(t, NewStyled(nil, "info", StyleJSON))
}

func TestNewStyled_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := NewStyled(&buf, "debug", StyleJSON).Sub("store")

	log.Debug().Str("key", "enso-settings").Msg("write scheduled")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "store", line["subsystem"])
	assert.Equal(t, "enso-settings", line["key"])
	assert.Equal(t, "debug", line["level"])
}

func TestSub(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	sub := log.Sub("migrate")
	require.NotNil(t, sub)

	sub.Info().Msg("legacy keys found")
	output := buf.String()
	assert.Contains(t, output, "legacy keys found")
	assert.Contains(t, output, "migrate")
}

func TestSubChain(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	sub2 := log.Sub("gateway").Sub("client")

	sub2.Info().Msg("connected")
	output := buf.String()
	assert.Contains(t, output, "connected")
	assert.Contains(t, output, "client")
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String(), "debug and info should be filtered at warn level")

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")

	buf.Reset()
	log.Error().Msg("error msg")
	assert.Contains(t, buf.String(), "error msg")
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "error")
	verbose := log.WithLevel("debug")

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	verbose.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, "debug", verbose.Level())
	assert.Equal(t, "error", log.Level())
}

func TestLevel_Silent(t *testing.T) {
	assert.Equal(t, "silent", New(nil, "silent").Level())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel}, // case-sensitive, defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("warn"))
	assert.True(t, ValidLevel("silent"))
	assert.False(t, ValidLevel("verbose"))
	assert.False(t, ValidLevel(""))
}

func TestSilentLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")

	log.Debug().Msg("should not appear")
	log.Info().Msg("should not appear")
	log.Warn().Msg("should not appear")
	log.Error().Msg("should not appear")

	assert.Empty(t, buf.String())
}
