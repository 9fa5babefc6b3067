package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name          string
		level         string
		expectedLevel zerolog.Level
	}{
		{name: "debug level", level: "debug", expectedLevel: zerolog.DebugLevel},
		{name: "info level", level: "info", expectedLevel: zerolog.InfoLevel},
		{name: "warn level", level: "warn", expectedLevel: zerolog.WarnLevel},
		{name: "uppercase level", level: "ERROR", expectedLevel: zerolog.ErrorLevel},
		{name: "invalid level defaults to info", level: "loud", expectedLevel: zerolog.InfoLevel},
		{name: "empty level defaults to info", level: "", expectedLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalLevel := zerolog.GlobalLevel()
			defer zerolog.SetGlobalLevel(originalLevel)

			var buf bytes.Buffer
			log := NewWithWriter(tt.level, &buf)
			assert.Equal(t, tt.expectedLevel, zerolog.GlobalLevel())
			assert.NotPanics(t, func() { log.Error().Msg("probe") })
		})
	}
}

func TestModule(t *testing.T) {
	var buf bytes.Buffer
	log := Logger{zerolog.New(&buf)}

	mod := log.Module("mint")
	mod.Warn().Str("reason", "expired").Msg("discarded solution")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "mint", entry["module"])
	assert.Equal(t, "expired", entry["reason"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		l := Nop()
		l.Info().Msg("dropped")
	})
}
