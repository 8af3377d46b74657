package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Level: "debug", Format: FormatJSON, Out: &buf})
	require.NoError(t, err)

	cl := Component(logger, "driver")
	cl.Debug().Str("mode", "weather").Msg("render")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "driver", entry["component"])
	assert.Equal(t, "weather", entry["mode"])
	assert.Equal(t, "render", entry["message"])
}

func TestSetupLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Level: "WARN", Format: FormatJSON, Out: &buf})
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestSetupUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Level: "chatty", Out: &buf})
	require.Error(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestSetupConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Out: &buf})
	require.NoError(t, err)

	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not JSON")
}
