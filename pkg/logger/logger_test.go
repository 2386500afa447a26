package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggers_SplitsOutput(t *testing.T) {
	var out, errOut bytes.Buffer

	loggers, err := newLoggers("info", &out, &errOut)
	require.NoError(t, err)

	loggers.InfoLogger.Info("advert created", "id", "abc")
	loggers.ErrorLogger.Error("store unavailable")

	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "advert created", record["msg"])
	assert.Equal(t, "abc", record["id"])

	assert.Contains(t, errOut.String(), "store unavailable")
	assert.NotContains(t, out.String(), "store unavailable")
}

func TestNewLoggers_LevelFiltersDebug(t *testing.T) {
	var out bytes.Buffer

	loggers, err := newLoggers("info", &out, &out)
	require.NoError(t, err)

	loggers.DebugLogger.Debug("hidden")
	assert.Empty(t, out.String())
}

func TestSetupLogger_UnknownLevel(t *testing.T) {
	_, err := SetupLogger("loud")
	assert.Error(t, err)
}
