package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionHandlerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(newHandler("production", &buf))
	logger.Info("gateway connected", slog.String("endpoint", "ws://gateway.test/wx"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "gateway connected", record["msg"])
	assert.Equal(t, "ws://gateway.test/wx", record["endpoint"])
}

func TestProductionHandlerDropsDebug(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(newHandler("production", &buf))
	logger.Debug("contact sync page", slog.Int("records", 12))

	assert.Zero(t, buf.Len())
}

func TestDevelopmentHandlerKeepsDebugAsText(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(newHandler("development", &buf))
	logger.Debug("contact sync page", slog.Int("records", 12))

	out := buf.String()
	assert.Contains(t, out, "contact sync page")
	assert.Contains(t, out, "records=12")
	assert.False(t, strings.HasPrefix(out, "{"), "development output should be text, not JSON")
}

func TestUnknownEnvFallsBackToDevelopment(t *testing.T) {
	for _, env := range []string{"", "staging"} {
		var buf bytes.Buffer

		slog.New(newHandler(env, &buf)).Debug("debug line")
		assert.NotZero(t, buf.Len(), "env %q should enable debug", env)
	}
}

func TestNewLoggerWritesToStdout(t *testing.T) {
	require.NotNil(t, NewLogger("production"))
	require.NotNil(t, NewLogger("development"))
}
