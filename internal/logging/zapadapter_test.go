package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestZapLoggerForwardsEntries(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf))

	zl.Info("solve finished",
		zap.String("session", "s1"),
		zap.Int("vars", 3),
		zap.Bool("optimal", true),
	)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "solve finished", entry["message"])
	assert.Equal(t, "s1", entry["session"])
	assert.Equal(t, float64(3), entry["vars"])
	assert.Equal(t, true, entry["optimal"])
}

func TestZapLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).With(zap.String("component", "solver"))

	zl.Warn("row rejected")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "solver", entry["component"])
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(WarnLevel, &buf))

	zl.Debug("noise")
	zl.Info("noise")
	assert.Zero(t, buf.Len())

	zl.Error("boom")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
}
