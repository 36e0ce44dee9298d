package logging

import (
	"bytes"
	"log/slog"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func TestLoggerEmitsRenamedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "ecdpd", Env: "test", Level: "debug"})

	logger.Debug("block produced", "height", 7, MaskField("token", "secret"))

	var line map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "block produced", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "ecdpd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["token"])
	require.Contains(t, line, "timestamp")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "ecdpd", Level: "warn"})
	logger.Info("hidden")
	require.Zero(t, buf.Len())
	logger.Warn("shown")
	require.NotZero(t, buf.Len())

	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	require.Equal(t, slog.LevelError, ParseLevel(" ERROR "))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("Authorization", "Bearer abc").Value.String())
	require.Equal(t, "USSD", MaskField("currency", "USSD").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
}
