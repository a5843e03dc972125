package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{" Debug ", slog.LevelDebug},
		{"INFO+2", slog.LevelInfo + 2},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseLevel(tc.in), tc.in)
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "production")).Info("contribution recorded", "group_id", "g1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "contribution recorded", line["msg"])
	assert.Equal(t, "g1", line["group_id"])
	assert.NotContains(t, line, "source")

	buf.Reset()
	slog.New(NewHandler(&buf, "debug", "development")).Debug("lock acquired")
	assert.Contains(t, buf.String(), "msg=\"lock acquired\"")
	assert.Contains(t, buf.String(), "source=")

	buf.Reset()
	slog.New(NewHandler(&buf, "warn", "production")).Info("dropped")
	assert.Empty(t, buf.String())
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AddsLoggerToContext(t *testing.T) {
	ctx := With(context.Background(), "group_id", "g1")
	assert.NotEqual(t, slog.Default(), FromContext(ctx))
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
}
