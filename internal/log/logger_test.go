package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLogger_ComponentAndRun(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, JSON: true, Output: &buf})

	logger.WithComponent(ComponentStorage).WithRun("run-1", "2025-06").Info("saved", FieldRows, 3)
	logger.Debug("debug line")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "storage", lines[0][FieldComponent])
	assert.Equal(t, "run-1", lines[0][FieldRunID])
	assert.Equal(t, "2025-06", lines[0][FieldMonth])
	assert.EqualValues(t, 3, lines[0][FieldRows])
	assert.Equal(t, "app", lines[1][FieldComponent])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, "unknown", logger.Component())

	custom := New(DefaultConfig()).WithComponent(ComponentWorker)
	ctx := NewContext(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})

	handler := Middleware(logger)(
		RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
			AccessLog(func(*http.Request) string { return "10.0.0.1" })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusTeapot)
				}),
			),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/summary?month=2025-06", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "req-42", lines[0][FieldRequestID])
	assert.Equal(t, "/summary", lines[0][FieldPath])
	assert.Equal(t, "month=2025-06", lines[0][FieldQuery])
	assert.EqualValues(t, http.StatusTeapot, lines[0][FieldStatusCode])
	assert.Equal(t, "10.0.0.1", lines[0][FieldClientIP])
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{JSON: true, Output: &buf}))

	sl.LogError(context.Background(), "load failed", errors.New("disk full"), ComponentStorage, OpLoad, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "disk full", lines[0][FieldError])
	assert.Equal(t, OpLoad, lines[0][FieldOperation])
	assert.Equal(t, ComponentStorage, lines[0][FieldComponent])
}

func TestLogFields_Builders(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentWorker).
		WithMonth("2025-06").
		WithRows(3).
		WithError(nil)

	assert.Equal(t, ComponentWorker, f[FieldComponent])
	assert.Equal(t, "2025-06", f[FieldMonth])
	assert.Equal(t, 3, f[FieldRows])
	assert.NotContains(t, f, FieldError)
	assert.Len(t, f.ToSlice(), 6)

	f = f.WithRun("run-1", "2025-07", "")
	assert.Equal(t, "2025-07", f[FieldMonth])
	assert.NotContains(t, f, FieldTrigger)
}
