package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("run complete", "run_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run complete", line["msg"])
	assert.Equal(t, "abc", line["run_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("evaluating", "beach", "siesta")
	assert.Contains(t, buf.String(), "evaluating")
	assert.Contains(t, buf.String(), "siesta")
}

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.SamplesFetched.Add(3)
	a.Statuses.WithLabelValues("beach", "avoid").Set(2)

	assert.InDelta(t, 3, testutil.ToFloat64(a.SamplesFetched), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(b.SamplesFetched), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(a.Statuses.WithLabelValues("beach", "avoid")), 1e-9)
}
