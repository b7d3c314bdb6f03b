package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Format: FormatJSON})

	log.With(Component("query")).Info("roster loaded",
		StudentCount(3),
		GroupName("M3239"),
		Latency(1500*time.Microsecond),
		Err(errors.New("boom")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "roster loaded", entry["message"])
	assert.Equal(t, "query", entry["component"])
	assert.Equal(t, float64(3), entry["student_count"])
	assert.Equal(t, "M3239", entry["group"])
	assert.Equal(t, "1.5ms", entry["latency"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
}

func TestLogger_RequestIDAndContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug}).WithRequestID("req-1")

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Debug("traced")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0][RequestIDKey])
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	log := FromContext(context.Background())

	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Info("discarded") })
}

func TestFromZap_Nil(t *testing.T) {
	assert.NotNil(t, FromZap(nil).Zap())
}
