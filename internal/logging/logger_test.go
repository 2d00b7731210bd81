package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"chatty", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			lvl, err := ParseLevel(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, lvl)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("loader").
		With("handle", "default").
		Warn(context.Background(), errors.New("bad xml"), "module skipped", "module", "Foo_Bar")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "module skipped", entry["msg"])
	assert.Equal(t, "loader", entry["component"])
	assert.Equal(t, "bad xml", entry["error"])
	assert.Equal(t, "default", entry["handle"])
	assert.Equal(t, "Foo_Bar", entry["module"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	logger.Error(context.Background(), nil, "shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestOddFieldsAreDropped(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.Info(context.Background(), "msg", "ok", 1, 2, "x", "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 1, entry["ok"])
	assert.NotContains(t, entry, "dangling")
}

func TestContextRoundTrip(t *testing.T) {
	nop := NewNop()
	other := NewNop().WithComponent("x")

	assert.Same(t, nop, FromContext(context.Background(), nop))

	ctx := IntoContext(context.Background(), other)
	assert.Equal(t, other, FromContext(ctx, nop))
}

func TestNopDiscards(t *testing.T) {
	nop := NewNop()
	assert.NotPanics(t, func() {
		nop.Error(context.Background(), errors.New("x"), "ignored")
		StartOperation(nop, "render").End(context.Background())
	})
}
