package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"breakoutBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_ ports.Logger = (*StdLogger)(nil)
	_ ports.Logger = (*ZapLogger)(nil)
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestStdLogger_FiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelInfo)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	assert.Empty(t, buf.String())

	l.Info(ctx, "Signal generated", map[string]interface{}{"symbol": "INFY", "action": "BUY"})
	assert.Contains(t, buf.String(), "[INFO] Signal generated | action=BUY symbol=INFY")

	buf.Reset()
	l.Error(ctx, errors.New("boom"), "Persist failed")
	assert.Contains(t, buf.String(), "[ERROR] Persist failed | error: boom")
}

func TestFormatFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []map[string]interface{}
		want   string
	}{
		{name: "none", want: ""},
		{name: "empty map", fields: []map[string]interface{}{{}}, want: ""},
		{name: "floats keep precision", fields: []map[string]interface{}{{"tp": 104.56, "sl": 100.4}}, want: " sl=100.4 tp=104.56"},
		{
			name:   "later maps win",
			fields: []map[string]interface{}{{"symbol": "INFY", "n": 1}, {"n": 2}},
			want:   " n=2 symbol=INFY",
		},
		{
			name:   "times as RFC3339",
			fields: []map[string]interface{}{{"at": time.Date(2025, 12, 5, 9, 20, 0, 0, time.UTC)}},
			want:   " at=2025-12-05T09:20:00Z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFields(tt.fields...))
		})
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZapLoggerFromCore(core)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "New trading date", map[string]interface{}{"symbol": "INFY", "date": "2025-12-05"})
	l.Error(ctx, errors.New("boom"), "Notify failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "New trading date", entries[0].Message)
	assert.Equal(t, "INFY", entries[0].ContextMap()["symbol"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNew(t *testing.T) {
	l, err := New("text", "debug")
	require.NoError(t, err)
	assert.IsType(t, &StdLogger{}, l)

	l, err = New("JSON", "info")
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)
}
