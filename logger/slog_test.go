package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSON(t *testing.T) {
	t.Setenv("ENV", "production")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	require.Zero(t, buf.Len())

	l.With("unit", "10.0.0.5:2001").Info("connected", "label", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "connected", rec["msg"])
	assert.Equal(t, "10.0.0.5:2001", rec["unit"])
	assert.EqualValues(t, 3, rec["label"])
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_SetLevel(t *testing.T) {
	t.Setenv("ENV", "production")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, ErrorLevel, false)
	assert.Equal(t, ErrorLevel, l.Level())

	l.Warn("dropped")
	require.Zero(t, buf.Len())

	child := l.With("k", "v")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	child.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSlogLogger_Console(t *testing.T) {
	t.Setenv("ENV", "development")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	l.Info("console record", "point", 7)

	assert.Contains(t, buf.String(), "console record")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.name)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetDefault(prev) })

	m := NewMockLogger()
	SetDefault(m)
	assert.Same(t, m, GetLogger())

	SetDefault(nil)
	assert.Same(t, m, GetLogger())
}

func TestMockLogger_AllowLevels(t *testing.T) {
	m := NewMockLogger()
	m.On("Error", "boom", mock.Anything).Once()
	m.AllowLevels("Debug", "Info")

	m.Debug("noise", "k", 1)
	m.Info("more noise")
	m.Error("boom", "code", 7)

	m.AssertExpectations(t)
	m.AssertNotCalled(t, "Warn", mock.Anything, mock.Anything)
}
