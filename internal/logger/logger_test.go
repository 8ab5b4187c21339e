package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"default": nil,
		"json":    {Level: "debug", Format: "json", Output: io.Discard},
		"console": {Level: "info", Format: "console", Output: io.Discard},
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, New(cfg))
		})
	}
}

func TestLogger_ConsoleOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	New(&Config{Level: "info", Format: "console", Output: buf}).Info("mapped")
	assert.Contains(t, buf.String(), "mapped")
	assert.Contains(t, buf.String(), "INF")
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info("pool opened")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pool opened", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_ComponentFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf})

	child := log.Component("pool").With().
		Str("server", "shop").
		Uint64("conn_id", 7).
		Dur("settle", 5*time.Second).
		Logger()

	child.Debug("connection opened")

	entry := decode(t, buf)
	assert.Equal(t, "pool", entry["component"])
	assert.Equal(t, "shop", entry["server"])
	assert.Equal(t, float64(7), entry["conn_id"])
	assert.Equal(t, "connection opened", entry["message"])
}

func TestLogger_ErrField(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "error", Format: "json", Output: buf})

	log.With().
		Err(errors.New("connection refused")).
		Str("server", "warehouse").
		Int("port", 3306).
		Logger().
		Error("introspection failed")

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "warehouse", entry["server"])
	assert.Equal(t, float64(3306), entry["port"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestFromContext_Missing(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("debug message") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("debug message") }, false},
		{"error level logs error", "error", func(l *Logger) { l.Error("error message") }, true},
		{"error level skips warn", "error", func(l *Logger) { l.Warn("warn message") }, false},
		{"disabled logs nothing", "off", func(l *Logger) { l.Error("error message") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error("dropped")
	log.Component("x").Info("dropped")
}

func BenchmarkLogger_WithFields(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.With().
			Str("server", "shop").
			Int("attempt", i).
			Logger().
			Info("benchmark message")
	}
}
