package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeServiceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"mqtt", "mqtt"},
		{"  Field Node 3 ", "field-node-3"},
		{"Audio/Capture", "audio-capture"},
		{"UPPER", "upper"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeServiceName(tt.in), "input %q", tt.in)
	}
}

func TestNewFileLogger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "node.log")
	logger, closeFn, err := NewFileLogger(path, "node", LevelTrace)
	require.NoError(t, err)

	logger.Info("frame decoded", "size", 42)
	logger.Log(context.Background(), LevelTrace, "bit timing", "offset", 3)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "frame decoded", first["msg"])
	assert.Equal(t, "node", first["service"])
	assert.Equal(t, "INFO", first["level"])
	assert.EqualValues(t, 42, first["size"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "TRACE", second["level"], "custom levels render by name")
}

func TestNewFileLoggerCustomOptions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.log")
	logger, closeFn, err := NewFileLogger(path, "svc", LevelFatal, FileLoggerOptions{
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
		Compress:   false,
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	// Below the configured level: must not be written.
	logger.Error("suppressed")
	logger.Log(context.Background(), LevelFatal, "fatal condition")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "FATAL", entry["level"])
	assert.Equal(t, "fatal condition", entry["msg"])
}

func TestDefaultFileLoggerOptions(t *testing.T) {
	t.Parallel()

	opt := DefaultFileLoggerOptions()
	assert.Equal(t, 10, opt.MaxSizeMB)
	assert.Equal(t, 3, opt.MaxBackups)
	assert.Equal(t, 30, opt.MaxAgeDays)
	assert.True(t, opt.Compress)
}

func splitLines(data []byte) [][]byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	return bytes.Split(trimmed, []byte("\n"))
}
