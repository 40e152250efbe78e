package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "defaults", config: Config{Output: OutputDiscard}},
		{name: "text to stderr", config: Config{Level: "debug", Format: "text", Output: OutputStderr}},
		{name: "json to stdout", config: Config{Level: "warning", Format: "json", Output: OutputStdout}},
		{name: "unknown level", config: Config{Level: "trace"}, wantErr: ErrUnknownLevel},
		{name: "unknown format", config: Config{Format: "xml"}, wantErr: ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Logger)
			assert.NoError(t, logger.Close())
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docscore.log")

	logger, err := New(Config{Output: path})
	require.NoError(t, err)
	logger.Info("evaluation finished", "final_score", 80.5)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "evaluation finished", record["msg"])
	assert.Equal(t, 80.5, record["final_score"])
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "docscore.log")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewWithWriter_Formats(t *testing.T) {
	t.Run("json uses RFC3339 timestamps", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewWithWriter(Config{}, &buf)
		require.NoError(t, err)
		logger.Info("hello", "stage", "extract")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "extract", record["stage"])
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`, record["time"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewWithWriter(Config{Format: "text"}, &buf)
		require.NoError(t, err)
		logger.Info("hello", "stage", "extract")
		assert.Contains(t, buf.String(), "msg=hello stage=extract")
	})
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "warn"}, &buf)
	require.NoError(t, err)
	child := logger.With("component", "runner")

	child.Info("hidden")
	assert.Empty(t, buf.String())

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, slog.LevelDebug, logger.Level())
	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	assert.ErrorIs(t, logger.SetLevel("loud"), ErrUnknownLevel)
	assert.Equal(t, slog.LevelDebug, logger.Level())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "warning", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: " DEBUG ", want: slog.LevelDebug},
		{level: "", wantErr: true},
		{level: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := ParseLevel(tt.level)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())
	cfg.setDefaults()
	assert.Equal(t, Config{Level: "info", Format: "json", Output: OutputStdout}, cfg)
}
