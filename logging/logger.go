// Package logging builds the slog loggers used by docscore and captures
// per-stage logs for evaluation history.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//	logger.Info("evaluation started", "run_id", id, "candidate", "resume.md")
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Output destinations understood by New. Anything else is a file path.
const (
	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
	OutputDiscard = "discard"
)

var (
	// ErrUnknownLevel is returned for level names ParseLevel does not know.
	ErrUnknownLevel = errors.New("unknown log level")
	// ErrUnknownFormat is returned for formats other than json and text.
	ErrUnknownFormat = errors.New("unknown log format")
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
	// Output is stdout, stderr, discard or a file path. Files are appended to.
	Output string `yaml:"output"`
	// AddSource adds the source position to every record.
	AddSource bool `yaml:"add_source"`
}

// Validate reports the first invalid field. Empty fields are valid and
// take their defaults.
func (cfg Config) Validate() error {
	if cfg.Level != "" {
		if _, err := ParseLevel(cfg.Level); err != nil {
			return err
		}
	}
	switch cfg.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w %q: must be json or text", ErrUnknownFormat, cfg.Format)
	}
	return nil
}

func (cfg *Config) setDefaults() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = OutputStdout
	}
}

// Logger is an slog.Logger whose level can change after construction.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// New creates a logger writing to cfg.Output. Call Close when the output is
// a file.
func New(cfg Config) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	cfg.setDefaults()

	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	l, err := NewWithWriter(cfg, w)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	l.closer = closer
	return l, nil
}

// NewWithWriter creates a logger writing to w. cfg.Output is ignored.
func NewWithWriter(cfg Config, w io.Writer) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	cfg.setDefaults()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lv := &slog.LevelVar{}
	lv.Set(level)

	opts := &slog.HandlerOptions{
		Level:       lv,
		AddSource:   cfg.AddSource,
		ReplaceAttr: formatTime,
	}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h), level: lv}, nil
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lvl)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel converts a level name such as "warn" to slog.Level. It is case
// insensitive and accepts "warning".
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w %q: must be debug, info, warn or error", ErrUnknownLevel, level)
}

func formatTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
	}
	return a
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case OutputStdout:
		return os.Stdout, nil, nil
	case OutputStderr:
		return os.Stderr, nil, nil
	case OutputDiscard:
		return io.Discard, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %q: %w", output, err)
	}
	return f, f, nil
}
