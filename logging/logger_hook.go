package logging

import "log/slog"

// LoggerHook derives the logger a workflow stage logs through.
// *LogCollector implements it to capture stage logs.
type LoggerHook interface {
	LoggerForStage(base *slog.Logger, stage string) *slog.Logger
}

// LoggerHookFunc adapts a function to LoggerHook.
type LoggerHookFunc func(base *slog.Logger, stage string) *slog.Logger

// LoggerForStage calls f.
func (f LoggerHookFunc) LoggerForStage(base *slog.Logger, stage string) *slog.Logger {
	return f(base, stage)
}
