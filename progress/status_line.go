package progress

import (
	"log/slog"
)

// StatusLine logs status with stage context and updates the shared handler.
type StatusLine struct {
	logger  *slog.Logger
	handler *StatusHandler
	stage   string
}

// NewStatusLine creates a status line bound to a stage.
// The handler is optional. If nil, status updates are only logged.
func NewStatusLine(stage string, logger *slog.Logger, handler *StatusHandler) *StatusLine {
	return &StatusLine{
		logger:  logger,
		handler: handler,
		stage:   stage,
	}
}

// Set logs the status and updates the handler if present.
func (sl *StatusLine) Set(status string) {
	sl.logger.Info(status)
	if sl.handler != nil {
		sl.handler.Set(sl.stage, status)
	}
}

// CaptureError runs f and, if it fails, sets the error as the status.
func CaptureError(statusLine *StatusLine, f func() error) error {
	err := f()
	if err != nil && statusLine != nil {
		statusLine.Set("❌ " + err.Error())
	}
	return err
}
