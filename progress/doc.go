// Package progress provides stage-scoped status reporting for evaluation runs.
//
// Stages report what they are doing through a StatusLine. Every message is
// logged and stored in the run's StatusHandler so the server can show the
// live state of in-flight evaluations.
//
//   - StatusLine: writes status messages (analogous to slog.Logger)
//   - StatusHandler: receives and stores status updates (analogous to slog.Handler)
//
// A run creates one StatusHandler and hands it to the workflow, which binds a
// StatusLine to each stage:
//
//	handler := progress.NewStatusHandler()
//	result, err := wf.Run(ctx, candidate, requirement, scoring.WithStatusHandler(handler))
//
// CaptureError updates the status line when a stage fails:
//
//	return progress.CaptureError(line, func() error {
//	    line.Set("scoring technical skills")
//	    return score()
//	})
package progress
