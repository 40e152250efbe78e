package handlers

import (
	"log/slog"
	"net/http"
	"time"
)

// ReloadResponse describes the workflow in effect after a reload.
type ReloadResponse struct {
	MaxIterations     int     `json:"max_iterations"`
	FeedbackThreshold float64 `json:"feedback_threshold"`
	StepBudget        int     `json:"step_budget"`
	Duration          string  `json:"duration"`
}

// ReloadHandler rebuilds the workflow from the config file on disk. Runs in
// flight finish on the workflow they started with.
type ReloadHandler struct {
	logger   *slog.Logger
	reloader Reloader
	provider WorkflowProvider
}

// NewReloadHandler creates a new ReloadHandler.
func NewReloadHandler(logger *slog.Logger, reloader Reloader, provider WorkflowProvider) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger,
		reloader: reloader,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("config reload failed, keeping current workflow", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "failed to reload configuration: "+err.Error())
		return
	}

	wf := h.provider.Workflow()
	if wf == nil {
		writeError(w, http.StatusServiceUnavailable, "reload produced no workflow")
		return
	}
	cfg := wf.Config()
	resp := ReloadResponse{
		MaxIterations:     cfg.MaxIterations,
		FeedbackThreshold: cfg.FeedbackThreshold,
		StepBudget:        wf.StepBudget(),
		Duration:          time.Since(start).Round(time.Millisecond).String(),
	}
	h.logger.Info("config reloaded",
		"max_iterations", resp.MaxIterations,
		"step_budget", resp.StepBudget,
		"duration", resp.Duration)
	writeJSON(w, http.StatusOK, resp)
}
