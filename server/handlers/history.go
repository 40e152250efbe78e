package handlers

import (
	"log/slog"
	"net/http"
)

// HistoryHandler handles requests for the run history.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.History())
}

// RunStagesHandler handles requests for the stage logs of one run. The run
// ID is the {id} path value.
type RunStagesHandler struct {
	provider HistoryProvider
}

// NewRunStagesHandler creates a new RunStagesHandler.
func NewRunStagesHandler(provider HistoryProvider) *RunStagesHandler {
	return &RunStagesHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunStagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	stages, ok := h.provider.Stages(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run "+id)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

// ReloadableStore is a history store that can be re-read from disk.
type ReloadableStore interface {
	Reload() error
}

// HistoryReloadHandler re-reads the run history, e.g. after files were
// copied into the state directory.
type HistoryReloadHandler struct {
	logger *slog.Logger
	store  ReloadableStore
}

// NewHistoryReloadHandler creates a new HistoryReloadHandler.
func NewHistoryReloadHandler(logger *slog.Logger, store ReloadableStore) *HistoryReloadHandler {
	return &HistoryReloadHandler{
		logger: logger,
		store:  store,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(); err != nil {
		h.logger.Error("failed to reload run history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload run history: "+err.Error())
		return
	}
	h.logger.Info("run history reloaded")
	w.WriteHeader(http.StatusNoContent)
}
