package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/docscore/buildinfo"
)

// HealthResponse is the JSON body of /health.
type HealthResponse struct {
	Status string `json:"status"`
	// Workflow reports whether a scoring workflow is loaded.
	Workflow bool   `json:"workflow"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
}

// HealthHandler reports whether the server can accept evaluations. It
// answers 503 until a workflow is loaded.
type HealthHandler struct {
	provider WorkflowProvider
	started  time.Time
	now      func() time.Time
}

// NewHealthHandler creates a HealthHandler. Uptime is measured from now.
func NewHealthHandler(provider WorkflowProvider) *HealthHandler {
	return &HealthHandler{
		provider: provider,
		started:  time.Now(),
		now:      time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Workflow: h.provider.Workflow() != nil,
		Uptime:   h.now().Sub(h.started).Truncate(time.Second).String(),
		Version:  buildinfo.Get().Version,
	}
	status := http.StatusOK
	if !resp.Workflow {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
