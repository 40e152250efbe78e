package handlers

import (
	"net/http"
)

// GraphHandler renders the workflow topology. The default is a Mermaid
// flowchart; ?format=summary returns a plain text summary.
type GraphHandler struct {
	provider WorkflowProvider
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(provider WorkflowProvider) *GraphHandler {
	return &GraphHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *GraphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wf := h.provider.Workflow()
	if wf == nil {
		writeError(w, http.StatusServiceUnavailable, "no workflow configured")
		return
	}

	var body string
	switch format := r.URL.Query().Get("format"); format {
	case "", "mermaid":
		body = wf.Mermaid()
	case "summary":
		body = wf.Summary()
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+format)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
