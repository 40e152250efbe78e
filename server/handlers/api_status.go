package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/docscore/server/cron"
	"github.com/nomis52/docscore/server/runner"
)

// WorkflowStatus summarizes the loaded workflow.
type WorkflowStatus struct {
	Loaded        bool `json:"loaded"`
	MaxIterations int  `json:"max_iterations,omitempty"`
	StepBudget    int  `json:"step_budget,omitempty"`
}

// APIStatusResponse is the body of /api/status.
type APIStatusResponse struct {
	Time     time.Time            `json:"time"`
	Workflow WorkflowStatus       `json:"workflow"`
	Active   []runner.RunProgress `json:"active"`
	// NextRun is the next cron evaluation, absent without cron jobs.
	NextRun *time.Time    `json:"next_run,omitempty"`
	Cron    []cron.Status `json:"cron,omitempty"`
}

// APIStatusHandler reports the live state of the server: the loaded
// workflow, in-flight runs with their stage and pass, and the cron schedule.
type APIStatusHandler struct {
	provider StatusProvider
	now      func() time.Time
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(provider StatusProvider) *APIStatusHandler {
	return &APIStatusHandler{provider: provider, now: time.Now}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := APIStatusResponse{
		Time:    h.now().UTC(),
		Active:  h.provider.Active(),
		NextRun: h.provider.NextRun(),
		Cron:    h.provider.CronJobs(),
	}
	if resp.Active == nil {
		resp.Active = []runner.RunProgress{}
	}
	if wf := h.provider.Workflow(); wf != nil {
		resp.Workflow = WorkflowStatus{
			Loaded:        true,
			MaxIterations: wf.Config().MaxIterations,
			StepBudget:    wf.StepBudget(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
