package runner

import (
	"time"

	"github.com/nomis52/docscore/logging"
	"github.com/nomis52/docscore/scoring"
)

// RunState represents the state of an evaluation run.
type RunState int

const (
	// RunStateRunning indicates the evaluation is in progress.
	RunStateRunning RunState = iota
	// RunStateSucceeded indicates the evaluation produced a result.
	RunStateSucceeded
	// RunStateFailed indicates the evaluation returned an error.
	RunStateFailed
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunStateRunning:
		return "running"
	case RunStateSucceeded:
		return "succeeded"
	case RunStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s RunState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RunState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"running"`:
		*s = RunStateRunning
	case `"succeeded"`:
		*s = RunStateSucceeded
	default:
		*s = RunStateFailed
	}
	return nil
}

// Triggers record what started a run.
const (
	TriggerAPI  = "api"
	TriggerCron = "cron"
)

// RunSummary describes one evaluation run.
type RunSummary struct {
	ID          string     `json:"id"`
	Trigger     string     `json:"trigger"`
	Candidate   string     `json:"candidate"`
	Requirement string     `json:"requirement"`
	State       RunState   `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	// Termination is how the evaluation ended, e.g. "converged".
	Termination string          `json:"termination,omitempty"`
	Result      *scoring.Result `json:"result,omitempty"`
	// Error contains the error message if the run failed. Empty on success.
	Error string `json:"error,omitempty"`
}

// StageExecution holds the last status message and captured logs of one
// stage across every pass of a run.
type StageExecution struct {
	Stage  string             `json:"stage"`
	Status string             `json:"status,omitempty"`
	Logs   []logging.LogEntry `json:"logs,omitempty"`
}

// RunProgress is a live view of an in-flight run.
type RunProgress struct {
	RunSummary
	// Stage is the stage currently running, empty between stages.
	Stage     string           `json:"stage"`
	Iteration int              `json:"iteration"`
	Stages    []StageExecution `json:"stages"`
}

// runRecord is the on-disk form of a finished run.
type runRecord struct {
	RunSummary
	Stages []StageExecution `json:"stages"`
}
