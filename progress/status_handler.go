package progress

import (
	"sync"
)

// Snapshot is a point-in-time copy of a StatusHandler.
type Snapshot struct {
	// Stage is the stage currently running, empty between stages.
	Stage string `json:"stage"`
	// Iteration is the refinement pass of the current stage.
	Iteration int `json:"iteration"`
	// Statuses holds the last message of every stage that reported one.
	Statuses map[string]string `json:"statuses"`
}

// StatusHandler stores status messages by stage name.
type StatusHandler struct {
	mu        sync.RWMutex
	statuses  map[string]string
	stage     string
	iteration int
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{
		statuses: make(map[string]string),
	}
}

// Set updates the status for a stage.
func (sh *StatusHandler) Set(stage, status string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.statuses[stage] = status
}

// Get returns the status for a stage.
func (sh *StatusHandler) Get(stage string) string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.statuses[stage]
}

// Enter marks stage as running in the given refinement pass.
func (sh *StatusHandler) Enter(stage string, iteration int) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.stage = stage
	sh.iteration = iteration
}

// Leave clears the running stage.
func (sh *StatusHandler) Leave() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.stage = ""
}

// All returns a copy of all stage statuses.
func (sh *StatusHandler) All() map[string]string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	out := make(map[string]string, len(sh.statuses))
	for k, v := range sh.statuses {
		out[k] = v
	}
	return out
}

// Snapshot returns the current state of the handler.
func (sh *StatusHandler) Snapshot() Snapshot {
	statuses := sh.All()
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return Snapshot{Stage: sh.stage, Iteration: sh.iteration, Statuses: statuses}
}
