package runner

import "sync"

// MemoryStore keeps run history in memory. History is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	history history
}

// NewMemoryStore creates a store holding at most limit runs.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{history: newHistory(limit)}
}

// History implements StateStore.
func (s *MemoryStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.summaries()
}

// Stages implements StateStore.
func (s *MemoryStore) Stages(id string) ([]StageExecution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.stages(id)
}

// Save implements StateStore.
func (s *MemoryStore) Save(summary RunSummary, stages []StageExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.add(runRecord{RunSummary: summary, Stages: stages})
	return nil
}
