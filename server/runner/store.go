package runner

import "slices"

// StateStore keeps the history of finished runs.
type StateStore interface {
	// History returns finished runs, most recent first.
	History() []RunSummary
	// Stages returns the stage logs of a run and whether the run is known.
	Stages(id string) ([]StageExecution, bool)
	// Save records a finished run.
	Save(summary RunSummary, stages []StageExecution) error
}

// history is a bounded list of runs ordered most recent first. It is not
// safe for concurrent use.
type history struct {
	limit int
	runs  []runRecord
}

func newHistory(limit int) history {
	if limit < 1 {
		limit = defaultMaxHistorySize
	}
	return history{limit: limit}
}

// add inserts rec by start time and returns the runs that fell off the end.
func (h *history) add(rec runRecord) []runRecord {
	i, _ := slices.BinarySearchFunc(h.runs, rec, newerFirst)
	h.runs = slices.Insert(h.runs, i, rec)
	return h.trim()
}

// replace swaps in runs and returns the ones beyond the limit.
func (h *history) replace(runs []runRecord) []runRecord {
	h.runs = slices.Clone(runs)
	slices.SortStableFunc(h.runs, newerFirst)
	return h.trim()
}

func (h *history) trim() []runRecord {
	if len(h.runs) <= h.limit {
		return nil
	}
	evicted := slices.Clone(h.runs[h.limit:])
	h.runs = h.runs[:h.limit]
	return evicted
}

func (h *history) summaries() []RunSummary {
	out := make([]RunSummary, len(h.runs))
	for i, rec := range h.runs {
		out[i] = rec.RunSummary
	}
	return out
}

func (h *history) stages(id string) ([]StageExecution, bool) {
	for _, rec := range h.runs {
		if rec.ID == id {
			return slices.Clone(rec.Stages), true
		}
	}
	return nil, false
}

// newerFirst orders runs by start time, latest first. Runs without a start
// time sort last.
func newerFirst(a, b runRecord) int {
	switch {
	case a.StartedAt == nil && b.StartedAt == nil:
		return 0
	case a.StartedAt == nil:
		return 1
	case b.StartedAt == nil:
		return -1
	}
	return b.StartedAt.Compare(*a.StartedAt)
}
