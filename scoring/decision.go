package scoring

import (
	"github.com/nomis52/docscore/graph"
)

// RefinementDecider decides whether the feedback stage loops back for
// another scoring pass.
type RefinementDecider struct {
	MaxIterations int
}

// Decide ends the run when the feedback converged or the iteration cap is
// reached, in that order. Otherwise it continues and asks the executor to
// advance the iteration counter.
func (d RefinementDecider) Decide(s State) graph.Decision[Update] {
	if s.Feedback != nil && s.Feedback.Status == StatusNoChangesNeeded {
		return graph.Decision[Update]{Outcome: graph.OutcomeEnd}
	}
	if s.Iteration >= d.MaxIterations {
		return graph.Decision[Update]{Outcome: graph.OutcomeEnd}
	}
	return graph.Decision[Update]{
		Outcome: graph.OutcomeContinue,
		Update:  Update{Iteration: s.Iteration + 1},
	}
}
