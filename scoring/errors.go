package scoring

import (
	"context"
	"errors"

	"github.com/nomis52/docscore/graph"
	"github.com/nomis52/docscore/judge"
)

var (
	// ErrMissingField is returned when a stage reads a group that no earlier
	// stage has written.
	ErrMissingField = errors.New("required state field missing")
	// ErrInvalidWeights is returned for negative weights or weights that do not sum to 1.
	ErrInvalidWeights = errors.New("invalid score weights")
	// ErrInvalidMaxIterations is returned when the iteration cap is below 1.
	ErrInvalidMaxIterations = errors.New("max iterations must be at least 1")
	// ErrInvalidConfig is returned for any other invalid workflow setting.
	ErrInvalidConfig = errors.New("invalid workflow config")
)

// Termination describes how an evaluation ended.
type Termination string

const (
	// TerminationConverged means the feedback stage accepted the evaluation.
	TerminationConverged Termination = "converged"
	// TerminationMaxIterations means the iteration cap was reached. The
	// result is the last pass and is not an error.
	TerminationMaxIterations Termination = "max_iterations"
	// TerminationFailed means a stage returned an error.
	TerminationFailed Termination = "failed"
	// TerminationMalformedResponse means the judge answered in an unexpected format.
	TerminationMalformedResponse Termination = "malformed_response"
	// TerminationStepBudgetExceeded means the run visited too many nodes.
	TerminationStepBudgetExceeded Termination = "step_budget_exceeded"
	// TerminationCancelled means the caller cancelled the run.
	TerminationCancelled Termination = "cancelled"
)

// OK reports whether the evaluation produced a result.
func (t Termination) OK() bool {
	return t == TerminationConverged || t == TerminationMaxIterations
}

// Classify maps the outcome of Workflow.Run to a Termination.
func Classify(res Result, err error) Termination {
	switch {
	case err == nil && res.Converged:
		return TerminationConverged
	case err == nil:
		return TerminationMaxIterations
	case errors.Is(err, graph.ErrStepBudgetExceeded):
		return TerminationStepBudgetExceeded
	case errors.Is(err, judge.ErrMalformedResponse):
		return TerminationMalformedResponse
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return TerminationCancelled
	default:
		return TerminationFailed
	}
}
