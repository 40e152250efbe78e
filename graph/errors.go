package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGraph is wrapped by every configuration error reported by
	// the Builder.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrGraphCompiled is returned when a Builder is modified after Compile.
	// It wraps ErrInvalidGraph.
	ErrGraphCompiled = fmt.Errorf("%w: graph already compiled", ErrInvalidGraph)

	// ErrUnknownOutcome is returned when a Decider picks an outcome that has
	// no route on its conditional edge.
	ErrUnknownOutcome = errors.New("decision outcome has no route")

	// ErrStepBudgetExceeded is returned when a run visits more nodes than its
	// step budget allows. It indicates a topology or decision bug, not a
	// normal end of the refinement loop.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
)

// StageError reports a stage that returned an error during a run.
type StageError struct {
	// Node is the name of the failing node.
	Node string
	// Step is the 1-based visit count at which the node failed.
	Step int
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed at step %d: %v", e.Node, e.Step, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...))
}
