package graph

import (
	"context"
	"fmt"
)

// End is the destination that terminates a run.
const End = "__end__"

// Outcome is the result of a Decider. The zero value is not a valid outcome.
type Outcome int

const (
	// OutcomeContinue routes back into the loop body.
	OutcomeContinue Outcome = iota + 1
	// OutcomeEnd routes forward to termination.
	OutcomeEnd
)

// String returns a human-readable representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeEnd:
		return "end"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o Outcome) valid() bool {
	return o == OutcomeContinue || o == OutcomeEnd
}

// Stage is one unit of work. It receives the current state and returns an
// update to merge into it. A Stage must not retain or mutate the state.
type Stage[S, U any] interface {
	Run(ctx context.Context, state S) (U, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc[S, U any] func(ctx context.Context, state S) (U, error)

// Run calls f(ctx, state).
func (f StageFunc[S, U]) Run(ctx context.Context, state S) (U, error) {
	return f(ctx, state)
}

// MergeFunc folds an update into a state and returns the new state.
// Merging the zero value of U must leave the state unchanged.
type MergeFunc[S, U any] func(state S, update U) S

// Decision is returned by a Decider. Update is merged into the state by the
// executor before the route is followed, which keeps deciders free of side
// effects.
type Decision[U any] struct {
	Outcome Outcome
	Update  U
}

// Decider chooses the outgoing route of a conditional edge.
type Decider[S, U any] func(state S) Decision[U]

// Edge describes one route of a compiled graph.
type Edge struct {
	From string
	To   string
	// Outcome is zero for unconditional edges.
	Outcome Outcome
	// Back is true for the single edge that closes the refinement loop.
	Back bool
}
