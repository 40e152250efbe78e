// Package graph provides a small workflow engine that threads a typed state
// value through a directed graph of stages.
//
// # Overview
//
// A graph is described once with a Builder and compiled into an immutable
// Graph. The compiled Graph can be shared freely between goroutines; every
// call to Run gets its own run context and its own copy of the state.
//
// Stages are the units of work. A stage reads the current state and returns
// an update; the executor merges the update into the state using the
// MergeFunc supplied to NewBuilder. Stages never mutate the state directly.
//
// # Edges
//
// Every node has exactly one outgoing edge set:
//
//   - an unconditional edge added with AddEdge, or
//   - a conditional edge added with AddConditionalEdge, whose Decider picks an
//     Outcome that is looked up in a route table.
//
// The destination End terminates the run. The graph must be acyclic except
// for a single back-edge, which must be conditional. This is the shape of a
// refinement loop: a linear body with one decision point that either loops
// back or finishes.
//
// # Example
//
//	b := graph.NewBuilder[State, Update](merge)
//	_ = b.AddNode("draft", draftStage)
//	_ = b.AddNode("review", reviewStage)
//	_ = b.AddEdge("draft", "review")
//	_ = b.AddConditionalEdge("review", decide, map[graph.Outcome]string{
//	    graph.OutcomeContinue: "draft",
//	    graph.OutcomeEnd:      graph.End,
//	})
//	_ = b.SetEntry("draft")
//	g, err := b.Compile()
//	if err != nil {
//	    return err
//	}
//	final, err := g.Run(ctx, State{}, graph.WithStepBudget(20))
//
// # Termination and errors
//
// A run ends when a route resolves to End. Independently of any business
// iteration counter, the executor enforces a step budget on the total number
// of node visits; exceeding it fails with ErrStepBudgetExceeded.
//
// A failing stage aborts the run immediately. The error is a *StageError
// naming the node, and no state is returned. The context is checked between
// stages, so a cancelled run stops at the next stage boundary.
package graph
