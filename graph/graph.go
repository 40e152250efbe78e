package graph

import (
	"context"
	"fmt"
	"time"
)

// defaultStepsPerNode sizes the default step budget: a run may visit each
// node this many times on average before it is considered runaway.
const defaultStepsPerNode = 25

// Graph is a compiled, immutable workflow. It is safe for concurrent use.
type Graph[S, U any] struct {
	merge    MergeFunc[S, U]
	stages   map[string]Stage[S, U]
	order    []string
	edges    map[string]string
	branches map[string]branch[S, U]
	entry    string
	topology []Edge
}

// Entry returns the name of the entry node.
func (g *Graph[S, U]) Entry() string {
	return g.entry
}

// Nodes returns the node names in registration order.
func (g *Graph[S, U]) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Edges returns every route of the graph, including the back-edge.
func (g *Graph[S, U]) Edges() []Edge {
	return append([]Edge(nil), g.topology...)
}

// DefaultStepBudget is the step budget used when Run is not given WithStepBudget.
func (g *Graph[S, U]) DefaultStepBudget() int {
	return defaultStepsPerNode * len(g.order)
}

// Hooks are optional callbacks invoked by the executor. They run on the
// caller's goroutine and must not block.
type Hooks struct {
	// OnStageStart is called before a node's stage runs.
	OnStageStart func(ctx context.Context, node string, step int)
	// OnStageEnd is called after a node's stage returns. err is the stage's error, if any.
	OnStageEnd func(ctx context.Context, node string, step int, elapsed time.Duration, err error)
	// OnRoute is called when the executor leaves a node. outcome is zero for
	// unconditional edges.
	OnRoute func(ctx context.Context, from string, outcome Outcome, to string)
}

// ChainHooks returns Hooks that call every non-nil callback of hooks in order.
func ChainHooks(hooks ...Hooks) Hooks {
	var chained Hooks
	for _, h := range hooks {
		h := h
		if h.OnStageStart != nil {
			prev := chained.OnStageStart
			chained.OnStageStart = func(ctx context.Context, node string, step int) {
				if prev != nil {
					prev(ctx, node, step)
				}
				h.OnStageStart(ctx, node, step)
			}
		}
		if h.OnStageEnd != nil {
			prev := chained.OnStageEnd
			chained.OnStageEnd = func(ctx context.Context, node string, step int, elapsed time.Duration, err error) {
				if prev != nil {
					prev(ctx, node, step, elapsed, err)
				}
				h.OnStageEnd(ctx, node, step, elapsed, err)
			}
		}
		if h.OnRoute != nil {
			prev := chained.OnRoute
			chained.OnRoute = func(ctx context.Context, from string, outcome Outcome, to string) {
				if prev != nil {
					prev(ctx, from, outcome, to)
				}
				h.OnRoute(ctx, from, outcome, to)
			}
		}
	}
	return chained
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	budget int
	hooks  Hooks
}

// WithStepBudget caps the total number of node visits of a run.
// Values below 1 are ignored.
func WithStepBudget(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.budget = n
		}
	}
}

// WithHooks attaches callbacks to a run.
func WithHooks(h Hooks) RunOption {
	return func(c *runConfig) {
		c.hooks = h
	}
}

// runContext is the per-run mutable state. It never escapes Run.
type runContext[S any] struct {
	state  S
	steps  int
	budget int
}

// Run executes the graph from its entry node with initial as the starting
// state and returns the final state once a route reaches End.
//
// Stages run one after another on the calling goroutine. If a stage fails,
// the context is cancelled, the step budget is exhausted or a decision has
// no route, Run returns the zero state and an error.
func (g *Graph[S, U]) Run(ctx context.Context, initial S, opts ...RunOption) (S, error) {
	cfg := runConfig{budget: g.DefaultStepBudget()}
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := &runContext[S]{state: initial, budget: cfg.budget}
	var zero S

	node := g.entry
	for node != End {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("run cancelled before node %q: %w", node, err)
		}
		if rc.steps >= rc.budget {
			return zero, fmt.Errorf("%w: %d node visits, next node %q", ErrStepBudgetExceeded, rc.steps, node)
		}
		rc.steps++

		update, err := g.invoke(ctx, cfg.hooks, node, rc)
		if err != nil {
			return zero, &StageError{Node: node, Step: rc.steps, Err: err}
		}
		rc.state = g.merge(rc.state, update)

		next, err := g.next(ctx, cfg.hooks, node, rc)
		if err != nil {
			return zero, err
		}
		node = next
	}
	return rc.state, nil
}

func (g *Graph[S, U]) invoke(ctx context.Context, hooks Hooks, node string, rc *runContext[S]) (U, error) {
	if hooks.OnStageStart != nil {
		hooks.OnStageStart(ctx, node, rc.steps)
	}
	start := time.Now()
	update, err := g.stages[node].Run(ctx, rc.state)
	if hooks.OnStageEnd != nil {
		hooks.OnStageEnd(ctx, node, rc.steps, time.Since(start), err)
	}
	return update, err
}

// next resolves the destination after node. For conditional edges the
// decision's update is merged before the route is followed.
func (g *Graph[S, U]) next(ctx context.Context, hooks Hooks, node string, rc *runContext[S]) (string, error) {
	var (
		to      string
		outcome Outcome
	)
	if dst, ok := g.edges[node]; ok {
		to = dst
	} else {
		br := g.branches[node]
		d := br.decide(rc.state)
		dst, ok := br.routes[d.Outcome]
		if !ok {
			return "", fmt.Errorf("%w: node %q decided %s", ErrUnknownOutcome, node, d.Outcome)
		}
		rc.state = g.merge(rc.state, d.Update)
		to, outcome = dst, d.Outcome
	}
	if hooks.OnRoute != nil {
		hooks.OnRoute(ctx, node, outcome, to)
	}
	return to, nil
}
