package graph

import (
	"fmt"
	"sort"
)

type branch[S, U any] struct {
	decide Decider[S, U]
	routes map[Outcome]string
}

// Builder accumulates a graph definition. Obtain one with NewBuilder and turn
// it into an immutable Graph with Compile. A Builder is not safe for
// concurrent use.
type Builder[S, U any] struct {
	merge    MergeFunc[S, U]
	stages   map[string]Stage[S, U]
	order    []string
	edges    map[string]string
	branches map[string]branch[S, U]
	entry    string
	compiled bool
}

// NewBuilder returns an empty Builder that merges stage updates with merge.
func NewBuilder[S, U any](merge MergeFunc[S, U]) *Builder[S, U] {
	return &Builder[S, U]{
		merge:    merge,
		stages:   make(map[string]Stage[S, U]),
		edges:    make(map[string]string),
		branches: make(map[string]branch[S, U]),
	}
}

// AddNode registers a stage under name. Names must be unique and End is reserved.
func (b *Builder[S, U]) AddNode(name string, stage Stage[S, U]) error {
	if b.compiled {
		return ErrGraphCompiled
	}
	switch {
	case name == "":
		return invalidf("node name is empty")
	case name == End:
		return invalidf("node name %q is reserved", End)
	case stage == nil:
		return invalidf("node %q has a nil stage", name)
	}
	if _, exists := b.stages[name]; exists {
		return invalidf("node %q already exists", name)
	}
	b.stages[name] = stage
	b.order = append(b.order, name)
	return nil
}

// AddEdge adds an unconditional transition from one node to another, or to End.
func (b *Builder[S, U]) AddEdge(from, to string) error {
	if b.compiled {
		return ErrGraphCompiled
	}
	if err := b.checkNoOutgoing(from); err != nil {
		return err
	}
	if to == "" {
		return invalidf("edge from %q has an empty destination", from)
	}
	b.edges[from] = to
	return nil
}

// AddConditionalEdge makes from a branch point. After from runs, decide picks
// an Outcome and the run continues at routes[outcome].
func (b *Builder[S, U]) AddConditionalEdge(from string, decide Decider[S, U], routes map[Outcome]string) error {
	if b.compiled {
		return ErrGraphCompiled
	}
	if err := b.checkNoOutgoing(from); err != nil {
		return err
	}
	if decide == nil {
		return invalidf("conditional edge from %q has a nil decider", from)
	}
	if len(routes) == 0 {
		return invalidf("conditional edge from %q has no routes", from)
	}
	copied := make(map[Outcome]string, len(routes))
	for outcome, to := range routes {
		if !outcome.valid() {
			return invalidf("conditional edge from %q has unknown %s", from, outcome)
		}
		if to == "" {
			return invalidf("conditional edge from %q has an empty destination for %s", from, outcome)
		}
		copied[outcome] = to
	}
	b.branches[from] = branch[S, U]{decide: decide, routes: copied}
	return nil
}

// SetEntry sets the node where every run starts.
func (b *Builder[S, U]) SetEntry(name string) error {
	if b.compiled {
		return ErrGraphCompiled
	}
	b.entry = name
	return nil
}

func (b *Builder[S, U]) checkNoOutgoing(from string) error {
	if from == "" || from == End {
		return invalidf("edge source %q is not a node", from)
	}
	if _, ok := b.edges[from]; ok {
		return invalidf("node %q already has an outgoing edge", from)
	}
	if _, ok := b.branches[from]; ok {
		return invalidf("node %q already has a conditional edge", from)
	}
	return nil
}

// Compile validates the definition and returns the immutable Graph.
// Any later call on the Builder returns ErrGraphCompiled.
func (b *Builder[S, U]) Compile() (*Graph[S, U], error) {
	if b.compiled {
		return nil, ErrGraphCompiled
	}
	if b.merge == nil {
		return nil, invalidf("merge function is nil")
	}
	if len(b.stages) == 0 {
		return nil, invalidf("graph has no nodes")
	}
	if b.entry == "" {
		return nil, invalidf("entry node is not set")
	}
	if _, ok := b.stages[b.entry]; !ok {
		return nil, invalidf("entry node %q does not exist", b.entry)
	}

	for _, name := range b.order {
		_, hasEdge := b.edges[name]
		_, hasBranch := b.branches[name]
		if !hasEdge && !hasBranch {
			return nil, invalidf("node %q has no outgoing edge", name)
		}
	}
	for from := range b.edges {
		if _, ok := b.stages[from]; !ok {
			return nil, invalidf("edge source %q does not exist", from)
		}
	}
	for from := range b.branches {
		if _, ok := b.stages[from]; !ok {
			return nil, invalidf("conditional edge source %q does not exist", from)
		}
	}

	edges := b.edgeList()
	for _, e := range edges {
		if e.To == End {
			continue
		}
		if _, ok := b.stages[e.To]; !ok {
			return nil, invalidf("edge %s -> %s references an unknown node", e.From, e.To)
		}
	}

	if err := markBackEdges(b.entry, edges); err != nil {
		return nil, err
	}
	if err := checkReachable(b.entry, b.order, edges); err != nil {
		return nil, err
	}

	b.compiled = true

	g := &Graph[S, U]{
		merge:    b.merge,
		stages:   make(map[string]Stage[S, U], len(b.stages)),
		order:    append([]string(nil), b.order...),
		edges:    make(map[string]string, len(b.edges)),
		branches: make(map[string]branch[S, U], len(b.branches)),
		entry:    b.entry,
		topology: edges,
	}
	for k, v := range b.stages {
		g.stages[k] = v
	}
	for k, v := range b.edges {
		g.edges[k] = v
	}
	for k, v := range b.branches {
		g.branches[k] = v
	}
	return g, nil
}

// edgeList returns every route in node registration order. Conditional
// routes are sorted by outcome so the result is deterministic.
func (b *Builder[S, U]) edgeList() []Edge {
	var edges []Edge
	for _, from := range b.order {
		if to, ok := b.edges[from]; ok {
			edges = append(edges, Edge{From: from, To: to})
			continue
		}
		br := b.branches[from]
		outcomes := make([]Outcome, 0, len(br.routes))
		for o := range br.routes {
			outcomes = append(outcomes, o)
		}
		sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })
		for _, o := range outcomes {
			edges = append(edges, Edge{From: from, To: br.routes[o], Outcome: o})
		}
	}
	return edges
}

// markBackEdges runs a depth-first search from entry and flags every edge
// that closes a cycle. At most one such edge is allowed and it must be
// conditional, otherwise the run could never leave the loop.
func markBackEdges(entry string, edges []Edge) error {
	out := make(map[string][]int)
	for i, e := range edges {
		out[e.From] = append(out[e.From], i)
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	back := 0

	var visit func(node string) error
	visit = func(node string) error {
		state[node] = onStack
		for _, i := range out[node] {
			to := edges[i].To
			if to == End {
				continue
			}
			switch state[to] {
			case onStack:
				if edges[i].Outcome == 0 {
					return invalidf("unconditional edge %s -> %s closes a cycle", edges[i].From, to)
				}
				edges[i].Back = true
				back++
				if back > 1 {
					return invalidf("graph has more than one back-edge (second: %s -> %s)", edges[i].From, to)
				}
			case unvisited:
				if err := visit(to); err != nil {
					return err
				}
			}
		}
		state[node] = done
		return nil
	}
	return visit(entry)
}

func checkReachable(entry string, order []string, edges []Edge) error {
	out := make(map[string][]string)
	for _, e := range edges {
		out[e.From] = append(out[e.From], e.To)
	}
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, to := range out[node] {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	for _, name := range order {
		if !seen[name] {
			return invalidf("node %q is unreachable from entry %q", name, entry)
		}
	}
	if !seen[End] {
		return fmt.Errorf("%w: no route reaches %s", ErrInvalidGraph, End)
	}
	return nil
}
