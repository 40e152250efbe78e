package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Helpers
// ---------------------------------------------------------------------

type testState struct {
	Trail []string
	Pass  int
}

type testUpdate struct {
	Visit string
	Pass  int
}

func mergeTest(s testState, u testUpdate) testState {
	if u.Visit != "" {
		trail := make([]string, len(s.Trail), len(s.Trail)+1)
		copy(trail, s.Trail)
		s.Trail = append(trail, u.Visit)
	}
	if u.Pass != 0 {
		s.Pass = u.Pass
	}
	return s
}

func visit(name string) Stage[testState, testUpdate] {
	return StageFunc[testState, testUpdate](func(ctx context.Context, s testState) (testUpdate, error) {
		return testUpdate{Visit: name}, nil
	})
}

func failing(err error) Stage[testState, testUpdate] {
	return StageFunc[testState, testUpdate](func(ctx context.Context, s testState) (testUpdate, error) {
		return testUpdate{}, err
	})
}

// loopUntil continues until the state has completed maxPass passes.
func loopUntil(maxPass int) Decider[testState, testUpdate] {
	return func(s testState) Decision[testUpdate] {
		if s.Pass >= maxPass {
			return Decision[testUpdate]{Outcome: OutcomeEnd}
		}
		return Decision[testUpdate]{Outcome: OutcomeContinue, Update: testUpdate{Pass: s.Pass + 1}}
	}
}

// buildLoop builds a -> b -> c with c looping back to b.
func buildLoop(t *testing.T, decide Decider[testState, testUpdate]) *Graph[testState, testUpdate] {
	t.Helper()
	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", visit("a")))
	require.NoError(t, b.AddNode("b", visit("b")))
	require.NoError(t, b.AddNode("c", visit("c")))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", "c"))
	require.NoError(t, b.AddConditionalEdge("c", decide, map[Outcome]string{
		OutcomeContinue: "b",
		OutcomeEnd:      End,
	}))
	require.NoError(t, b.SetEntry("a"))
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

// Tests
// ---------------------------------------------------------------------

func TestCompile_Validation(t *testing.T) {
	noop := func(s testState) Decision[testUpdate] { return Decision[testUpdate]{Outcome: OutcomeEnd} }

	tests := []struct {
		name   string
		build  func(b *Builder[testState, testUpdate]) error
		errMsg string
	}{
		{
			name: "no nodes",
			build: func(b *Builder[testState, testUpdate]) error {
				return nil
			},
			errMsg: "graph has no nodes",
		},
		{
			name: "entry not set",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				return b.AddEdge("a", End)
			},
			errMsg: "entry node is not set",
		},
		{
			name: "unknown entry",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddEdge("a", End)
				return b.SetEntry("missing")
			},
			errMsg: `entry node "missing" does not exist`,
		},
		{
			name: "node without edge",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddNode("b", visit("b"))
				_ = b.AddEdge("a", "b")
				return b.SetEntry("a")
			},
			errMsg: `node "b" has no outgoing edge`,
		},
		{
			name: "edge to unknown node",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddEdge("a", "ghost")
				return b.SetEntry("a")
			},
			errMsg: "references an unknown node",
		},
		{
			name: "edge from unknown node",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddEdge("a", End)
				_ = b.AddEdge("ghost", End)
				return b.SetEntry("a")
			},
			errMsg: `edge source "ghost" does not exist`,
		},
		{
			name: "unconditional cycle",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddNode("b", visit("b"))
				_ = b.AddEdge("a", "b")
				_ = b.AddEdge("b", "a")
				return b.SetEntry("a")
			},
			errMsg: "closes a cycle",
		},
		{
			name: "two back-edges",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddNode("b", visit("b"))
				_ = b.AddNode("c", visit("c"))
				_ = b.AddEdge("a", "b")
				_ = b.AddConditionalEdge("b", noop, map[Outcome]string{OutcomeContinue: "a", OutcomeEnd: "c"})
				_ = b.AddConditionalEdge("c", noop, map[Outcome]string{OutcomeContinue: "b", OutcomeEnd: End})
				return b.SetEntry("a")
			},
			errMsg: "more than one back-edge",
		},
		{
			name: "unreachable node",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddNode("orphan", visit("orphan"))
				_ = b.AddEdge("a", End)
				_ = b.AddEdge("orphan", End)
				return b.SetEntry("a")
			},
			errMsg: `node "orphan" is unreachable`,
		},
		{
			name: "no route to end",
			build: func(b *Builder[testState, testUpdate]) error {
				_ = b.AddNode("a", visit("a"))
				_ = b.AddConditionalEdge("a", noop, map[Outcome]string{OutcomeContinue: "a"})
				return b.SetEntry("a")
			},
			errMsg: "no route reaches",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder[testState, testUpdate](mergeTest)
			require.NoError(t, tt.build(b))
			g, err := b.Compile()
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrInvalidGraph)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBuilder_ImmediateErrors(t *testing.T) {
	noop := func(s testState) Decision[testUpdate] { return Decision[testUpdate]{Outcome: OutcomeEnd} }

	t.Run("duplicate node", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		require.NoError(t, b.AddNode("a", visit("a")))
		err := b.AddNode("a", visit("a"))
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("reserved name", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		assert.ErrorIs(t, b.AddNode(End, visit("x")), ErrInvalidGraph)
		assert.ErrorIs(t, b.AddNode("", visit("x")), ErrInvalidGraph)
	})

	t.Run("nil stage", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		assert.ErrorIs(t, b.AddNode("a", nil), ErrInvalidGraph)
	})

	t.Run("second outgoing edge", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		require.NoError(t, b.AddEdge("a", End))
		assert.ErrorIs(t, b.AddEdge("a", "b"), ErrInvalidGraph)
		assert.ErrorIs(t, b.AddConditionalEdge("a", noop, map[Outcome]string{OutcomeEnd: End}), ErrInvalidGraph)
	})

	t.Run("empty routes", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		assert.ErrorIs(t, b.AddConditionalEdge("a", noop, nil), ErrInvalidGraph)
	})

	t.Run("invalid outcome", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		err := b.AddConditionalEdge("a", noop, map[Outcome]string{Outcome(42): End})
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("nil decider", func(t *testing.T) {
		b := NewBuilder[testState, testUpdate](mergeTest)
		err := b.AddConditionalEdge("a", nil, map[Outcome]string{OutcomeEnd: End})
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
}

func TestBuilder_MutationAfterCompile(t *testing.T) {
	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", visit("a")))
	require.NoError(t, b.AddEdge("a", End))
	require.NoError(t, b.SetEntry("a"))
	_, err := b.Compile()
	require.NoError(t, err)

	assert.ErrorIs(t, b.AddNode("b", visit("b")), ErrGraphCompiled)
	assert.ErrorIs(t, b.AddEdge("b", End), ErrGraphCompiled)
	assert.ErrorIs(t, b.SetEntry("b"), ErrGraphCompiled)
	_, err = b.Compile()
	assert.ErrorIs(t, err, ErrGraphCompiled)

	err = b.AddConditionalEdge("a", func(testState) Decision[testUpdate] {
		return Decision[testUpdate]{Outcome: OutcomeEnd}
	}, map[Outcome]string{OutcomeEnd: End})
	assert.ErrorIs(t, err, ErrGraphCompiled)
	assert.ErrorIs(t, err, ErrInvalidGraph, "mutation after compile is a configuration error")
}

func TestGraph_Topology(t *testing.T) {
	g := buildLoop(t, loopUntil(1))

	assert.Equal(t, "a", g.Entry())
	assert.Equal(t, []string{"a", "b", "c"}, g.Nodes())
	assert.Equal(t, 75, g.DefaultStepBudget())

	want := []Edge{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "c", To: "b", Outcome: OutcomeContinue, Back: true},
		{From: "c", To: End, Outcome: OutcomeEnd},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Errorf("Edges() mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Linear(t *testing.T) {
	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", visit("a")))
	require.NoError(t, b.AddNode("b", visit("b")))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", End))
	require.NoError(t, b.SetEntry("a"))
	g, err := b.Compile()
	require.NoError(t, err)

	initial := testState{Pass: 1}
	final, err := g.Run(context.Background(), initial)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, final.Trail)
	assert.Empty(t, initial.Trail, "initial state must not be mutated")
}

func TestRun_Loop(t *testing.T) {
	tests := []struct {
		name      string
		maxPass   int
		wantTrail []string
	}{
		{
			name:      "single pass",
			maxPass:   1,
			wantTrail: []string{"a", "b", "c"},
		},
		{
			name:      "three passes",
			maxPass:   3,
			wantTrail: []string{"a", "b", "c", "b", "c", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildLoop(t, loopUntil(tt.maxPass))
			final, err := g.Run(context.Background(), testState{Pass: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTrail, final.Trail)
			assert.Equal(t, tt.maxPass, final.Pass)
		})
	}
}

func TestRun_StageErrorAbortsRun(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", failing(boom)))
	require.NoError(t, b.AddNode("b", StageFunc[testState, testUpdate](func(ctx context.Context, s testState) (testUpdate, error) {
		ran = true
		return testUpdate{}, nil
	})))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", End))
	require.NoError(t, b.SetEntry("a"))
	g, err := b.Compile()
	require.NoError(t, err)

	final, err := g.Run(context.Background(), testState{Trail: []string{"seed"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "a", stageErr.Node)
	assert.Equal(t, 1, stageErr.Step)

	assert.False(t, ran, "later stages must not run")
	assert.Equal(t, testState{}, final, "no partial state on failure")
}

func TestRun_UnknownOutcome(t *testing.T) {
	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", visit("a")))
	require.NoError(t, b.AddConditionalEdge("a", func(s testState) Decision[testUpdate] {
		return Decision[testUpdate]{Outcome: OutcomeContinue}
	}, map[Outcome]string{OutcomeEnd: End}))
	require.NoError(t, b.SetEntry("a"))
	g, err := b.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), testState{})
	assert.ErrorIs(t, err, ErrUnknownOutcome)
}

func TestRun_StepBudget(t *testing.T) {
	forever := func(s testState) Decision[testUpdate] {
		return Decision[testUpdate]{Outcome: OutcomeContinue, Update: testUpdate{Pass: s.Pass + 1}}
	}

	t.Run("explicit budget", func(t *testing.T) {
		g := buildLoop(t, forever)
		final, err := g.Run(context.Background(), testState{}, WithStepBudget(10))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStepBudgetExceeded)
		assert.Contains(t, err.Error(), "10 node visits")
		assert.Equal(t, testState{}, final)
	})

	t.Run("default budget", func(t *testing.T) {
		g := buildLoop(t, forever)
		_, err := g.Run(context.Background(), testState{})
		assert.ErrorIs(t, err, ErrStepBudgetExceeded)
		assert.Contains(t, err.Error(), fmt.Sprintf("%d node visits", g.DefaultStepBudget()))
	})

	t.Run("budget large enough", func(t *testing.T) {
		g := buildLoop(t, loopUntil(3))
		// a + 3 * (b, c) = 7 visits
		_, err := g.Run(context.Background(), testState{Pass: 1}, WithStepBudget(7))
		assert.NoError(t, err)
	})
}

func TestRun_CancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secondRan := false
	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", StageFunc[testState, testUpdate](func(ctx context.Context, s testState) (testUpdate, error) {
		cancel()
		return testUpdate{Visit: "a"}, nil
	})))
	require.NoError(t, b.AddNode("b", StageFunc[testState, testUpdate](func(ctx context.Context, s testState) (testUpdate, error) {
		secondRan = true
		return testUpdate{}, nil
	})))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", End))
	require.NoError(t, b.SetEntry("a"))
	g, err := b.Compile()
	require.NoError(t, err)

	_, err = g.Run(ctx, testState{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), `before node "b"`)
	assert.False(t, secondRan)
}

func TestRun_Hooks(t *testing.T) {
	g := buildLoop(t, loopUntil(2))

	var events []string
	hooks := Hooks{
		OnStageStart: func(ctx context.Context, node string, step int) {
			events = append(events, fmt.Sprintf("start %s %d", node, step))
		},
		OnStageEnd: func(ctx context.Context, node string, step int, elapsed time.Duration, err error) {
			events = append(events, fmt.Sprintf("end %s %d", node, step))
		},
		OnRoute: func(ctx context.Context, from string, outcome Outcome, to string) {
			if outcome != 0 {
				events = append(events, fmt.Sprintf("route %s %s %s", from, outcome, to))
			}
		},
	}

	_, err := g.Run(context.Background(), testState{Pass: 1}, WithHooks(hooks))
	require.NoError(t, err)

	want := []string{
		"start a 1", "end a 1",
		"start b 2", "end b 2",
		"start c 3", "end c 3",
		"route c continue b",
		"start b 4", "end b 4",
		"start c 5", "end c 5",
		"route c end __end__",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("hook events mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ConcurrentRunsShareGraph(t *testing.T) {
	g := buildLoop(t, loopUntil(3))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			final, err := g.Run(context.Background(), testState{Pass: 1})
			if err != nil {
				errs <- err
				return
			}
			if len(final.Trail) != 7 {
				errs <- fmt.Errorf("unexpected trail %v", final.Trail)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestMermaid(t *testing.T) {
	g := buildLoop(t, loopUntil(1))
	out := g.Mermaid(map[string]string{"a": "Start here"})

	assert.Contains(t, out, "graph TB\n")
	assert.Contains(t, out, `a["Start here"]`)
	assert.Contains(t, out, `b["b"]`)
	assert.Contains(t, out, "a --> b")
	assert.Contains(t, out, `c -. "continue" .-> b`)
	assert.Contains(t, out, `c -- "end" --> end_node`)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "continue", OutcomeContinue.String())
	assert.Equal(t, "end", OutcomeEnd.String())
	assert.Equal(t, "outcome(0)", Outcome(0).String())

	text, err := OutcomeEnd.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "end", string(text))
}

func TestChainHooks(t *testing.T) {
	var calls []string
	first := Hooks{
		OnStageStart: func(ctx context.Context, node string, step int) { calls = append(calls, "first start "+node) },
		OnRoute:      func(ctx context.Context, from string, outcome Outcome, to string) { calls = append(calls, "first route "+from) },
	}
	second := Hooks{
		OnStageStart: func(ctx context.Context, node string, step int) { calls = append(calls, "second start "+node) },
		OnStageEnd: func(ctx context.Context, node string, step int, elapsed time.Duration, err error) {
			calls = append(calls, "second end "+node)
		},
	}

	b := NewBuilder[testState, testUpdate](mergeTest)
	require.NoError(t, b.AddNode("a", visit("a")))
	require.NoError(t, b.AddEdge("a", End))
	require.NoError(t, b.SetEntry("a"))
	g, err := b.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), testState{}, WithHooks(ChainHooks(first, Hooks{}, second)))
	require.NoError(t, err)
	assert.Equal(t, []string{"first start a", "second start a", "second end a", "first route a"}, calls)

	empty := ChainHooks()
	assert.Nil(t, empty.OnStageStart)
	assert.Nil(t, empty.OnStageEnd)
	assert.Nil(t, empty.OnRoute)
}
