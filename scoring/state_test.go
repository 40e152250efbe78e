package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/graph"
)

func TestNewState(t *testing.T) {
	s := NewState(extract.Bytes("cv.txt", nil), extract.Bytes("job.txt", nil))
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, "cv.txt", s.Candidate.Name)
	assert.Nil(t, s.Documents)
	assert.Nil(t, s.Feedback)
}

func TestMerge(t *testing.T) {
	s := NewState(extract.Handle{}, extract.Handle{})
	s = Merge(s, Update{Documents: &Documents{Candidate: "c", Requirement: "r"}})
	s = Merge(s, Update{Similarity: &Similarity{Cosine: 0.5}})

	require.NotNil(t, s.Documents)
	assert.Equal(t, "c", s.Documents.Candidate)
	assert.Equal(t, 0.5, s.Similarity.Cosine)
	assert.Equal(t, 1, s.Iteration)

	t.Run("replaces present groups only", func(t *testing.T) {
		next := Merge(s, Update{Similarity: &Similarity{Cosine: 0.9}})
		assert.Equal(t, 0.9, next.Similarity.Cosine)
		assert.Same(t, s.Documents, next.Documents)
	})

	t.Run("iteration never decreases", func(t *testing.T) {
		next := Merge(s, Update{Iteration: 3})
		assert.Equal(t, 3, next.Iteration)
		next = Merge(next, Update{Iteration: 2})
		assert.Equal(t, 3, next.Iteration)
		next = Merge(next, Update{})
		assert.Equal(t, 3, next.Iteration)
	})

	t.Run("does not touch the input", func(t *testing.T) {
		before := s
		_ = Merge(s, Update{Iteration: 5, Feedback: &Feedback{Status: StatusChangesNeeded}})
		assert.Equal(t, before, s)
	})
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{name: "default", weights: DefaultWeights()},
		{name: "all similarity", weights: Weights{Similarity: 1}},
		{name: "thirds", weights: Weights{Similarity: 1.0 / 3, CriterionA: 1.0 / 3, CriterionB: 1.0 / 3}},
		{name: "sum below one", weights: Weights{Similarity: 0.3, CriterionA: 0.3, CriterionB: 0.3}, wantErr: true},
		{name: "sum above one", weights: Weights{Similarity: 0.5, CriterionA: 0.5, CriterionB: 0.5}, wantErr: true},
		{name: "negative", weights: Weights{Similarity: -0.2, CriterionA: 0.6, CriterionB: 0.6}, wantErr: true},
		{name: "nan", weights: Weights{Similarity: math.NaN(), CriterionA: 0.5, CriterionB: 0.5}, wantErr: true},
		{name: "zero", weights: Weights{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWeights)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeights_Combine(t *testing.T) {
	w := DefaultWeights()

	// 0.3*80 + 0.4*85 + 0.3*75
	assert.InDelta(t, 80.5, w.Combine(0.8, 85, 75), 1e-9)
	assert.InDelta(t, 100.0, w.Combine(1, 100, 100), 1e-9)
	assert.InDelta(t, -30.0, w.Combine(-1, 0, 0), 1e-9)
	assert.InDelta(t, 70.0, w.Combine(0, 100, 100), 1e-9)
}

func TestRefinementDecider(t *testing.T) {
	d := RefinementDecider{MaxIterations: 3}

	tests := []struct {
		name      string
		iteration int
		feedback  *Feedback
		want      graph.Outcome
		wantNext  int
	}{
		{name: "converged", iteration: 1, feedback: &Feedback{Status: StatusNoChangesNeeded}, want: graph.OutcomeEnd},
		{name: "converged at cap", iteration: 3, feedback: &Feedback{Status: StatusNoChangesNeeded}, want: graph.OutcomeEnd},
		{name: "changes needed", iteration: 1, feedback: &Feedback{Status: StatusChangesNeeded}, want: graph.OutcomeContinue, wantNext: 2},
		{name: "changes needed at cap", iteration: 3, feedback: &Feedback{Status: StatusChangesNeeded}, want: graph.OutcomeEnd},
		{name: "past cap", iteration: 4, feedback: &Feedback{Status: StatusChangesNeeded}, want: graph.OutcomeEnd},
		{name: "no feedback", iteration: 2, want: graph.OutcomeContinue, wantNext: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Iteration: tt.iteration, Feedback: tt.feedback}
			got := d.Decide(s)
			assert.Equal(t, tt.want, got.Outcome)
			assert.Equal(t, tt.wantNext, got.Update.Iteration)
			assert.Nil(t, got.Update.CriterionA)
			assert.Nil(t, got.Update.Feedback)
		})
	}
}

func TestOwned(t *testing.T) {
	t.Run("writes only its slot", func(t *testing.T) {
		stage := owned(NodeSimilarity, func(u *Update) **Similarity { return &u.Similarity },
			func(ctx context.Context, env stageEnv, s State) (*Similarity, error) {
				env.status.Set("computing")
				return &Similarity{Cosine: 0.25}, nil
			})

		u, err := stage.Run(context.Background(), NewState(extract.Handle{}, extract.Handle{}))
		require.NoError(t, err)
		assert.Equal(t, Update{Similarity: &Similarity{Cosine: 0.25}}, u)
	})

	t.Run("nil output", func(t *testing.T) {
		stage := owned(NodeCombine, func(u *Update) **Combined { return &u.Combined },
			func(ctx context.Context, env stageEnv, s State) (*Combined, error) {
				return nil, nil
			})

		_, err := stage.Run(context.Background(), State{})
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		stage := owned(NodeCombine, func(u *Update) **Combined { return &u.Combined },
			func(ctx context.Context, env stageEnv, s State) (*Combined, error) {
				return &Combined{}, boom
			})

		u, err := stage.Run(context.Background(), State{})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, Update{}, u)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		err  error
		want Termination
	}{
		{name: "converged", res: Result{Converged: true}, want: TerminationConverged},
		{name: "max iterations", res: Result{}, want: TerminationMaxIterations},
		{name: "step budget", err: &graph.StageError{Err: graph.ErrStepBudgetExceeded}, want: TerminationStepBudgetExceeded},
		{name: "cancelled", err: context.Canceled, want: TerminationCancelled},
		{name: "deadline", err: context.DeadlineExceeded, want: TerminationCancelled},
		{name: "other", err: errors.New("boom"), want: TerminationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.res, tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.err == nil, got.OK())
		})
	}
}

func TestRefineFocus(t *testing.T) {
	assert.Equal(t, "skills", refineFocus("skills", nil))
	assert.Equal(t, "skills", refineFocus("skills", &Feedback{Status: StatusNoChangesNeeded, Text: "fine"}))
	assert.Equal(t, "skills", refineFocus("skills", &Feedback{Status: StatusChangesNeeded, Text: "  "}))
	assert.Equal(t,
		"skills, and address this reviewer feedback on the previous evaluation: mention Go",
		refineFocus("skills", &Feedback{Status: StatusChangesNeeded, Text: "mention Go"}))
}
