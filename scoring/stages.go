package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nomis52/docscore/embed"
	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/graph"
	"github.com/nomis52/docscore/judge"
	"github.com/nomis52/docscore/progress"
)

// Node names.
const (
	NodeExtract    = "extract"
	NodeEmbed      = "embed"
	NodeSimilarity = "similarity"
	NodeCriterionA = "criterion_a"
	NodeCriterionB = "criterion_b"
	NodeCombine    = "combine"
	NodeFeedback   = "feedback"
)

// stageEnv is what a stage gets besides the state: a logger and a status
// line bound to the stage and the current run.
type stageEnv struct {
	log    *slog.Logger
	status *progress.StatusLine
}

// owned adapts a stage that produces a single typed group into a graph
// stage. The output lands in the one Update slot the stage owns, so a stage
// cannot write another stage's fields.
func owned[T any](node string, slot func(*Update) **T, run func(ctx context.Context, env stageEnv, s State) (*T, error)) graph.Stage[State, Update] {
	return graph.StageFunc[State, Update](func(ctx context.Context, s State) (Update, error) {
		env := envFor(ctx, node, s.Iteration)
		var out *T
		err := progress.CaptureError(env.status, func() error {
			var err error
			out, err = run(ctx, env, s)
			return err
		})
		if err != nil {
			return Update{}, err
		}
		if out == nil {
			return Update{}, fmt.Errorf("%w: stage %s produced no output", ErrMissingField, node)
		}
		var u Update
		*slot(&u) = out
		return u, nil
	})
}

// stages holds the collaborators shared by every run.
type stages struct {
	extractor  extract.Extractor
	embedder   embed.Embedder
	scorer     judge.Scorer
	weights    Weights
	criterionA Criterion
	criterionB Criterion
	threshold  float64
}

func (st *stages) extract(ctx context.Context, env stageEnv, s State) (*Documents, error) {
	env.status.Set("extracting " + s.Candidate.Name)
	candidate, err := st.extractor.Extract(ctx, s.Candidate)
	if err != nil {
		return nil, fmt.Errorf("extracting candidate %s: %w", s.Candidate.Name, err)
	}

	env.status.Set("extracting " + s.Requirement.Name)
	requirement, err := st.extractor.Extract(ctx, s.Requirement)
	if err != nil {
		return nil, fmt.Errorf("extracting requirement %s: %w", s.Requirement.Name, err)
	}

	env.log.Debug("extracted documents", "candidate_chars", len(candidate), "requirement_chars", len(requirement))
	return &Documents{Candidate: candidate, Requirement: requirement}, nil
}

func (st *stages) embed(ctx context.Context, env stageEnv, s State) (*Embeddings, error) {
	docs, err := need(s.Documents, "documents")
	if err != nil {
		return nil, err
	}

	env.status.Set("embedding documents")
	candidate, err := st.embedder.Embed(ctx, docs.Candidate)
	if err != nil {
		return nil, fmt.Errorf("embedding candidate: %w", err)
	}
	requirement, err := st.embedder.Embed(ctx, docs.Requirement)
	if err != nil {
		return nil, fmt.Errorf("embedding requirement: %w", err)
	}

	env.log.Debug("generated embeddings", "candidate_dims", len(candidate), "requirement_dims", len(requirement))
	return &Embeddings{Candidate: candidate, Requirement: requirement}, nil
}

func (st *stages) similarity(ctx context.Context, env stageEnv, s State) (*Similarity, error) {
	emb, err := need(s.Embeddings, "embeddings")
	if err != nil {
		return nil, err
	}

	cosine, err := embed.Cosine(emb.Candidate, emb.Requirement)
	if err != nil {
		return nil, fmt.Errorf("computing similarity: %w", err)
	}

	env.status.Set(fmt.Sprintf("embedding similarity %.4f", cosine))
	return &Similarity{Cosine: cosine}, nil
}

func (st *stages) assessA(ctx context.Context, env stageEnv, s State) (*Assessment, error) {
	return st.assess(ctx, env, s, st.criterionA)
}

func (st *stages) assessB(ctx context.Context, env stageEnv, s State) (*Assessment, error) {
	return st.assess(ctx, env, s, st.criterionB)
}

func (st *stages) assess(ctx context.Context, env stageEnv, s State, c Criterion) (*Assessment, error) {
	docs, err := need(s.Documents, "documents")
	if err != nil {
		return nil, err
	}

	focus := refineFocus(c.Focus, s.Feedback)
	env.status.Set(fmt.Sprintf("scoring %s (pass %d)", c.Focus, s.Iteration))
	j, err := st.scorer.Score(ctx, docs.Candidate, docs.Requirement, focus)
	if err == nil {
		err = j.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", c.Focus, err)
	}

	env.log.Info("criterion scored", "criterion", c.Title, "score", j.Score, "iteration", s.Iteration)
	env.log.Debug("criterion rationale", "criterion", c.Title, "rationale", j.Rationale)
	return &Assessment{Score: j.Score, Rationale: j.Rationale, Focus: focus}, nil
}

// refineFocus adds the reviewer's feedback from the previous pass to the focus label.
func refineFocus(focus string, fb *Feedback) string {
	if fb == nil || fb.Status != StatusChangesNeeded || strings.TrimSpace(fb.Text) == "" {
		return focus
	}
	return fmt.Sprintf("%s, and address this reviewer feedback on the previous evaluation: %s", focus, fb.Text)
}

func (st *stages) combine(ctx context.Context, env stageEnv, s State) (*Combined, error) {
	sim, err := need(s.Similarity, "similarity")
	if err != nil {
		return nil, err
	}
	a, err := need(s.CriterionA, "criterion_a")
	if err != nil {
		return nil, err
	}
	b, err := need(s.CriterionB, "criterion_b")
	if err != nil {
		return nil, err
	}

	final := st.weights.Combine(sim.Cosine, a.Score, b.Score)
	env.log.Info("combined scores",
		"embedding", sim.Cosine*100,
		"criterion_a", a.Score,
		"criterion_b", b.Score,
		"final", final)
	env.status.Set(fmt.Sprintf("final score %.2f", final))

	return &Combined{
		FinalScore:  final,
		Explanation: explanation(st.criterionA, st.criterionB, a, b, sim.Cosine),
	}, nil
}

func (st *stages) feedback(ctx context.Context, env stageEnv, s State) (*Feedback, error) {
	docs, err := need(s.Documents, "documents")
	if err != nil {
		return nil, err
	}
	a, err := need(s.CriterionA, "criterion_a")
	if err != nil {
		return nil, err
	}
	b, err := need(s.CriterionB, "criterion_b")
	if err != nil {
		return nil, err
	}
	combined, err := need(s.Combined, "combined")
	if err != nil {
		return nil, err
	}

	env.status.Set(fmt.Sprintf("reviewing evaluation (pass %d)", s.Iteration))
	j, err := st.scorer.Completeness(ctx, summary(st.criterionA, st.criterionB, a, b, combined), docs.Requirement)
	if err == nil {
		err = j.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("reviewing evaluation: %w", err)
	}

	status := StatusChangesNeeded
	if j.Score >= st.threshold {
		status = StatusNoChangesNeeded
	}
	env.log.Info("feedback evaluated", "status", string(status), "completeness", j.Score, "iteration", s.Iteration)
	env.status.Set(string(status))
	return &Feedback{Status: status, Completeness: j.Score, Text: j.Rationale}, nil
}

// explanation is the human readable breakdown of a combined score.
func explanation(ca, cb Criterion, a, b *Assessment, cosine float64) string {
	return fmt.Sprintf("%s Assessment: %s\n\n%s Assessment: %s\n\nEmbedding Similarity Score: %.2f/100 (semantic relevance between the candidate and the requirement)",
		ca.Title, a.Rationale,
		cb.Title, b.Rationale,
		cosine*100)
}

// summary is the evaluation shown to the judge by the feedback stage.
func summary(ca, cb Criterion, a, b *Assessment, c *Combined) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Score: %g\n", ca.Title, a.Score)
	fmt.Fprintf(&sb, "%s Explanation: %s\n", ca.Title, a.Rationale)
	fmt.Fprintf(&sb, "%s Score: %g\n", cb.Title, b.Score)
	fmt.Fprintf(&sb, "%s Explanation: %s\n", cb.Title, b.Rationale)
	fmt.Fprintf(&sb, "Overall Score: %g\n", c.FinalScore)
	fmt.Fprintf(&sb, "Overall Explanation: %s\n", c.Explanation)
	return sb.String()
}
