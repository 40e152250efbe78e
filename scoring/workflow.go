package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nomis52/docscore/embed"
	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/graph"
	"github.com/nomis52/docscore/judge"
	"github.com/nomis52/docscore/logging"
	"github.com/nomis52/docscore/metrics"
	"github.com/nomis52/docscore/progress"
)

const (
	// DefaultMaxIterations caps the refinement loop.
	DefaultMaxIterations = 3
	// DefaultFeedbackThreshold is the completeness score that ends the loop.
	DefaultFeedbackThreshold = 80.0
	// stepBudgetFactor sizes the default step budget as a multiple of
	// MaxIterations times the number of nodes.
	stepBudgetFactor = 2
)

// Criterion names a judged aspect of the candidate.
type Criterion struct {
	// Title is used in explanations, e.g. "Technical Skills".
	Title string `yaml:"title" json:"title"`
	// Focus is the label sent to the judge, e.g. "technical skills and experience".
	Focus string `yaml:"focus" json:"focus"`
}

// Config holds the workflow settings. They are fixed for the lifetime of a Workflow.
type Config struct {
	MaxIterations     int       `yaml:"max_iterations" json:"max_iterations"`
	FeedbackThreshold float64   `yaml:"feedback_threshold" json:"feedback_threshold"`
	Weights           Weights   `yaml:"weights" json:"weights"`
	CriterionA        Criterion `yaml:"criterion_a" json:"criterion_a"`
	CriterionB        Criterion `yaml:"criterion_b" json:"criterion_b"`
	// StepBudget caps node visits per run. Zero selects
	// 2 * MaxIterations * number of nodes.
	StepBudget int `yaml:"step_budget" json:"step_budget"`
}

// DefaultConfig returns the default workflow settings.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     DefaultMaxIterations,
		FeedbackThreshold: DefaultFeedbackThreshold,
		Weights:           DefaultWeights(),
		CriterionA:        Criterion{Title: "Technical Skills", Focus: "technical skills and experience"},
		CriterionB:        Criterion{Title: "Cultural Fit", Focus: "cultural fit and soft skills"},
	}
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.FeedbackThreshold == 0 {
		c.FeedbackThreshold = d.FeedbackThreshold
	}
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	if c.CriterionA.Focus == "" {
		c.CriterionA = d.CriterionA
	}
	if c.CriterionB.Focus == "" {
		c.CriterionB = d.CriterionB
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxIterations, c.MaxIterations)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.FeedbackThreshold) || c.FeedbackThreshold < 0 || c.FeedbackThreshold > 100 {
		return fmt.Errorf("%w: feedback threshold %v outside [0, 100]", ErrInvalidConfig, c.FeedbackThreshold)
	}
	if c.CriterionA.Focus == "" || c.CriterionB.Focus == "" {
		return fmt.Errorf("%w: both criteria need a focus", ErrInvalidConfig)
	}
	if c.StepBudget < 0 {
		return fmt.Errorf("%w: step budget %d is negative", ErrInvalidConfig, c.StepBudget)
	}
	return nil
}

// Deps are the collaborators used by the stages.
type Deps struct {
	Extractor extract.Extractor
	Embedder  embed.Embedder
	Scorer    judge.Scorer
}

// Result is the outcome of a successful evaluation.
type Result struct {
	FinalScore      float64 `json:"final_score"`
	Explanation     string  `json:"explanation"`
	CriterionAScore float64 `json:"criterion_a_score"`
	CriterionBScore float64 `json:"criterion_b_score"`
	// EmbeddingScore is the cosine similarity rescaled to 0-100.
	EmbeddingScore float64 `json:"embedding_score"`
	Iterations     int     `json:"iterations"`
	// Converged is false when the run stopped at the iteration cap.
	Converged bool `json:"-"`
}

// Workflow scores a candidate document against a requirement document. It
// is safe for concurrent use; every Run has its own state.
type Workflow struct {
	cfg     Config
	graph   *graph.Graph[State, Update]
	budget  int
	logger  *slog.Logger
	metrics *metrics.Workflow
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger.With("component", "workflow")
	}
}

// WithMetrics records stage and evaluation metrics.
func WithMetrics(m *metrics.Workflow) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// NewWorkflow validates cfg and compiles the workflow graph.
func NewWorkflow(cfg Config, deps Deps, opts ...Option) (*Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Extractor == nil || deps.Embedder == nil || deps.Scorer == nil {
		return nil, fmt.Errorf("%w: extractor, embedder and scorer are required", ErrInvalidConfig)
	}
	for _, c := range []*Criterion{&cfg.CriterionA, &cfg.CriterionB} {
		if c.Title == "" {
			c.Title = c.Focus
		}
	}

	w := &Workflow{
		cfg:    cfg,
		logger: slog.Default().With("component", "workflow"),
	}
	for _, opt := range opts {
		opt(w)
	}

	st := &stages{
		extractor:  deps.Extractor,
		embedder:   deps.Embedder,
		scorer:     deps.Scorer,
		weights:    cfg.Weights,
		criterionA: cfg.CriterionA,
		criterionB: cfg.CriterionB,
		threshold:  cfg.FeedbackThreshold,
	}
	g, err := build(st, RefinementDecider{MaxIterations: cfg.MaxIterations})
	if err != nil {
		return nil, fmt.Errorf("building workflow graph: %w", err)
	}
	w.graph = g

	w.budget = cfg.StepBudget
	if w.budget == 0 {
		w.budget = stepBudgetFactor * cfg.MaxIterations * len(g.Nodes())
	}

	w.logger.Info("workflow initialized", "max_iterations", cfg.MaxIterations, "step_budget", w.budget)
	return w, nil
}

func build(st *stages, decider RefinementDecider) (*graph.Graph[State, Update], error) {
	b := graph.NewBuilder[State, Update](Merge)

	nodes := []struct {
		name  string
		stage graph.Stage[State, Update]
	}{
		{NodeExtract, owned(NodeExtract, func(u *Update) **Documents { return &u.Documents }, st.extract)},
		{NodeEmbed, owned(NodeEmbed, func(u *Update) **Embeddings { return &u.Embeddings }, st.embed)},
		{NodeSimilarity, owned(NodeSimilarity, func(u *Update) **Similarity { return &u.Similarity }, st.similarity)},
		{NodeCriterionA, owned(NodeCriterionA, func(u *Update) **Assessment { return &u.CriterionA }, st.assessA)},
		{NodeCriterionB, owned(NodeCriterionB, func(u *Update) **Assessment { return &u.CriterionB }, st.assessB)},
		{NodeCombine, owned(NodeCombine, func(u *Update) **Combined { return &u.Combined }, st.combine)},
		{NodeFeedback, owned(NodeFeedback, func(u *Update) **Feedback { return &u.Feedback }, st.feedback)},
	}
	for i, n := range nodes {
		if err := b.AddNode(n.name, n.stage); err != nil {
			return nil, err
		}
		if i > 0 {
			if err := b.AddEdge(nodes[i-1].name, n.name); err != nil {
				return nil, err
			}
		}
	}
	if err := b.AddConditionalEdge(NodeFeedback, decider.Decide, map[graph.Outcome]string{
		graph.OutcomeContinue: NodeCriterionA,
		graph.OutcomeEnd:      graph.End,
	}); err != nil {
		return nil, err
	}
	if err := b.SetEntry(NodeExtract); err != nil {
		return nil, err
	}
	return b.Compile()
}

// Config returns the settings the workflow was built with.
func (w *Workflow) Config() Config {
	return w.cfg
}

// StepBudget returns the node visit cap of a run.
func (w *Workflow) StepBudget() int {
	return w.budget
}

// Graph returns the compiled topology.
func (w *Workflow) Graph() *graph.Graph[State, Update] {
	return w.graph
}

// RunOption configures a single evaluation.
type RunOption func(*runOptions)

type runOptions struct {
	logger *slog.Logger
	hook   logging.LoggerHook
	status *progress.StatusHandler
	hooks  graph.Hooks
}

// WithRunLogger replaces the base logger for one run, e.g. to add a run ID.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(o *runOptions) {
		o.logger = logger
	}
}

// WithLoggerHook wraps every stage logger, e.g. to capture stage logs.
func WithLoggerHook(hook logging.LoggerHook) RunOption {
	return func(o *runOptions) {
		o.hook = hook
	}
}

// WithStatusHandler publishes stage status messages to handler.
func WithStatusHandler(handler *progress.StatusHandler) RunOption {
	return func(o *runOptions) {
		o.status = handler
	}
}

// WithGraphHooks adds executor callbacks.
func WithGraphHooks(hooks graph.Hooks) RunOption {
	return func(o *runOptions) {
		o.hooks = hooks
	}
}

type runOptionsKey struct{}

func envFor(ctx context.Context, node string, iteration int) stageEnv {
	o, _ := ctx.Value(runOptionsKey{}).(*runOptions)
	if o == nil {
		o = &runOptions{logger: slog.Default()}
	}
	logger := o.logger.With("stage", node, "iteration", iteration)
	if o.hook != nil {
		logger = o.hook.LoggerForStage(logger, node)
	}
	return stageEnv{
		log:    logger,
		status: progress.NewStatusLine(node, logger, o.status),
	}
}

// Run evaluates candidate against requirement. It returns an error if any
// stage fails, the context is cancelled or the step budget is exhausted.
// Reaching the iteration cap is not an error.
func (w *Workflow) Run(ctx context.Context, candidate, requirement extract.Handle, opts ...RunOption) (Result, error) {
	o := &runOptions{logger: w.logger}
	for _, opt := range opts {
		opt(o)
	}
	ctx = context.WithValue(ctx, runOptionsKey{}, o)

	logger := o.logger.With("candidate", candidate.Name, "requirement", requirement.Name)
	logger.Info("starting evaluation")
	start := time.Now()

	final, err := w.graph.Run(ctx, NewState(candidate, requirement),
		graph.WithStepBudget(w.budget),
		graph.WithHooks(graph.ChainHooks(w.observe(logger, o.status), o.hooks)),
	)

	var res Result
	if err == nil {
		res, err = resultFrom(final)
	}
	termination := Classify(res, err)
	if w.metrics != nil {
		w.metrics.EvaluationFinished(string(termination), termination.OK(), res.Iterations, res.FinalScore)
	}

	if err != nil {
		logger.Error("evaluation failed", "termination", string(termination), "duration", time.Since(start), "error", err)
		return Result{}, err
	}
	if termination == TerminationMaxIterations {
		logger.Warn("reached iteration limit, returning last pass", "iterations", res.Iterations)
	}
	logger.Info("evaluation finished",
		"termination", string(termination),
		"final_score", res.FinalScore,
		"iterations", res.Iterations,
		"duration", time.Since(start))
	return res, nil
}

// observe returns executor hooks for logging, metrics and live status.
func (w *Workflow) observe(logger *slog.Logger, status *progress.StatusHandler) graph.Hooks {
	iteration := 1
	return graph.Hooks{
		OnStageStart: func(ctx context.Context, node string, step int) {
			logger.Debug("stage started", "stage", node, "step", step, "iteration", iteration)
			if status != nil {
				status.Enter(node, iteration)
			}
		},
		OnStageEnd: func(ctx context.Context, node string, step int, elapsed time.Duration, err error) {
			if err != nil {
				logger.Warn("stage failed", "stage", node, "step", step, "duration", elapsed, "error", err)
			} else {
				logger.Debug("stage finished", "stage", node, "step", step, "duration", elapsed)
			}
			if w.metrics != nil {
				w.metrics.StageFinished(node, elapsed, err)
			}
			if status != nil {
				status.Leave()
			}
		},
		OnRoute: func(ctx context.Context, from string, outcome graph.Outcome, to string) {
			if outcome == graph.OutcomeContinue {
				iteration++
				logger.Info("refining evaluation", "iteration", iteration)
			}
		},
	}
}

func resultFrom(s State) (Result, error) {
	combined, err := need(s.Combined, "combined")
	if err != nil {
		return Result{}, err
	}
	a, err := need(s.CriterionA, "criterion_a")
	if err != nil {
		return Result{}, err
	}
	b, err := need(s.CriterionB, "criterion_b")
	if err != nil {
		return Result{}, err
	}
	sim, err := need(s.Similarity, "similarity")
	if err != nil {
		return Result{}, err
	}
	return Result{
		FinalScore:      combined.FinalScore,
		Explanation:     combined.Explanation,
		CriterionAScore: a.Score,
		CriterionBScore: b.Score,
		EmbeddingScore:  sim.Cosine * 100,
		Iterations:      s.Iteration,
		Converged:       s.Feedback != nil && s.Feedback.Status == StatusNoChangesNeeded,
	}, nil
}
