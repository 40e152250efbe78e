// Package runner manages evaluation runs for the docscore server.
//
// The runner handles:
//   - Running evaluations synchronously (HTTP) or in the background (cron)
//   - Bounding the number of evaluations in flight
//   - Tracking live stage status and captured stage logs of in-flight runs
//   - Maintaining history of completed runs
//
// Each run uses the workflow current at its start, so a config reload takes
// effect on the next run without interrupting runs in progress.
//
// # Example
//
//	r := runner.New(logger, workflowProvider, runner.WithMaxConcurrent(4))
//
//	summary, err := r.Evaluate(ctx, runner.TriggerAPI, candidate, requirement)
//	if err != nil {
//	    // summary.Termination says why, e.g. "malformed_response"
//	}
//
//	for _, p := range r.Active() {
//	    fmt.Printf("%s: %s (pass %d)\n", p.ID, p.Stage, p.Iteration)
//	}
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/logging"
	"github.com/nomis52/docscore/metrics"
	"github.com/nomis52/docscore/progress"
	"github.com/nomis52/docscore/scoring"
)

const (
	defaultMaxHistorySize = 100
	defaultMaxConcurrent  = 4

	// maxLogsPerStage bounds the captured logs kept in history per stage.
	maxLogsPerStage = 500
)

var (
	// ErrBusy is returned by Submit when every evaluation slot is taken.
	ErrBusy = errors.New("evaluation capacity exhausted")
	// ErrNoWorkflow is returned when the provider has no workflow configured.
	ErrNoWorkflow = errors.New("no workflow available")
)

// WorkflowProvider provides the current scoring workflow.
type WorkflowProvider interface {
	Workflow() *scoring.Workflow
}

// Runner executes evaluations and records their history.
type Runner struct {
	logger   *slog.Logger
	provider WorkflowProvider
	store    StateStore
	slots    int64
	sem      *semaphore.Weighted
	metrics  *metrics.Workflow

	mu     sync.Mutex
	active map[string]*activeRun
}

// activeRun is the live state of one in-flight evaluation.
type activeRun struct {
	summary RunSummary
	status  *progress.StatusHandler
	logs    *logging.LogCollector
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for persistence.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithMaxConcurrent bounds the evaluations running at once.
func WithMaxConcurrent(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.slots = int64(n)
		}
	}
}

// WithMetrics reports the number of evaluations in flight.
func WithMetrics(m *metrics.Workflow) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// New creates a new Runner.
func New(logger *slog.Logger, provider WorkflowProvider, opts ...Option) *Runner {
	r := &Runner{
		logger:   logger.With("component", "runner"),
		provider: provider,
		store:    NewMemoryStore(defaultMaxHistorySize),
		slots:    defaultMaxConcurrent,
		active:   make(map[string]*activeRun),
	}

	// Apply options
	for _, opt := range opts {
		opt(r)
	}
	r.sem = semaphore.NewWeighted(r.slots)

	return r
}

// Evaluate runs an evaluation and waits for it to finish. It blocks until
// a slot is free or ctx is done. The returned summary is filled in even
// when the evaluation fails.
func (r *Runner) Evaluate(ctx context.Context, trigger string, candidate, requirement extract.Handle) (RunSummary, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return RunSummary{}, fmt.Errorf("waiting for an evaluation slot: %w", err)
	}
	defer r.sem.Release(1)

	a := r.begin(trigger, candidate, requirement)
	return r.execute(ctx, a, candidate, requirement)
}

// Submit starts an evaluation in the background and returns its run ID.
// Returns ErrBusy if every slot is taken.
func (r *Runner) Submit(ctx context.Context, trigger string, candidate, requirement extract.Handle) (string, error) {
	if !r.sem.TryAcquire(1) {
		return "", ErrBusy
	}

	a := r.begin(trigger, candidate, requirement)
	go func() {
		defer r.sem.Release(1)
		_, _ = r.execute(ctx, a, candidate, requirement)
	}()
	return a.summary.ID, nil
}

// Active returns the in-flight runs, oldest first.
func (r *Runner) Active() []RunProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RunProgress, 0, len(r.active))
	for _, a := range r.active {
		snap := a.status.Snapshot()
		out = append(out, RunProgress{
			RunSummary: a.summary,
			Stage:      snap.Stage,
			Iteration:  snap.Iteration,
			Stages:     stageExecutions(a),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(*out[j].StartedAt)
	})
	return out
}

// History returns the history of completed runs, most recent first.
func (r *Runner) History() []RunSummary {
	return r.store.History()
}

// Stages returns the stage executions of a run, in flight or finished.
func (r *Runner) Stages(id string) ([]StageExecution, bool) {
	r.mu.Lock()
	if a, ok := r.active[id]; ok {
		defer r.mu.Unlock()
		return stageExecutions(a), true
	}
	r.mu.Unlock()
	return r.store.Stages(id)
}

// begin registers a new in-flight run.
func (r *Runner) begin(trigger string, candidate, requirement extract.Handle) *activeRun {
	now := time.Now()
	a := &activeRun{
		summary: RunSummary{
			ID:          uuid.NewString(),
			Trigger:     trigger,
			Candidate:   candidate.String(),
			Requirement: requirement.String(),
			State:       RunStateRunning,
			StartedAt:   &now,
		},
		status: progress.NewStatusHandler(),
		logs:   logging.NewLogCollector(logging.WithMaxEntriesPerStage(maxLogsPerStage)),
	}

	r.mu.Lock()
	r.active[a.summary.ID] = a
	r.reportInFlight()
	r.mu.Unlock()

	r.logger.Info("starting evaluation", "run_id", a.summary.ID, "trigger", trigger)
	return a
}

func (r *Runner) execute(ctx context.Context, a *activeRun, candidate, requirement extract.Handle) (RunSummary, error) {
	w := r.provider.Workflow()
	if w == nil {
		return r.finish(a, scoring.Result{}, ErrNoWorkflow), ErrNoWorkflow
	}

	res, err := w.Run(ctx, candidate, requirement,
		scoring.WithRunLogger(r.logger.With("run_id", a.summary.ID)),
		scoring.WithLoggerHook(a.logs),
		scoring.WithStatusHandler(a.status),
	)
	return r.finish(a, res, err), err
}

// finish removes the run from the in-flight set and records the result.
func (r *Runner) finish(a *activeRun, res scoring.Result, err error) RunSummary {
	r.mu.Lock()
	delete(r.active, a.summary.ID)
	r.reportInFlight()
	r.mu.Unlock()

	summary := a.summary
	endTime := time.Now()
	summary.EndedAt = &endTime
	summary.Termination = string(scoring.Classify(res, err))

	duration := endTime.Sub(*summary.StartedAt)
	if err != nil {
		summary.State = RunStateFailed
		summary.Error = err.Error()
		r.logger.Error("evaluation failed", "run_id", summary.ID, "error", err, "duration", duration)
	} else {
		summary.State = RunStateSucceeded
		summary.Result = &res
		r.logger.Info("evaluation completed", "run_id", summary.ID, "final_score", res.FinalScore, "duration", duration)
	}

	if err := r.store.Save(summary, stageExecutions(a)); err != nil {
		r.logger.Error("failed to save run to store", "run_id", summary.ID, "error", err)
	}
	return summary
}

// reportInFlight must be called with r.mu held.
func (r *Runner) reportInFlight() {
	if r.metrics != nil {
		r.metrics.SetInFlight(len(r.active))
	}
}

// stageExecutions combines captured logs and status messages per stage, in
// the order the stages first ran.
func stageExecutions(a *activeRun) []StageExecution {
	statuses := a.status.All()
	order := a.logs.Stages()

	seen := make(map[string]bool, len(order))
	for _, stage := range order {
		seen[stage] = true
	}
	var extra []string
	for stage := range statuses {
		if !seen[stage] {
			extra = append(extra, stage)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	out := make([]StageExecution, 0, len(order))
	for _, stage := range order {
		out = append(out, StageExecution{
			Stage:  stage,
			Status: statuses[stage],
			Logs:   a.logs.GetLogs(stage),
		})
	}
	return out
}
