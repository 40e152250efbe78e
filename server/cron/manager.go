package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/server/config"
	"github.com/nomis52/docscore/server/runner"
)

// Evaluator runs an evaluation and waits for it to finish.
type Evaluator interface {
	Evaluate(ctx context.Context, trigger string, candidate, requirement extract.Handle) (runner.RunSummary, error)
}

// CronTriggerManager owns one CronTrigger per configured job.
type CronTriggerManager struct {
	triggers []*CronTrigger
	logger   *slog.Logger
}

// NewCronTriggerManager creates a trigger for every job. Each firing runs
// one evaluation through evaluator with trigger "cron". Invalid jobs are
// reported as described by ParseJobs.
func NewCronTriggerManager(jobs []config.CronJob, evaluator Evaluator, logger *slog.Logger) (*CronTriggerManager, error) {
	parsed, err := ParseJobs(jobs)
	if err != nil {
		return nil, err
	}
	logger = logger.With("component", "cron")

	m := &CronTriggerManager{logger: logger}
	for _, job := range parsed {
		t, err := NewCronTrigger(job.Name, job.Schedule, evaluateJob(job, evaluator, logger), logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for %q: %w", job.Name, err)
		}
		m.triggers = append(m.triggers, t)
		logger.Info("cron job registered",
			"job", job.Name,
			"schedule", job.Schedule,
			"candidate", job.Candidate.String(),
			"requirement", job.Requirement.String(),
			"next_run", t.NextRun())
	}
	return m, nil
}

func evaluateJob(job Job, evaluator Evaluator, logger *slog.Logger) Callback {
	return func(ctx context.Context) error {
		summary, err := evaluator.Evaluate(ctx, runner.TriggerCron, job.Candidate, job.Requirement)
		if err != nil {
			return fmt.Errorf("run %s: %w", summary.ID, err)
		}
		attrs := []any{"job", job.Name, "run_id", summary.ID, "termination", summary.Termination}
		if summary.Result != nil {
			attrs = append(attrs, "final_score", summary.Result.FinalScore)
		}
		logger.Info("scheduled evaluation scored", attrs...)
		return nil
	}
}

// Start starts every trigger. It returns immediately.
func (m *CronTriggerManager) Start(ctx context.Context) {
	for _, t := range m.triggers {
		t.Start(ctx)
	}
}

// Len returns the number of triggers.
func (m *CronTriggerManager) Len() int {
	return len(m.triggers)
}

// NextRun returns the earliest upcoming firing, or the zero time without
// triggers.
func (m *CronTriggerManager) NextRun() time.Time {
	var earliest time.Time
	for _, t := range m.triggers {
		if next := t.NextRun(); earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}

// Status returns the state of every trigger in configuration order.
func (m *CronTriggerManager) Status() []Status {
	out := make([]Status, len(m.triggers))
	for i, t := range m.triggers {
		out[i] = t.Status()
	}
	return out
}
