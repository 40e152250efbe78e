// Package handlers provides HTTP handlers for the docscore server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"context"
	"time"

	"github.com/nomis52/docscore/config"
	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/scoring"
	"github.com/nomis52/docscore/server/cron"
	"github.com/nomis52/docscore/server/runner"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// WorkflowProvider provides access to the current scoring workflow.
type WorkflowProvider interface {
	Workflow() *scoring.Workflow
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// Evaluator runs evaluations and waits for their result.
type Evaluator interface {
	Evaluate(ctx context.Context, trigger string, candidate, requirement extract.Handle) (runner.RunSummary, error)
}

// HistoryProvider provides access to run history.
type HistoryProvider interface {
	History() []runner.RunSummary
	Stages(id string) ([]runner.StageExecution, bool)
}

// StatusProvider provides the live state of the server.
type StatusProvider interface {
	WorkflowProvider
	Active() []runner.RunProgress
	NextRun() *time.Time
	CronJobs() []cron.Status
}
