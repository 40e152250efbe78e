// Package cron runs evaluations on cron schedules.
//
//	m, err := cron.NewCronTriggerManager(cfg.Cron, runner, logger)
//	if err != nil {
//		return err
//	}
//	m.Start(ctx) // returns immediately, triggers stop when ctx is done
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Callback is called each time a trigger fires.
type Callback func(ctx context.Context) error

// Status describes a trigger's schedule and its most recent firing.
type Status struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   time.Time  `json:"next_run"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Skipped   int        `json:"skipped,omitempty"`
}

// CronTrigger calls a Callback on a cron schedule. A firing that comes due
// while the previous call is still running is skipped.
type CronTrigger struct {
	name     string
	spec     string
	schedule cron.Schedule
	callback Callback
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	lastRun *time.Time
	lastErr error
	skipped int
}

// NewCronTrigger parses spec, a five field cron expression or a descriptor
// such as "@daily". It returns ErrInvalidCronSpec for bad specs.
func NewCronTrigger(name, spec string, callback Callback, logger *slog.Logger) (*CronTrigger, error) {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &CronTrigger{
		name:     name,
		spec:     spec,
		schedule: schedule,
		callback: callback,
		logger:   logger.With("trigger", name),
		now:      time.Now,
	}, nil
}

// Name returns the trigger name.
func (ct *CronTrigger) Name() string {
	return ct.name
}

// NextRun returns the next time the trigger fires.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(ct.now())
}

// Status returns a snapshot of the trigger's state.
func (ct *CronTrigger) Status() Status {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	s := Status{
		Name:     ct.name,
		Schedule: ct.spec,
		NextRun:  ct.schedule.Next(ct.now()),
		Running:  ct.running,
		LastRun:  ct.lastRun,
		Skipped:  ct.skipped,
	}
	if ct.lastErr != nil {
		s.LastError = ct.lastErr.Error()
	}
	return s
}

// Start schedules the trigger in the background until ctx is done.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		next := ct.schedule.Next(ct.now())
		timer := time.NewTimer(time.Until(next))
		ct.logger.Debug("next scheduled evaluation", "next_run", next)

		select {
		case <-ctx.Done():
			timer.Stop()
			ct.logger.Debug("cron trigger stopped")
			return
		case <-timer.C:
			go ct.fire(ctx)
		}
	}
}

// fire runs the callback unless the previous call is still in progress.
// It reports whether the callback ran.
func (ct *CronTrigger) fire(ctx context.Context) bool {
	ct.mu.Lock()
	if ct.running {
		ct.skipped++
		ct.mu.Unlock()
		ct.logger.Warn("skipping scheduled evaluation, previous run still in progress")
		return false
	}
	ct.running = true
	started := ct.now()
	ct.mu.Unlock()

	ct.logger.Info("starting scheduled evaluation")
	err := ct.callback(ctx)
	if err != nil {
		ct.logger.Warn("scheduled evaluation failed", "error", err)
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.running = false
	ct.lastRun = &started
	ct.lastErr = err
	return true
}
