package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/scoring"
	"github.com/nomis52/docscore/server/config"
	"github.com/nomis52/docscore/server/runner"
)

type evaluation struct {
	trigger     string
	candidate   extract.Handle
	requirement extract.Handle
}

type mockEvaluator struct {
	mu    sync.Mutex
	calls []evaluation
	err   error
}

func (m *mockEvaluator) Evaluate(ctx context.Context, trigger string, candidate, requirement extract.Handle) (runner.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, evaluation{trigger, candidate, requirement})
	if m.err != nil {
		return runner.RunSummary{ID: "run-err"}, m.err
	}
	return runner.RunSummary{ID: "run-ok", Termination: "converged", Result: &scoring.Result{FinalScore: 80.5}}, nil
}

func testJobs() []config.CronJob {
	return []config.CronJob{
		{Name: "nightly", Schedule: "0 2 * * *", Candidate: "/srv/cv.md", Requirement: "/srv/job.md"},
		{Name: "hourly", Schedule: "@hourly", Candidate: "/srv/cv2.md", Requirement: "/srv/job.md"},
	}
}

func TestNewCronTriggerManager(t *testing.T) {
	manager, err := NewCronTriggerManager(testJobs(), &mockEvaluator{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, manager.Len())
	assert.Equal(t, "nightly", manager.triggers[0].Name())
}

func TestNewCronTriggerManager_InvalidJob(t *testing.T) {
	jobs := testJobs()
	jobs[1].Schedule = "whenever"

	manager, err := NewCronTriggerManager(jobs, &mockEvaluator{}, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCronSpec)
	assert.Nil(t, manager)
}

func TestCronTriggerManager_CallbackEvaluatesJob(t *testing.T) {
	eval := &mockEvaluator{}
	manager, err := NewCronTriggerManager(testJobs(), eval, testLogger())
	require.NoError(t, err)

	require.True(t, manager.triggers[1].fire(context.Background()))

	require.Len(t, eval.calls, 1)
	assert.Equal(t, runner.TriggerCron, eval.calls[0].trigger)
	assert.Equal(t, extract.File("/srv/cv2.md"), eval.calls[0].candidate)
	assert.Equal(t, extract.File("/srv/job.md"), eval.calls[0].requirement)
}

func TestCronTriggerManager_CallbackError(t *testing.T) {
	eval := &mockEvaluator{err: errors.New("judge unavailable")}
	manager, err := NewCronTriggerManager(testJobs(), eval, testLogger())
	require.NoError(t, err)

	err = manager.triggers[0].callback(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run run-err")
	assert.Contains(t, err.Error(), "judge unavailable")
}

func TestCronTriggerManager_NextRun(t *testing.T) {
	manager, err := NewCronTriggerManager(testJobs(), &mockEvaluator{}, testLogger())
	require.NoError(t, err)

	// The hourly job never fires after the nightly one.
	next := manager.NextRun()
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, 0, next.Minute())
	assert.False(t, next.After(manager.triggers[0].NextRun()))
	assert.True(t, next.Before(time.Now().Add(time.Hour+time.Second)))
}

func TestCronTriggerManager_Status(t *testing.T) {
	eval := &mockEvaluator{err: errors.New("judge unavailable")}
	manager, err := NewCronTriggerManager(testJobs(), eval, testLogger())
	require.NoError(t, err)

	manager.triggers[0].fire(context.Background())

	status := manager.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "nightly", status[0].Name)
	assert.Equal(t, "0 2 * * *", status[0].Schedule)
	assert.NotNil(t, status[0].LastRun)
	assert.Contains(t, status[0].LastError, "judge unavailable")
	assert.Equal(t, "hourly", status[1].Name)
	assert.Nil(t, status[1].LastRun)
	assert.Equal(t, 2, status[0].NextRun.Hour())
}

func TestCronTriggerManager_NoTriggers(t *testing.T) {
	manager, err := NewCronTriggerManager(nil, &mockEvaluator{}, testLogger())
	require.NoError(t, err)
	assert.True(t, manager.NextRun().IsZero())
	assert.Equal(t, 0, manager.Len())
}

func TestCronTriggerManager_StartAndCancel(t *testing.T) {
	eval := &mockEvaluator{}
	manager, err := NewCronTriggerManager(testJobs(), eval, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	eval.mu.Lock()
	defer eval.mu.Unlock()
	assert.Empty(t, eval.calls)
}
