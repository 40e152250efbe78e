package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, registry *ScrapeRegistry) string {
	t.Helper()
	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func recordSample(m *Workflow) {
	m.StageFinished("criterion_a", 1500*time.Millisecond, nil)
	m.StageFinished("criterion_a", 500*time.Millisecond, errors.New("boom"))
	m.EvaluationFinished("converged", true, 2, 81.5)
	m.EvaluationFinished("step_budget_exceeded", false, 0, 0)
	m.SetInFlight(3)
}

func TestWorkflow_Scrape(t *testing.T) {
	registry, err := NewScrapeRegistry()
	require.NoError(t, err)
	m, err := NewWorkflow(registry)
	require.NoError(t, err)

	recordSample(m)

	body := scrape(t, registry)
	assert.Contains(t, body, `docscore_evaluations_total{outcome="converged"} 1`)
	assert.Contains(t, body, `docscore_evaluations_total{outcome="step_budget_exceeded"} 1`)
	assert.Contains(t, body, `docscore_stage_failures_total{stage="criterion_a"} 1`)
	assert.Contains(t, body, `docscore_stage_duration_seconds_count{stage="criterion_a"} 2`)
	assert.Contains(t, body, `docscore_stage_duration_seconds_bucket{stage="criterion_a",le="1"} 1`)
	assert.Contains(t, body, `docscore_evaluation_iterations_sum{outcome="converged"} 2`)
	assert.Contains(t, body, `docscore_evaluation_final_score_sum{outcome="converged"} 81.5`)
	assert.NotContains(t, body, `docscore_evaluation_iterations_count{outcome="step_budget_exceeded"}`)
	assert.Contains(t, body, "docscore_evaluations_in_flight 3")
}

func TestWorkflow_Push(t *testing.T) {
	rw := newRemoteWrite(t)
	registry := NewPushRegistry(PushConfig{URL: rw.URL, Job: "docscore"})
	m, err := NewWorkflow(registry)
	require.NoError(t, err)

	recordSample(m)
	require.NoError(t, registry.Flush(context.Background()))

	got := rw.values()
	assert.Equal(t, 1.0, got[`docscore_evaluations_total{job="docscore",outcome="converged"}`])
	assert.Equal(t, 1.0, got[`docscore_stage_failures_total{job="docscore",stage="criterion_a"}`])
	assert.Equal(t, 2.0, got[`docscore_stage_duration_seconds_count{job="docscore",stage="criterion_a"}`])
	assert.Equal(t, 81.5, got[`docscore_evaluation_final_score_sum{job="docscore",outcome="converged"}`])
	assert.Equal(t, 3.0, got[`docscore_evaluations_in_flight{job="docscore"}`])
}

func TestWorkflow_DuplicateRegistration(t *testing.T) {
	registry, err := NewScrapeRegistry()
	require.NoError(t, err)

	_, err = NewWorkflow(registry)
	require.NoError(t, err)
	_, err = NewWorkflow(registry)
	assert.Error(t, err)
}
