package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeRegistry_RuntimeCollectors(t *testing.T) {
	registry, err := NewScrapeRegistry()
	require.NoError(t, err)

	body := scrape(t, registry)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "go_build_info")
}

func TestScrapeRegistry_Register(t *testing.T) {
	registry, err := NewScrapeRegistry()
	require.NoError(t, err)

	g, err := registry.NewGauge(prometheus.GaugeOpts{Namespace: "docscore", Name: "workflow_step_budget"})
	require.NoError(t, err)
	g.Set(42)

	vec, err := registry.NewCounterVec(prometheus.CounterOpts{Namespace: "docscore", Name: "judge_requests_total"}, []string{"kind"})
	require.NoError(t, err)
	vec.With(prometheus.Labels{"kind": "completeness"}).Add(2)

	body := scrape(t, registry)
	assert.Contains(t, body, "docscore_workflow_step_budget 42")
	assert.Contains(t, body, `docscore_judge_requests_total{kind="completeness"} 2`)

	_, err = registry.NewGauge(prometheus.GaugeOpts{Namespace: "docscore", Name: "workflow_step_budget"})
	assert.ErrorContains(t, err, `registering "workflow_step_budget"`)
}
