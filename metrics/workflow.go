package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric registered by NewWorkflow in scrape mode.
const Namespace = "docscore"

// Workflow records evaluation and stage metrics.
type Workflow struct {
	evaluations   CounterVec
	stageDuration HistogramVec
	stageFailures CounterVec
	iterations    HistogramVec
	finalScore    HistogramVec
	inFlight      Gauge
}

// NewWorkflow registers the evaluation metrics with reg.
func NewWorkflow(reg Registry) (*Workflow, error) {
	m := &Workflow{}
	var err error

	if m.evaluations, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "evaluations_total",
		Help:      "Finished evaluations by outcome.",
	}, []string{"outcome"}); err != nil {
		return nil, err
	}

	if m.stageDuration, err = reg.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of workflow stage invocations.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"}); err != nil {
		return nil, err
	}

	if m.stageFailures, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "stage_failures_total",
		Help:      "Failed stage invocations.",
	}, []string{"stage"}); err != nil {
		return nil, err
	}

	if m.iterations, err = reg.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "evaluation_iterations",
		Help:      "Refinement passes per successful evaluation.",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
	}, []string{"outcome"}); err != nil {
		return nil, err
	}

	if m.finalScore, err = reg.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "evaluation_final_score",
		Help:      "Final weighted score of successful evaluations.",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	}, []string{"outcome"}); err != nil {
		return nil, err
	}

	if m.inFlight, err = reg.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "evaluations_in_flight",
		Help:      "Evaluations currently running.",
	}); err != nil {
		return nil, fmt.Errorf("registering in-flight gauge: %w", err)
	}

	return m, nil
}

// StageFinished records one stage invocation.
func (m *Workflow) StageFinished(stage string, elapsed time.Duration, err error) {
	m.stageDuration.With(prometheus.Labels{"stage": stage}).Observe(elapsed.Seconds())
	if err != nil {
		m.stageFailures.With(prometheus.Labels{"stage": stage}).Inc()
	}
}

// EvaluationFinished records a finished evaluation. iterations and score are
// only observed when ok is true.
func (m *Workflow) EvaluationFinished(outcome string, ok bool, iterations int, score float64) {
	labels := prometheus.Labels{"outcome": outcome}
	m.evaluations.With(labels).Inc()
	if ok {
		m.iterations.With(labels).Observe(float64(iterations))
		m.finalScore.With(labels).Observe(score)
	}
}

// SetInFlight sets the number of running evaluations.
func (m *Workflow) SetInFlight(n int) {
	m.inFlight.Set(float64(n))
}
