// Package metrics records evaluation metrics in one of two modes:
//   - scrape (server): a Prometheus registry exposed on /metrics
//   - push (CLI): buffered values sent to a remote write endpoint such as
//     VictoriaMetrics when the command finishes
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(float64)
}

// Counter is a monotonically increasing value.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram samples observations into buckets.
type Histogram interface {
	Observe(float64)
}

// CounterVec is a Counter partitioned by labels.
type CounterVec interface {
	With(prometheus.Labels) Counter
}

// HistogramVec is a Histogram partitioned by labels.
type HistogramVec interface {
	With(prometheus.Labels) Histogram
}

// Registry creates metrics. Implementations differ in how values leave the
// process.
type Registry interface {
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
	NewHistogramVec(opts prometheus.HistogramOpts, labels []string) (HistogramVec, error)
}

// labeled adapts a label lookup function to the *Vec interfaces.
type labeled[T any] func(prometheus.Labels) T

func (f labeled[T]) With(l prometheus.Labels) T {
	return f(l)
}
