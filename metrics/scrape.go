package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeRegistry registers metrics with a private Prometheus registry that
// also carries the Go runtime, process and build info collectors.
type ScrapeRegistry struct {
	prom *prometheus.Registry
}

// NewScrapeRegistry creates a ScrapeRegistry.
func NewScrapeRegistry() (*ScrapeRegistry, error) {
	r := &ScrapeRegistry{prom: prometheus.NewRegistry()}
	for name, c := range map[string]prometheus.Collector{
		"go":         collectors.NewGoCollector(),
		"process":    collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		"build info": collectors.NewBuildInfoCollector(),
	} {
		if err := r.prom.Register(c); err != nil {
			return nil, fmt.Errorf("registering %s collector: %w", name, err)
		}
	}
	return r, nil
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (r *ScrapeRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// NewGauge implements Registry.
func (r *ScrapeRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return register(r.prom, prometheus.NewGauge(opts), opts.Name)
}

// NewCounterVec implements Registry.
func (r *ScrapeRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	vec, err := register(r.prom, prometheus.NewCounterVec(opts, labels), opts.Name)
	if err != nil {
		return nil, err
	}
	return labeled[Counter](func(l prometheus.Labels) Counter { return vec.With(l) }), nil
}

// NewHistogramVec implements Registry.
func (r *ScrapeRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) (HistogramVec, error) {
	vec, err := register(r.prom, prometheus.NewHistogramVec(opts, labels), opts.Name)
	if err != nil {
		return nil, err
	}
	return labeled[Histogram](func(l prometheus.Labels) Histogram { return vec.With(l) }), nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		var zero C
		return zero, fmt.Errorf("registering %q: %w", name, err)
	}
	return c, nil
}
