package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

// DefaultPushTimeout bounds a Flush when PushConfig.Timeout is zero.
const DefaultPushTimeout = 30 * time.Second

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint, e.g.
	// "http://victoriametrics:8428". Samples go to URL + "/api/v1/write".
	URL string
	// Prefix replaces the namespace of every metric when set.
	Prefix string
	// Job and Instance are added as labels to every series.
	Job      string
	Instance string
	Timeout  time.Duration
}

// PushRegistry buffers metric values in memory. Flush sends the current
// value of every series in one remote write request.
type PushRegistry struct {
	url    string
	prefix string
	base   []prompb.Label
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	series map[string]*pushSeries
}

type pushSeries struct {
	labels []prompb.Label
	value  float64
}

// NewPushRegistry creates a PushRegistry. Nothing is sent until Flush.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultPushTimeout
	}
	var base []prompb.Label
	if cfg.Job != "" {
		base = append(base, prompb.Label{Name: "job", Value: cfg.Job})
	}
	if cfg.Instance != "" {
		base = append(base, prompb.Label{Name: "instance", Value: cfg.Instance})
	}
	return &PushRegistry{
		url:    strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		prefix: cfg.Prefix,
		base:   base,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
		series: make(map[string]*pushSeries),
	}
}

func (r *PushRegistry) name(namespace, subsystem, name string) string {
	if r.prefix != "" {
		namespace = r.prefix
	}
	return prometheus.BuildFQName(namespace, subsystem, name)
}

// set stores value under name and labels. add selects accumulation.
func (r *PushRegistry) set(name string, labels prometheus.Labels, value float64, add bool) {
	key, pl := r.seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[key]
	if !ok {
		s = &pushSeries{labels: pl}
		r.series[key] = s
	}
	if add {
		s.value += value
	} else {
		s.value = value
	}
}

func (r *PushRegistry) seriesKey(name string, labels prometheus.Labels) (string, []prompb.Label) {
	pl := make([]prompb.Label, 0, len(labels)+len(r.base)+1)
	pl = append(pl, prompb.Label{Name: "__name__", Value: name})
	pl = append(pl, r.base...)
	for k, v := range labels {
		pl = append(pl, prompb.Label{Name: k, Value: v})
	}
	sort.Slice(pl, func(i, j int) bool { return pl[i].Name < pl[j].Name })

	var sb strings.Builder
	for _, l := range pl {
		sb.WriteString(l.Name)
		sb.WriteByte('=')
		sb.WriteString(l.Value)
		sb.WriteByte(0)
	}
	return sb.String(), pl
}

// Len returns the number of buffered series.
func (r *PushRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.series)
}

// Flush sends every buffered series with the current time. Values are kept
// so counters keep accumulating across flushes.
func (r *PushRegistry) Flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.series) == 0 {
		r.mu.Unlock()
		return nil
	}
	ts := r.now().UnixMilli()
	req := &prompb.WriteRequest{Timeseries: make([]prompb.TimeSeries, 0, len(r.series))}
	for _, s := range r.series {
		req.Timeseries = append(req.Timeseries, prompb.TimeSeries{
			Labels:  s.labels,
			Samples: []prompb.Sample{{Value: s.value, Timestamp: ts}},
		})
	}
	r.mu.Unlock()

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(snappy.Encode(nil, data)))
	if err != nil {
		return fmt.Errorf("creating remote write request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending remote write: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote write returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// NewGauge implements Registry.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return pushGauge{r: r, name: r.name(opts.Namespace, opts.Subsystem, opts.Name), labels: opts.ConstLabels}, nil
}

// NewCounterVec implements Registry.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	name := r.name(opts.Namespace, opts.Subsystem, opts.Name)
	return labeled[Counter](func(l prometheus.Labels) Counter {
		return pushCounter{r: r, name: name, labels: mergeLabels(opts.ConstLabels, l)}
	}), nil
}

// NewHistogramVec implements Registry. Buckets default to
// prometheus.DefBuckets.
func (r *PushRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) (HistogramVec, error) {
	name := r.name(opts.Namespace, opts.Subsystem, opts.Name)
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	buckets = slices.Clone(buckets)
	slices.Sort(buckets)
	return labeled[Histogram](func(l prometheus.Labels) Histogram {
		return pushHistogram{r: r, name: name, buckets: buckets, labels: mergeLabels(opts.ConstLabels, l)}
	}), nil
}

func mergeLabels(constant, variable prometheus.Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(constant)+len(variable))
	for k, v := range constant {
		out[k] = v
	}
	for k, v := range variable {
		out[k] = v
	}
	return out
}

type pushGauge struct {
	r      *PushRegistry
	name   string
	labels prometheus.Labels
}

func (g pushGauge) Set(v float64) {
	g.r.set(g.name, g.labels, v, false)
}

type pushCounter struct {
	r      *PushRegistry
	name   string
	labels prometheus.Labels
}

func (c pushCounter) Inc() {
	c.Add(1)
}

func (c pushCounter) Add(v float64) {
	if v < 0 {
		panic("metrics: counter cannot decrease")
	}
	c.r.set(c.name, c.labels, v, true)
}

// pushHistogram keeps cumulative _bucket series, one per upper bound plus
// +Inf, next to _sum and _count.
type pushHistogram struct {
	r       *PushRegistry
	name    string
	buckets []float64
	labels  prometheus.Labels
}

func (h pushHistogram) Observe(v float64) {
	for _, le := range h.buckets {
		if v <= le {
			h.r.set(h.name+"_bucket", h.withLE(le), 1, true)
		} else {
			// Register the bucket so it is pushed with a zero count.
			h.r.set(h.name+"_bucket", h.withLE(le), 0, true)
		}
	}
	h.r.set(h.name+"_bucket", h.withLE(math.Inf(1)), 1, true)
	h.r.set(h.name+"_sum", h.labels, v, true)
	h.r.set(h.name+"_count", h.labels, 1, true)
}

func (h pushHistogram) withLE(le float64) prometheus.Labels {
	l := mergeLabels(h.labels, nil)
	l["le"] = formatLE(le)
	return l
}

func formatLE(le float64) string {
	if math.IsInf(le, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(le, 'g', -1, 64)
}
