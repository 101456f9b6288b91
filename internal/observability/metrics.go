package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

// NewCounter returns the counter for name and labels, creating it if needed.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seriesKey(name, labels)
	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: labels}
	r.counters[key] = c
	return c
}

// NewGauge returns the gauge for name and labels, creating it if needed.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seriesKey(name, labels)
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[key] = g
	return g
}

// NewHistogram returns the histogram for name and labels, creating it if needed.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seriesKey(name, labels)
	if h, ok := r.histos[key]; ok {
		return h
	}
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[key] = h
	return h
}

// DefaultBuckets returns default histogram buckets for latency.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the time elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler returns an HTTP handler for Prometheus metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes metrics in Prometheus text format, series sorted.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	helped := map[string]bool{}
	header := func(name, typ, help string) {
		if helped[name] {
			return
		}
		helped[name] = true
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
	}

	for _, key := range sortedKeys(r.counters) {
		c := r.counters[key]
		c.mu.Lock()
		header(c.name, "counter", c.help)
		fmt.Fprintf(w, "%s%s %s\n", c.name, formatLabels(c.labels), formatFloat(c.value))
		c.mu.Unlock()
	}

	for _, key := range sortedKeys(r.gauges) {
		g := r.gauges[key]
		g.mu.Lock()
		header(g.name, "gauge", g.help)
		fmt.Fprintf(w, "%s%s %s\n", g.name, formatLabels(g.labels), formatFloat(g.value))
		g.mu.Unlock()
	}

	for _, key := range sortedKeys(r.histos) {
		h := r.histos[key]
		h.mu.Lock()
		header(h.name, "histogram", h.help)
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func writeHistogram(w io.Writer, h *Histogram) {
	// counts are already cumulative: Observe increments every bucket whose
	// bound is at least the value.
	for i, bound := range h.buckets {
		labels := copyLabels(h.labels)
		labels["le"] = formatFloat(bound)
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(labels), h.counts[i])
	}

	labels := copyLabels(h.labels)
	labels["le"] = "+Inf"
	fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(labels), h.count)
	fmt.Fprintf(w, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count%s %d\n", h.name, formatLabels(h.labels), h.count)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Quote(labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	result := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		result[k] = v
	}
	return result
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PipelineMetrics contains the metrics recorded by the job executor and the
// parse/convert stages.
type PipelineMetrics struct {
	Registry *MetricsRegistry

	// Executor
	BatchesTotal    *Counter
	JobsTotal       *Counter
	JobsFailedTotal *Counter
	JobDuration     *Histogram
	ActiveWorkers   *Gauge

	// Snapshot runs
	RunDuration *Histogram
	RunNodes    *Gauge
}

// RunBuckets suit whole-snapshot runs, from a handful of files to thousands.
func RunBuckets() []float64 {
	return []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900}
}

// NewPipelineMetrics creates the pipeline metrics on a fresh registry.
func NewPipelineMetrics() *PipelineMetrics {
	r := NewMetricsRegistry()

	return &PipelineMetrics{
		Registry: r,

		BatchesTotal:    r.NewCounter("batfish_batches_total", "Total executor batches", nil),
		JobsTotal:       r.NewCounter("batfish_jobs_total", "Total jobs executed", nil),
		JobsFailedTotal: r.NewCounter("batfish_jobs_failed_total", "Total failed jobs", nil),
		JobDuration:     r.NewHistogram("batfish_job_duration_seconds", "Job duration", nil, nil),
		ActiveWorkers:   r.NewGauge("batfish_active_workers", "Number of jobs currently running", nil),

		RunDuration: r.NewHistogram("batfish_run_duration_seconds", "Snapshot run duration", nil, RunBuckets()),
		RunNodes:    r.NewGauge("batfish_run_nodes", "Nodes produced by the latest run", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *PipelineMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordJob records one finished job.
func (m *PipelineMetrics) RecordJob(duration time.Duration, err error) {
	m.JobsTotal.Inc()
	m.JobDuration.Observe(duration.Seconds())
	if err != nil {
		m.JobsFailedTotal.Inc()
	}
}

// RecordParseStatus counts a file per detected format and parse status.
func (m *PipelineMetrics) RecordParseStatus(format, status string) {
	m.Registry.NewCounter("batfish_parse_files_total", "Parsed files by format and status",
		map[string]string{"format": format, "status": status}).Inc()
}

// RecordConvertStatus counts a node per convert status.
func (m *PipelineMetrics) RecordConvertStatus(status string) {
	m.Registry.NewCounter("batfish_convert_nodes_total", "Converted nodes by status",
		map[string]string{"status": status}).Inc()
}

// RecordDuplicateHostname counts an entry stored under a renamed key.
// stage is "parse" or "convert".
func (m *PipelineMetrics) RecordDuplicateHostname(stage string) {
	m.Registry.NewCounter("batfish_duplicate_hostnames_total", "Entries renamed after a hostname collision",
		map[string]string{"stage": stage}).Inc()
}

// RecordRun records a finished snapshot run.
func (m *PipelineMetrics) RecordRun(duration time.Duration, nodes int, err error) {
	m.RunDuration.Observe(duration.Seconds())
	m.RunNodes.Set(float64(nodes))
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.Registry.NewCounter("batfish_runs_total", "Snapshot runs by outcome",
		map[string]string{"outcome": outcome}).Inc()
}

// RecordGate counts one quality gate evaluation.
func (m *PipelineMetrics) RecordGate(gate, status string) {
	m.Registry.NewCounter("batfish_quality_gates_total", "Quality gate evaluations by gate and status",
		map[string]string{"gate": gate, "status": status}).Inc()
}

var (
	globalMetrics *PipelineMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *PipelineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPipelineMetrics()
	})
	return globalMetrics
}
