package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewMetricsRegistry(t *testing.T) {
	r := NewMetricsRegistry()
	if r == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestCounter_Inc(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("test_counter", "Test counter", nil)

	c.Inc()
	c.Inc()
	c.Inc()

	if c.Value() != 3 {
		t.Fatalf("expected 3, got %f", c.Value())
	}
}

func TestCounter_Add(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("test_counter", "Test counter", nil)

	c.Add(5)
	c.Add(3.5)

	if c.Value() != 8.5 {
		t.Fatalf("expected 8.5, got %f", c.Value())
	}
}

func TestGauge_Set(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("test_gauge", "Test gauge", nil)

	g.Set(42)
	if g.Value() != 42 {
		t.Fatalf("expected 42, got %f", g.Value())
	}

	g.Set(10)
	if g.Value() != 10 {
		t.Fatalf("expected 10, got %f", g.Value())
	}
}

func TestGauge_IncDec(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("test_gauge", "Test gauge", nil)

	g.Inc()
	g.Inc()
	g.Dec()

	if g.Value() != 1 {
		t.Fatalf("expected 1, got %f", g.Value())
	}
}

func TestGauge_Add(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("test_gauge", "Test gauge", nil)

	g.Add(10)
	g.Add(-3)

	if g.Value() != 7 {
		t.Fatalf("expected 7, got %f", g.Value())
	}
}

func TestHistogram_Observe(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("test_histogram", "Test histogram", nil, []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(7)
	h.Observe(15)

	if h.count != 4 {
		t.Fatalf("expected count 4, got %d", h.count)
	}
	if h.sum != 25.5 {
		t.Fatalf("expected sum 25.5, got %f", h.sum)
	}
}

func TestHistogram_ObserveDuration(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("test_histogram", "Test histogram", nil, nil)

	start := time.Now().Add(-100 * time.Millisecond)
	h.ObserveDuration(start)

	if h.count != 1 {
		t.Fatalf("expected count 1, got %d", h.count)
	}
	if h.sum < 0.1 {
		t.Fatalf("expected sum >= 0.1, got %f", h.sum)
	}
}

func TestDefaultBuckets(t *testing.T) {
	buckets := DefaultBuckets()
	if len(buckets) == 0 {
		t.Fatal("expected non-empty buckets")
	}
	// Should be in ascending order
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			t.Fatal("buckets should be in ascending order")
		}
	}
}

func TestMetricsRegistry_Handler(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("test_counter", "A test counter", nil).Inc()
	r.NewGauge("test_gauge", "A test gauge", nil).Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	r.Handler().ServeHTTP(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "test_counter") {
		t.Fatal("expected test_counter in output")
	}
	if !strings.Contains(body, "test_gauge") {
		t.Fatal("expected test_gauge in output")
	}
	if !strings.Contains(body, "# HELP") {
		t.Fatal("expected HELP comments")
	}
	if !strings.Contains(body, "# TYPE") {
		t.Fatal("expected TYPE comments")
	}
}

func TestMetricsRegistry_Handler_ContentType(t *testing.T) {
	r := NewMetricsRegistry()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	r.Handler().ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if !strings.Contains(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %s", ct)
	}
}

func TestMetricsWithLabels(t *testing.T) {
	r := NewMetricsRegistry()
	labels := map[string]string{"method": "POST", "path": "/api"}
	c := r.NewCounter("http_requests", "HTTP requests", labels)
	c.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	r.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `method="POST"`) {
		t.Fatal("expected method label in output")
	}
	if !strings.Contains(body, `path="/api"`) {
		t.Fatal("expected path label in output")
	}
}

func TestHistogramOutput(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("request_duration", "Request duration", nil, []float64{0.1, 0.5, 1.0})
	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.8)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	r.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "request_duration_bucket") {
		t.Fatal("expected bucket metrics")
	}
	if !strings.Contains(body, "request_duration_sum") {
		t.Fatal("expected sum metric")
	}
	if !strings.Contains(body, "request_duration_count") {
		t.Fatal("expected count metric")
	}
	if !strings.Contains(body, `le="+Inf"`) {
		t.Fatal("expected +Inf bucket")
	}
}

func TestRegistry_SameSeriesReturnsSameMetric(t *testing.T) {
	r := NewMetricsRegistry()
	a := r.NewCounter("files", "Files", map[string]string{"status": "PASSED"})
	b := r.NewCounter("files", "Files", map[string]string{"status": "PASSED"})
	c := r.NewCounter("files", "Files", map[string]string{"status": "FAILED"})
	a.Inc()
	b.Inc()
	c.Inc()

	if a != b || a.Value() != 2 {
		t.Fatalf("expected shared series with value 2, got %v", a.Value())
	}

	var buf strings.Builder
	r.WritePrometheus(&buf)
	out := buf.String()
	if strings.Count(out, "# HELP files") != 1 {
		t.Errorf("expected a single HELP line per metric name:\n%s", out)
	}
	failed := strings.Index(out, `files{status="FAILED"} 1`)
	passed := strings.Index(out, `files{status="PASSED"} 2`)
	if failed < 0 || passed < 0 || failed > passed {
		t.Errorf("series missing or unsorted:\n%s", out)
	}
}

func TestNewPipelineMetrics(t *testing.T) {
	m := NewPipelineMetrics()
	if m.Registry == nil || m.JobsTotal == nil || m.JobDuration == nil || m.ActiveWorkers == nil {
		t.Fatal("expected all metrics to be initialized")
	}
}

func TestPipelineMetrics_RecordJob(t *testing.T) {
	m := NewPipelineMetrics()
	m.RecordJob(10*time.Millisecond, nil)
	m.RecordJob(20*time.Millisecond, errors.New("boom"))

	if m.JobsTotal.Value() != 2 {
		t.Fatalf("expected 2 jobs, got %f", m.JobsTotal.Value())
	}
	if m.JobsFailedTotal.Value() != 1 {
		t.Fatalf("expected 1 failed job, got %f", m.JobsFailedTotal.Value())
	}
	if m.JobDuration.Count() != 2 {
		t.Fatalf("expected 2 observations, got %d", m.JobDuration.Count())
	}
}

func TestPipelineMetrics_Statuses(t *testing.T) {
	m := NewPipelineMetrics()
	m.RecordParseStatus("CISCO_IOS", "PASSED")
	m.RecordParseStatus("CISCO_IOS", "PASSED")
	m.RecordParseStatus("FLAT_JUNIPER", "FAILED")
	m.RecordConvertStatus("WARNINGS")
	m.RecordDuplicateHostname("parse")
	m.RecordGate("parse_pass_rate", "failed")

	var buf strings.Builder
	m.Registry.WritePrometheus(&buf)
	out := buf.String()
	for _, want := range []string{
		`batfish_parse_files_total{format="CISCO_IOS",status="PASSED"} 2`,
		`batfish_parse_files_total{format="FLAT_JUNIPER",status="FAILED"} 1`,
		`batfish_convert_nodes_total{status="WARNINGS"} 1`,
		`batfish_duplicate_hostnames_total{stage="parse"} 1`,
		`batfish_quality_gates_total{gate="parse_pass_rate",status="failed"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestPipelineMetrics_RecordRun(t *testing.T) {
	m := NewPipelineMetrics()
	m.RecordRun(2*time.Second, 12, nil)
	m.RecordRun(40*time.Second, 3, errors.New("halted"))

	if m.RunDuration.Count() != 2 {
		t.Fatalf("expected 2 run observations, got %d", m.RunDuration.Count())
	}
	if m.RunNodes.Value() != 3 {
		t.Errorf("run nodes = %v, want the latest run's 3", m.RunNodes.Value())
	}

	var buf strings.Builder
	m.Registry.WritePrometheus(&buf)
	out := buf.String()
	for _, want := range []string{
		`batfish_runs_total{outcome="success"} 1`,
		`batfish_runs_total{outcome="failed"} 1`,
		`batfish_run_duration_seconds_bucket{le="5"} 1`,
		`batfish_run_duration_seconds_bucket{le="60"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGlobalMetrics(t *testing.T) {
	if Metrics() != Metrics() {
		t.Fatal("expected the same instance")
	}
}

func TestFormatLabels(t *testing.T) {
	if formatLabels(nil) != "" {
		t.Fatal("expected empty string for nil labels")
	}
	got := formatLabels(map[string]string{"b": "2", "a": "x\"y"})
	if got != `{a="x\"y",b="2"}` {
		t.Fatalf("unexpected labels: %s", got)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{0.25, "0.25"},
		{-3, "-3"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.in); got != tt.want {
			t.Errorf("formatFloat(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
