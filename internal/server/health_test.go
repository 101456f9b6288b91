package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/batfish/batfish-sub054/internal/observability"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestNewHealthServer(t *testing.T) {
	s := NewHealthServer(&HealthConfig{Version: "1.0.0"})
	if s.version != "1.0.0" {
		t.Fatalf("expected version 1.0.0, got %s", s.version)
	}
	if s.ready || !s.live {
		t.Fatalf("expected live and not ready, got ready=%v live=%v", s.ready, s.live)
	}
}

func TestHealthServer_HandleHealth(t *testing.T) {
	tests := map[string]struct {
		statuses []HealthStatus
		code     int
		want     HealthStatus
	}{
		"no checks":      {nil, http.StatusOK, HealthStatusHealthy},
		"healthy":        {[]HealthStatus{HealthStatusHealthy}, http.StatusOK, HealthStatusHealthy},
		"degraded":       {[]HealthStatus{HealthStatusHealthy, HealthStatusDegraded}, http.StatusOK, HealthStatusDegraded},
		"unhealthy":      {[]HealthStatus{HealthStatusUnhealthy}, http.StatusServiceUnavailable, HealthStatusUnhealthy},
		"unhealthy wins": {[]HealthStatus{HealthStatusDegraded, HealthStatusUnhealthy, HealthStatusHealthy}, http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := NewHealthServer(&HealthConfig{Version: "1.0.0"})
			for i, status := range tt.statuses {
				s.RegisterCheck(string(rune('a'+i)), func(ctx context.Context) HealthCheck {
					return HealthCheck{Status: status}
				})
			}
			w := get(t, s.Handler(), "/health")
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json, got %s", ct)
			}
			resp := decode(t, w)
			if resp.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, resp.Status)
			}
			if resp.Version != "1.0.0" {
				t.Fatalf("expected version 1.0.0, got %s", resp.Version)
			}
			if len(resp.Checks) != len(tt.statuses) {
				t.Fatalf("expected %d checks, got %d", len(tt.statuses), len(resp.Checks))
			}
		})
	}
}

func TestHealthServer_ChecksSortedAndNamed(t *testing.T) {
	s := NewHealthServer(nil)
	for _, name := range []string{"temporal", "graph", "store"} {
		s.RegisterCheck(name, func(ctx context.Context) HealthCheck {
			return HealthCheck{Status: HealthStatusHealthy}
		})
	}
	resp := s.Check(context.Background())
	var names []string
	for _, c := range resp.Checks {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "graph,store,temporal" {
		t.Fatalf("checks = %s", got)
	}
}

func TestHealthServer_Probes(t *testing.T) {
	tests := []struct {
		path  string
		ready bool
		live  bool
		code  int
	}{
		{"/ready", false, true, http.StatusServiceUnavailable},
		{"/ready", true, true, http.StatusOK},
		{"/readyz", true, true, http.StatusOK},
		{"/live", false, true, http.StatusOK},
		{"/live", true, false, http.StatusServiceUnavailable},
		{"/livez", false, true, http.StatusOK},
		{"/healthz", false, true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := NewHealthServer(nil)
			s.SetReady(tt.ready)
			s.SetLive(tt.live)
			if w := get(t, s.Handler(), tt.path); w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestHealthServer_Metrics(t *testing.T) {
	s := NewHealthServer(nil)
	if w := get(t, s.Handler(), "/metrics"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a metrics handler, got %d", w.Code)
	}

	m := observability.NewPipelineMetrics()
	m.RecordParseStatus("CISCO_IOS", "PASSED")
	s = NewHealthServer(&HealthConfig{Metrics: m.Handler()})
	w := get(t, s.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "PASSED") {
		t.Fatalf("metrics output missing parse status:\n%s", w.Body.String())
	}
}

func TestHealthServer_ShutdownWithoutListener(t *testing.T) {
	if err := NewHealthServer(nil).Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestTemporalHealthChecker(t *testing.T) {
	ok := TemporalHealthChecker(func(ctx context.Context) error { return nil })(context.Background())
	if ok.Status != HealthStatusHealthy {
		t.Fatalf("expected healthy, got %s", ok.Status)
	}
	bad := TemporalHealthChecker(func(ctx context.Context) error { return errors.New("connection refused") })(context.Background())
	if bad.Status != HealthStatusUnhealthy || !strings.Contains(bad.Message, "connection refused") {
		t.Fatalf("got %+v", bad)
	}
}

func TestGraphHealthChecker(t *testing.T) {
	ok := GraphHealthChecker("neo4j://localhost:7687", func(ctx context.Context) error { return nil })(context.Background())
	if ok.Status != HealthStatusHealthy || ok.Details["uri"] != "neo4j://localhost:7687" {
		t.Fatalf("got %+v", ok)
	}
	bad := GraphHealthChecker("neo4j://localhost:7687", func(ctx context.Context) error { return errors.New("timeout") })(context.Background())
	if bad.Status != HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", bad.Status)
	}
}

func TestStoreHealthChecker(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "index.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := map[string]struct {
		path string
		want HealthStatus
	}{
		"directory":     {dir, HealthStatusHealthy},
		"missing":       {filepath.Join(dir, "nope"), HealthStatusUnhealthy},
		"not directory": {file, HealthStatusUnhealthy},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := StoreHealthChecker(tt.path)(context.Background()); got.Status != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, got)
			}
		})
	}
}
