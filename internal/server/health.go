// Package server runs the worker's health and metrics endpoints and its
// graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker performs one health check.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer serves /health, /ready and /live, plus /metrics when a
// metrics handler is set.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	metrics http.Handler
	ready   bool
	live    bool
	server  *http.Server
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewHealthServer creates a live but not yet ready health server.
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{checks: make(map[string]HealthChecker), live: true}
	if config != nil {
		s.version = config.Version
		s.metrics = config.Metrics
	}
	return s
}

// RegisterCheck adds a health check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Handler returns an http.Handler for the health endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.probe(func() bool { return s.ready }))
	mux.HandleFunc("/live", s.probe(func() bool { return s.live }))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.probe(func() bool { return s.ready }))
	mux.HandleFunc("/livez", s.probe(func() bool { return s.live }))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP listener, if running.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Check runs every registered check. Any unhealthy check makes the whole
// response unhealthy; a degraded one only degrades it.
func (s *HealthServer) Check(ctx context.Context) HealthResponse {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := s.checks
	s.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Checks:    make([]HealthCheck, 0, len(names)),
	}
	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)
		switch {
		case check.Status == HealthStatusUnhealthy:
			response.Status = HealthStatusUnhealthy
		case check.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy:
			response.Status = HealthStatusDegraded
		}
	}
	return response
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := s.Check(ctx)
	status := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (s *HealthServer) probe(get func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ok := get()
		s.mu.RUnlock()

		response := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
		if !ok {
			response.Status = HealthStatusUnhealthy
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// TemporalHealthChecker reports the Temporal connection. The worker cannot
// do anything without it.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "Temporal connection failed: " + err.Error()}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "Temporal connection OK"}
	}
}

// GraphHealthChecker reports the graph database. Graph export is optional,
// so a failure only degrades the worker.
func GraphHealthChecker(uri string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"uri": uri}
		if err := checkFn(ctx); err != nil {
			return HealthCheck{Status: HealthStatusDegraded, Message: "graph database unreachable: " + err.Error(), Details: details}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "graph database OK", Details: details}
	}
}

// StoreHealthChecker reports whether the run store directory exists.
func StoreHealthChecker(dir string) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"dir": dir}
		info, err := os.Stat(dir)
		switch {
		case err != nil:
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "run store unavailable: " + err.Error(), Details: details}
		case !info.IsDir():
			return HealthCheck{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("run store %s is not a directory", dir), Details: details}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "run store OK", Details: details}
	}
}
