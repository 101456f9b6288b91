package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/batfish/batfish-sub054/internal/snapshot"
)

// Config holds dashboard server configuration.
type Config struct {
	ListenAddr string // e.g. ":9090"
	// KeepAlive is the SSE ping interval. Zero means 30s.
	KeepAlive time.Duration
}

func DefaultConfig() *Config {
	return &Config{ListenAddr: ":9090", KeepAlive: 30 * time.Second}
}

// Server exposes the run store read-only over HTTP, plus a live feed of
// run events.
type Server struct {
	config  *Config
	store   *snapshot.Store
	emitter *Emitter
	hub     *Hub
	logger  *slog.Logger
	server  *http.Server
}

// Stats summarizes the runs held by the store.
type Stats struct {
	TotalRuns  int            `json:"total_runs"`
	ByStatus   map[string]int `json:"by_status"`
	TaggedRuns int            `json:"tagged_runs"`
	TotalNodes int            `json:"total_nodes"`
	Snapshots  int            `json:"distinct_snapshots"`
	LatestRun  string         `json:"latest_run,omitempty"`
	LatestAt   *time.Time     `json:"latest_at,omitempty"`
}

func NewServer(config *Config, store *snapshot.Store, emitter *Emitter, hub *Hub, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:  config,
		store:   store,
		emitter: emitter,
		hub:     hub,
		logger:  logger,
	}
	s.server = &http.Server{
		Addr:        config.ListenAddr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// no WriteTimeout: the event stream is long-lived
	}
	return s
}

// Handler returns the routed handler, wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{ref}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{ref}/nodes/{host}", s.handleNode)
	mux.HandleFunc("GET /api/diff", s.handleDiff)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start serves until Stop. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting dashboard server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping dashboard server")
	s.hub.CloseAll()
	return s.server.Shutdown(ctx)
}

// handleRuns lists run summaries, newest first. ?tag= filters by tag and
// ?status= by run status.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	status := r.URL.Query().Get("status")
	runs := make([]snapshot.RunSummary, 0)
	for _, summary := range s.store.List() {
		if tag != "" && summary.Tag != tag {
			continue
		}
		if status != "" && summary.Status != status {
			continue
		}
		runs = append(runs, summary)
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r.PathValue("ref"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleNode returns a stored node document as it was written.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r.PathValue("ref"))
	if !ok {
		return
	}
	data, err := s.store.LoadNode(run, r.PathValue("host"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleDiff compares ?from= and ?to=, each a run ID or tag.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	old, ok := s.lookup(w, from)
	if !ok {
		return
	}
	next, ok := s.lookup(w, to)
	if !ok {
		return
	}
	diff, err := snapshot.Diff(old, next, s.store)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, diff)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stats())
}

func (s *Server) stats() Stats {
	runs := s.store.List()
	st := Stats{TotalRuns: len(runs), ByStatus: make(map[string]int)}
	fingerprints := make(map[string]struct{})
	for _, summary := range runs {
		st.ByStatus[summary.Status]++
		st.TotalNodes += summary.NodeCount
		if summary.Tag != "" {
			st.TaggedRuns++
		}
		fingerprints[summary.Fingerprint] = struct{}{}
	}
	st.Snapshots = len(fingerprints)
	if len(runs) > 0 {
		st.LatestRun = runs[0].ID
		at := runs[0].CreatedAt
		st.LatestAt = &at
	}
	return st
}

// handleActivity returns recent run events; ?limit= defaults to 100.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	respondJSON(w, http.StatusOK, s.emitter.Recent(limit))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"runs":    len(s.store.List()),
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	client, err := NewClient(w)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.Register(client)

	data, _ := json.Marshal(&Event{Type: EventConnected, Timestamp: time.Now()})
	client.send(data)

	interval := s.config.KeepAlive
	if interval <= 0 {
		interval = 30 * time.Second
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.KeepAlive(interval)
	}()

	select {
	case <-r.Context().Done():
	case <-client.done:
	}
	s.hub.Unregister(client)
	wg.Wait()
	s.logger.Debug("event client disconnected")
}

// lookup resolves ref as a run ID, then as a tag, writing a 404 on a miss.
func (s *Server) lookup(w http.ResponseWriter, ref string) (*snapshot.Run, bool) {
	if run, err := s.store.Load(ref); err == nil {
		return run, true
	}
	run, err := s.store.FindByTag(ref)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", ref))
		return nil, false
	}
	return run, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// corsMiddleware lets a browser UI on another origin read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
