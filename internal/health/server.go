package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"realtime_strategies/internal/core"
)

// InfoSource supplies a component section for the /info payload
type InfoSource func() map[string]interface{}

// Server exposes the liveness and readiness probes plus a human-oriented
// /info page.
type Server struct {
	port    int
	service string
	version string
	logger  core.ILogger
	monitor core.IHealthMonitor
	srv     *http.Server
	started time.Time

	mu      sync.RWMutex
	sources map[string]InfoSource
}

// NewServer creates the health HTTP server
func NewServer(port int, service, version string, monitor core.IHealthMonitor, logger core.ILogger) *Server {
	return &Server{
		port:    port,
		service: service,
		version: version,
		logger:  logger.WithField("component", "health_server"),
		monitor: monitor,
		sources: make(map[string]InfoSource),
	}
}

// AddInfoSource registers a component section for /info
func (s *Server) AddInfoSource(name string, src InfoSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = src
}

// Start serves in the background until Stop is called
func (s *Server) Start() {
	s.started = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /ready", s.handleReadiness)
	mux.HandleFunc("GET /info", s.handleInfo)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting health server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health server failed", "error", err)
		}
	}()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping health server")
	return s.srv.Shutdown(ctx)
}

// handleLiveness answers ok while the process is responsive
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadiness answers per registered component checks
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ready",
	}
	code := http.StatusOK
	if s.monitor != nil {
		body["components"] = s.monitor.GetStatus()
		if !s.monitor.IsHealthy() {
			body["status"] = "not_ready"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, body)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"service":        s.service,
		"version":        s.version,
		"uptime_seconds": time.Since(s.started).Seconds(),
	}

	s.mu.RLock()
	for name, src := range s.sources {
		body[name] = src()
	}
	s.mu.RUnlock()

	if s.monitor != nil {
		body["components"] = s.monitor.GetStatus()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
