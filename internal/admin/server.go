// Package admin exposes the HTTP management API: strategy configuration
// CRUD with audit and rollback, plus order book inspection endpoints.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/internal/orderbook"
	"realtime_strategies/internal/params"
)

// Server is the admin HTTP server
type Server struct {
	cfg      config.AdminConfig
	logger   core.ILogger
	manager  *params.Manager
	analyzer *orderbook.DepthAnalyzer
	auth     *keyAuthenticator
	srv      *http.Server
}

// NewServer creates the admin server over the config manager and the
// depth analyzer
func NewServer(cfg config.AdminConfig, manager *params.Manager, analyzer *orderbook.DepthAnalyzer, logger core.ILogger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.WithField("component", "admin_server"),
		manager:  manager,
		analyzer: analyzer,
		auth:     newKeyAuthenticator(cfg.APIKeys, cfg.RateLimit, logger),
	}
}

// Handler builds the full route table. Exposed separately so tests can
// drive it without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/v1/strategies/{id}/schema", s.handleSchema)
	mux.HandleFunc("GET /api/v1/strategies/{id}/defaults", s.handleDefaults)

	mux.HandleFunc("GET /api/v1/strategies/{id}/config", s.handleGetConfig)
	mux.HandleFunc("GET /api/v1/strategies/{id}/config/{symbol}", s.handleGetConfig)
	mux.HandleFunc("POST /api/v1/strategies/{id}/config", s.handleSetConfig)
	mux.HandleFunc("POST /api/v1/strategies/{id}/config/{symbol}", s.handleSetConfig)
	mux.HandleFunc("DELETE /api/v1/strategies/{id}/config", s.handleDeleteConfig)
	mux.HandleFunc("DELETE /api/v1/strategies/{id}/config/{symbol}", s.handleDeleteConfig)

	mux.HandleFunc("POST /api/v1/strategies/{id}/rollback", s.handleRollback)
	mux.HandleFunc("POST /api/v1/strategies/{id}/restore", s.handleRollback)
	mux.HandleFunc("GET /api/v1/strategies/{id}/audit", s.handleAudit)
	mux.HandleFunc("POST /api/v1/strategies/cache/refresh", s.handleCacheRefresh)

	mux.HandleFunc("GET /api/v1/market/depth/{symbol}", s.handleMarketDepth)
	mux.HandleFunc("GET /api/v1/market/pressure/{symbol}", s.handleMarketPressure)
	mux.HandleFunc("GET /api/v1/market/summary", s.handleMarketSummary)

	return s.auth.wrap(mux)
}

// Start serves in the background until Stop is called
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		s.logger.Info("Starting admin server",
			"port", s.cfg.Port,
			"auth_enabled", len(s.cfg.APIKeys) > 0)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Admin server failed", "error", err)
		}
	}()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping admin server")
	return s.srv.Shutdown(ctx)
}
