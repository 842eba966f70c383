// Package server exposes the forecasting pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/forecastlab/forecastd/internal/server/handler"
	"github.com/forecastlab/forecastd/internal/server/middleware"
	"github.com/forecastlab/forecastd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers. Audit and
// Archive are optional.
type Handlers struct {
	Health    *handler.HealthHandler
	Forecasts *handler.ForecastHandler
	Metrics   *handler.MetricsHandler
	Backtest  *handler.BacktestHandler
	Audit     *handler.AuditHandler
	Archive   *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API for the forecasting service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (CORS, logging, auth) applied.
func New(cfg Config, handlers Handlers, hub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, no auth required by convention but the auth middleware
	// sits above the whole mux; operators probe with the API key.
	mux.HandleFunc("GET /api/health", handlers.Health.Get)

	mux.HandleFunc("POST /api/forecasts/seed", handlers.Forecasts.Seed)
	mux.HandleFunc("POST /api/forecasts/resolve", handlers.Forecasts.Resolve)
	mux.HandleFunc("GET /api/forecasts", handlers.Forecasts.List)

	mux.HandleFunc("GET /api/metrics", handlers.Metrics.Get)

	mux.HandleFunc("POST /api/backtest/seed", handlers.Backtest.Seed)

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}

	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.List)
		mux.HandleFunc("GET /api/archive/{month}", handlers.Archive.Get)
	}

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
