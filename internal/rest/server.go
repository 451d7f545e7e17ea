// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// Server represents the passkey REST API server.
type Server struct {
	server   *http.Server
	handlers *HandlerContext
	addr     string
	tlsCfg   *tls.Config
	verifier TokenVerifier
	limiter  *ratelimit.Limiter
	metrics  bool
	mpath    string
	logger   *logging.Logger
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the host:port to listen on (default: ":8443")
	Addr string

	// Service executes the passkey ceremonies (required)
	Service *passkey.Service

	// Version is the API version string
	Version string

	// TLSConfig is the TLS configuration for HTTPS (optional)
	TLSConfig *tls.Config

	// TokenVerifier validates optional bearer session tokens (optional;
	// without one all callers are treated as anonymous)
	TokenVerifier TokenVerifier

	// RateLimiter throttles ceremony endpoints per client (optional)
	RateLimiter *ratelimit.Limiter

	// MetricsEnabled exposes Prometheus metrics on MetricsPath
	MetricsEnabled bool

	// MetricsPath is the metrics endpoint path (default: "/metrics")
	MetricsPath string

	// Logger receives request logs (optional, defaults to the package logger)
	Logger *logging.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("passkey service is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8443"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	server := &Server{
		handlers: NewHandlerContext(cfg.Service, cfg.Version),
		addr:     cfg.Addr,
		tlsCfg:   cfg.TLSConfig,
		verifier: cfg.TokenVerifier,
		limiter:  cfg.RateLimiter,
		metrics:  cfg.MetricsEnabled,
		mpath:    cfg.MetricsPath,
		logger:   log,
	}

	router := server.setupRouter()

	server.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware()) // Add correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware)

	// Legacy health endpoint (backwards compatibility)
	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)

	// Kubernetes-style health probes (no auth required)
	r.Get("/health/live", s.handlers.LivenessHandler)
	r.Get("/health/ready", s.handlers.ReadinessHandler)
	r.Get("/health/startup", s.handlers.StartupHandler)

	if s.metrics {
		r.Handle(s.mpath, promhttp.Handler())
	}

	// Ceremony endpoints
	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, InstanceTokenHeader))
		}
		r.Use(s.BearerAuthMiddleware())

		r.Post("/attestation/request", s.handlers.AttestationRequestHandler)
		r.Post("/attestation/response", s.handlers.AttestationResponseHandler)
		r.Post("/assertion/request", s.handlers.AssertionRequestHandler)
		r.Post("/assertion/response", s.handlers.AssertionResponseHandler)
	})

	return r
}

// Start starts the REST API server.
func (s *Server) Start() error {
	if s.tlsCfg != nil {
		s.logger.Info("Starting HTTPS server", "addr", s.addr)

		if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
	} else {
		s.logger.Info("Starting HTTP server", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Errorf("Failed to shutdown server: %v", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the configured router, for tests that serve requests
// without binding a socket.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetHealthChecker sets the health checker for the server.
func (s *Server) SetHealthChecker(checker HealthChecker) {
	s.handlers.SetHealthChecker(checker)
}
