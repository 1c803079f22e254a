// Package api provides the HTTP API server for logtower.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/logtower/logtower/internal/api/handlers"
	"github.com/logtower/logtower/internal/api/health"
	"github.com/logtower/logtower/internal/api/middleware"
	"github.com/logtower/logtower/internal/auth"
	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/ingest"
	"github.com/logtower/logtower/internal/query"
	"github.com/logtower/logtower/internal/store"
	"github.com/logtower/logtower/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is the current version of the server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	pipeline      *ingest.Pipeline
	broker        *broker.Broker
	engine        *query.Engine
	tickets       store.TicketStore
	auth          *auth.Service
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies. The auth
// service may be nil, in which case all endpoints are open.
func NewServer(cfg *config.Config, pipeline *ingest.Pipeline, b *broker.Broker, tickets store.TicketStore, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: pipeline,
		broker:   b,
		engine:   query.NewEngine(pipeline, tickets),
		tickets:  tickets,
		auth:     authSvc,
		config:   cfg,
		logger:   logger,
	}

	s.healthChecker = health.NewChecker(Version)
	s.healthChecker.Register("ticket_store", tickets)

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// Health and metrics (no auth required)
	r.Get("/health", s.healthChecker.Handler())
	r.Handle("/metrics", promhttp.Handler())

	var authMiddleware *middleware.AuthMiddleware
	if s.auth != nil {
		authMiddleware = middleware.NewAuthMiddleware(s.auth, s.logger)
	}

	// Live stream. The request timeout middleware would cut long-lived
	// connections, so the WebSocket route stays outside it.
	streamHandler := handlers.NewStreamHandler(s.broker, s.pipeline, s.logger)
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware.Authenticate)
		}
		r.Get("/ws/logs", streamHandler.Serve)
	})

	// REST routes
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		if authMiddleware != nil {
			r.Use(authMiddleware.Authenticate)
		}

		logHandler := handlers.NewLogHandler(s.engine, s.logger)
		r.Get("/logs", logHandler.List)
		r.Get("/logs/stats", logHandler.Stats)

		ticketHandler := handlers.NewTicketHandler(s.tickets, s.broker, s.logger)
		r.Post("/create-ticket", ticketHandler.Create)
		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", ticketHandler.List)
			r.Get("/{machineID}", ticketHandler.ListByMachine)
			r.Put("/{ticketID}", ticketHandler.UpdateStatus)
			r.Get("/{ticketID}/history", ticketHandler.History)
		})
	})

	s.router = r
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.config.Addr(),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Name identifies the server for shutdown logging.
func (s *Server) Name() string {
	return "http-server"
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
