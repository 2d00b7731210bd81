// Package server exposes the layout pipeline over HTTP with live reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/monitoring"
	"github.com/conneroisu/stratum/internal/pipeline"
	"github.com/conneroisu/stratum/internal/watcher"
)

// Server serves rendered pages and pushes reloads to connected browsers.
type Server struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
	metrics  *monitoring.Metrics
	logger   logging.Logger
	hub      *Hub

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a server. logger and metrics may be nil.
func New(cfg *config.Config, p *pipeline.Pipeline, logger logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")
	return &Server{
		config:   cfg,
		pipeline: p,
		metrics:  metrics,
		logger:   logger,
		hub:      NewHub(logger, metrics),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Get("/page/{handle}", s.handlePage)
	r.Get("/page/{handle}/block/{name}", s.handleBlock)
	r.Get("/layout/{handle}", s.handleLayout)
	r.Get("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown closes live-reload connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		s.hub.CloseAll()

		s.serverMutex.RLock()
		srv := s.httpServer
		s.serverMutex.RUnlock()
		if srv != nil {
			shutdownErr = srv.Shutdown(ctx)
		}
	})
	return shutdownErr
}

// HandleChanges is a watcher handler: it drops cached templates and output
// and tells browsers to reload.
func (s *Server) HandleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	if err := s.pipeline.Invalidate(ctx); err != nil {
		return err
	}
	target := ""
	if len(events) == 1 {
		target = events[0].Path
	}
	s.logger.Info(ctx, "Module files changed, reloading", "files", len(events))
	s.hub.Broadcast(UpdateMessage{Type: "full_reload", Target: target, Timestamp: time.Now()})
	return nil
}

// Clients returns the number of live-reload connections.
func (s *Server) Clients() int {
	return s.hub.Count()
}
