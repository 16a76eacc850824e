// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cache"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/vector"
)

// Answerer resolves questions. Implemented by the orchestrator.
type Answerer interface {
	Answer(ctx context.Context, req models.AskRequest) (models.AskResponse, error)
	AnswerStream(ctx context.Context, req models.AskRequest) (<-chan models.StreamChunk, error)
}

// StatsSource exposes answer cache counters for the stats endpoint.
type StatsSource interface {
	Stats() cache.Stats
}

// Server is the HTTP server for the Kotae API.
type Server struct {
	answerer Answerer
	store    session.Store
	stats    StatsSource
	index    vector.Index
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. store, stats,
// and index may be nil; the endpoints that need them respond accordingly.
func NewServer(
	answerer Answerer,
	store session.Store,
	stats StatsSource,
	index vector.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		answerer: answerer,
		store:    store,
		stats:    stats,
		index:    index,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/ask/stream", s.handleAskStream)

	r.Get("/api/v1/profiles", s.handleListProfiles)
	r.Post("/api/v1/profiles", s.handleSaveProfile)
	r.Get("/api/v1/profiles/{id}", s.handleGetProfile)
	r.Delete("/api/v1/profiles/{id}", s.handleDeleteProfile)
	r.Get("/api/v1/profiles/{id}/timetable", s.handleGetTimetable)
	r.Post("/api/v1/profiles/{id}/timetable", s.handleUploadTimetable)

	r.Get("/api/v1/cache/stats", s.handleCacheStats)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
