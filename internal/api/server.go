package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/propease/announce/internal/config"
	"github.com/propease/announce/internal/dispatch"
	"github.com/propease/announce/internal/metrics"
	"github.com/propease/announce/internal/models"
)

// Dispatcher runs a dispatch for one announcement
type Dispatcher interface {
	Dispatch(ctx context.Context, announcementID string) (*dispatch.Outcome, error)
}

// AnnouncementReader loads announcements for the status endpoint
type AnnouncementReader interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
}

// JobReader loads job records for polling
type JobReader interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	LatestJobForAnnouncement(ctx context.Context, announcementID string) (*models.Job, error)
}

// Server is the HTTP API server
type Server struct {
	router        *chi.Mux
	httpServer    *http.Server
	dispatcher    Dispatcher
	announcements AnnouncementReader
	jobs          JobReader
	config        *config.ServerConfig
	logger        *slog.Logger
}

// NewServer creates a new API server
func NewServer(d Dispatcher, announcements AnnouncementReader, jobs JobReader, cfg *config.ServerConfig, logger *slog.Logger) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		dispatcher:    d,
		announcements: announcements,
		jobs:          jobs,
		config:        cfg,
		logger:        logger.With("component", "api"),
	}

	s.setupRoutes()
	return s
}

// Router returns the configured handler, for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// The UI calls the dispatch endpoint straight from the browser, so
	// the whole API answers CORS preflights.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(metrics.HTTPMiddleware)

		r.Post("/announcements/send", s.handleSend)
		r.Get("/announcements/{id}/status", s.handleAnnouncementStatus)
		r.Get("/jobs/{id}", s.handleJobStatus)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
