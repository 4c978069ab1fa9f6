// Package web exposes the tagging pipeline over a small JSON API: album
// browsing, async processing jobs and provider status.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mkralik/photo-tagger/internal/photohost"
	"github.com/mkralik/photo-tagger/internal/pipeline"
	"github.com/mkralik/photo-tagger/internal/vision"
)

// AlbumSource is the read side of the photo host used by browse endpoints.
type AlbumSource interface {
	ListAlbums(ctx context.Context) ([]photohost.Album, error)
	GetAlbum(ctx context.Context, albumUID string) (*photohost.Album, error)
	ListAlbumItems(ctx context.Context, albumUID string) ([]photohost.Item, error)
}

// Runner executes one batch over an album.
type Runner interface {
	Run(ctx context.Context, albumUID string) (*pipeline.Stats, error)
}

// RunnerFactory builds a batch runner for the requested options. Jobs carry
// their own dry-run and force flags, so each job gets its own runner.
type RunnerFactory func(opts pipeline.Options) Runner

// Server serves the HTTP API.
type Server struct {
	host       AlbumSource
	newRunner  RunnerFactory
	provider   vision.Provider
	jobs       *JobManager
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(addr string, host AlbumSource, newRunner RunnerFactory, provider vision.Provider) *Server {
	r := chi.NewRouter()

	s := &Server{
		host:      host,
		newRunner: newRunner,
		provider:  provider,
		jobs:      NewJobManager(),
		router:    r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/provider", s.handleProviderStatus)
		r.Get("/albums", s.handleListAlbums)
		r.Get("/albums/{uid}", s.handleGetAlbum)
		r.Get("/albums/{uid}/items", s.handleListItems)
		r.Post("/albums/{uid}/preview", s.handlePreview)

		r.Post("/process", s.handleStartJob)
		r.Get("/process/{jobID}", s.handleJobStatus)
		r.Delete("/process/{jobID}", s.handleCancelJob)
	})
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	slog.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and cancels running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down web server")
	s.jobs.CancelAll()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router exposes the mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
