// Package http exposes the training store to the renderer. Handlers
// translate requests into store actions and echo the resulting
// snapshot; they carry no logic of their own.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dan-robinson-ai/judge-training-ground/internal/application/training"
	"github.com/dan-robinson-ai/judge-training-ground/internal/config"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	store      *training.Store
	eval       ports.EvalService
}

func NewServer(cfg *config.Config, store *training.Store, eval ports.EvalService) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		store:  store,
		eval:   eval,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(corsHeaders(s.config.Server.CORSOrigins))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Post("/generate", s.handleGenerate)
		r.Post("/run", s.handleRun)
		r.Post("/optimize", s.handleOptimize)

		r.Get("/datasets", s.handleListDatasets)
		r.Post("/datasets", s.handleCreateDataset)
		r.Post("/datasets/{id}/select", s.handleSelectDataset)
		r.Put("/datasets/{id}/name", s.handleRenameDataset)
		r.Delete("/datasets/{id}", s.handleDeleteDataset)

		r.Put("/settings", s.handleSettings)

		r.Post("/prompt", s.handleSavePrompt)
		r.Post("/prompt-versions/{id}/activate", s.handleActivateVersion)

		r.Post("/test-cases", s.handleAddTestCase)
		r.Put("/test-cases/{id}", s.handleUpdateTestCase)
		r.Delete("/test-cases/{id}", s.handleDeleteTestCase)
		r.Post("/test-cases/{id}/toggle-verified", s.handleToggleVerified)
	})
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation and optimization are slow
	}

	log.Printf("http: listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router is exposed for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}
