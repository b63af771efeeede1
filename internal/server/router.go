package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router returns the HTTP API.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.handleSubmit)
		r.Get("/runs", s.handleList)
		r.Get("/runs/{id}", s.handleGet)
		r.Get("/runs/{id}/download", s.handleDownload)
		r.Get("/runs/{id}/events", s.handleEvents)
		r.Get("/models", s.handleModels)
	})
	return r
}
