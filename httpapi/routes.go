package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(recoveryMiddleware(s.log))
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.jwtSecret))
		if s.limiter != nil {
			r.Use(rateLimitMiddleware(s.limiter, s.recorder))
		}

		r.Route("/v1", func(r chi.Router) {
			r.Post("/chat/completions", s.handleChatCompletions)

			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)

			r.Get("/models", s.handleListModels)

			r.Get("/tools", s.handleListTools)
			r.Post("/tools/execute", s.handleExecuteTool)
		})
	})

	return r
}
