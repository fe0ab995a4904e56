package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	LogRequests    bool
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(apiHandler *APIHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.LogRequests {
		r.Use(middleware.Logger) // Basic request logging
	}
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)
		r.Get("/models", apiHandler.ModelsHandler)

		r.Group(func(r chi.Router) {
			if opts.RateLimitRPS > 0 {
				r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
			}
			r.Post("/chat", apiHandler.ChatHandler)
		})
	})

	return r
}
