package api

import (
	"net/http"

	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	if s.cfg.Server.RateLimit.Enabled {
		rpm := s.cfg.Server.RateLimit.RequestsPerMinute
		if rpm <= 0 {
			rpm = config.DefaultRequestsPerMinute
		}

		s.limiter = newRateLimiterMap(rpm)
	}

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/baselines", func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.rateLimitMiddleware(s.limiter))
			}

			r.Get("/", s.handleListBaselines)
			r.Get("/{name}", s.handleGetBaseline)

			// Comparing does not modify the store, so it stays public.
			r.Post("/{name}/compare", s.handleCompare)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)

				r.Put("/{name}", s.handlePutBaseline)
				r.Delete("/{name}", s.handleDeleteBaseline)
			})
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the API config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
