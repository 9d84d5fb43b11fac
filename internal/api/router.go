package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gerhard-ee/sqlgateway/internal/config"
	"github.com/gerhard-ee/sqlgateway/internal/middleware"
)

// NewRouter wires the gateway routes and middleware. ctx bounds background
// work owned by the router, such as the rate limiter's cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodOptions, http.MethodHead,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			limiter := middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				Burst:             cfg.RateLimitBurst,
			})
			r.Use(limiter.Handler)
		}
		r.Post("/execute", h.Execute)
		r.Post("/create", h.Create)
		r.Get("/ingests", h.ListIngests)
		r.Get("/ingests/{id}", h.GetIngest)
		r.Delete("/ingests/{id}", h.DeleteIngest)
	})

	return r
}
