package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dron-olya7/verigate/internal/handler"
	custommw "github.com/dron-olya7/verigate/internal/middleware"
)

// Config carries the boundary settings the route tree needs.
type Config struct {
	AllowedOrigins []string
	AdminToken     string
}

func NewRouter(
	intake *handler.IntakeHandler,
	verification *handler.VerificationHandler,
	endpoints *handler.EndpointHandler,
	health *handler.HealthHandler,
	cfg Config,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(custommw.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		// Browser-posted intake needs CORS; bot callbacks do not but are
		// harmless under it.
		r.Group(func(r chi.Router) {
			r.Use(custommw.CORS(cfg.AllowedOrigins))
			r.Post("/submissions", intake.Submit)
			r.Post("/verifications", verification.Verify)
		})

		r.Group(func(r chi.Router) {
			r.Use(custommw.AdminAuth(cfg.AdminToken))
			r.Put("/endpoints/{key}", endpoints.Upsert)
			r.Get("/endpoints/{key}", endpoints.Get)
			r.Get("/attempts", endpoints.ListAttempts)
		})
	})

	// Health & Readiness Routes
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
