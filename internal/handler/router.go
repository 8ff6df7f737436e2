package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kegstock/kegstock/internal/middleware"
)

// RouterConfig collects the handlers and HTTP settings for NewRouter.
type RouterConfig struct {
	Logger    *slog.Logger
	Health    *HealthHandler
	Metrics   *MetricsHandler
	BeerTypes *BeerTypeHandler

	IsDevelopment  bool
	AllowedOrigins []string
	MaxBodySize    int64
}

// NewRouter builds the application router with the global middleware chain.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := New()

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.IsDevelopment))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))

	r.Get("/", h.Info)
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	r.Route("/api/beer-types", func(r chi.Router) {
		if cfg.MaxBodySize > 0 {
			r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
		}
		cfg.BeerTypes.Routes(r)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
