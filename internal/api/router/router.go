package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/callwindow/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/callwindow/internal/http/middleware"
	"github.com/wolfman30/callwindow/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	LookupHandler  *handlers.LookupHandler
	CallsHandler   *handlers.CallsHandler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Done stops background middleware work (rate limiter eviction).
	Done <-chan struct{}
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Done))
		}
		if cfg.LookupHandler != nil {
			v1.Get("/timezone", cfg.LookupHandler.Timezone)
			v1.Post("/window/check", cfg.LookupHandler.WindowCheck)
		}
		if cfg.CallsHandler != nil {
			v1.Post("/calls", cfg.CallsHandler.Create)
			v1.Get("/calls/{id}", cfg.CallsHandler.Get)
		}
	})

	return r
}
