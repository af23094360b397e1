package router

import (
	"log/slog"
	"net/http"

	"lattice-agent/internal/handler"
	"lattice-agent/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	TokenHandler   *handler.TokenHandler
	AdminHandler   *handler.AdminHandler
	Prune          http.HandlerFunc
	AuthMiddleware func(http.Handler) http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Public routes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}

	// Authority routes
	r.Group(func(r chi.Router) {
		auth := cfg.AuthMiddleware
		if auth == nil {
			auth = middleware.NewAuthorityAuth(nil)
		}
		r.Use(auth)

		if cfg.TokenHandler != nil {
			r.Post("/api/v1/tokens", cfg.TokenHandler.Issue)
			r.Delete("/api/v1/tokens/{token_id}", cfg.TokenHandler.Revoke)
			r.Get("/api/v1/grants", cfg.TokenHandler.ListGrants)
		}
		if cfg.AdminHandler != nil {
			r.Get("/api/v1/admin/stats", cfg.AdminHandler.GetStats)
		}
		if cfg.Prune != nil {
			r.Post("/api/v1/admin/prune", cfg.Prune)
		}
	})

	return r
}
