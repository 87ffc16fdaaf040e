package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/practiva/aigate/internal/api/handlers"
	"github.com/practiva/aigate/internal/api/middleware"
	"github.com/practiva/aigate/internal/config"
	"github.com/practiva/aigate/internal/contextsync"
)

// NewRouter creates the HTTP router for the local governance facade.
func NewRouter(cfg *config.Config, h *handlers.Handlers, observer *contextsync.Observer) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Identity(observer))
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.UIOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Tenant-Id", "X-Party-Id", "X-Role", "X-Profile-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/availability", h.CheckAvailability)
		r.Post("/refresh", h.Refresh)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", h.Chat)
			r.Get("/history", h.ChatHistory)
		})

		r.Route("/actions", func(r chi.Router) {
			r.Post("/", h.CreateAction)
			r.Get("/pending", h.ListPending)
			r.Route("/{planID}", func(r chi.Router) {
				r.Get("/", h.GetAction)
				r.Post("/approve", h.ApproveAction)
				r.Post("/execute", h.ExecuteAction)
				r.Get("/progress", h.Progress)
			})
		})

		r.Post("/session/logout", h.Logout)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "aigate",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "aigate",
		})
	}
}
