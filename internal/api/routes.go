package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router and mounts all endpoints.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/segments", func(r chi.Router) {
			r.Post("/", h.CreateSegment)
			r.Route("/{segmentID}", func(r chi.Router) {
				r.Get("/", h.GetSegment)
				r.Post("/snapshot", h.EnsureSnapshot)
				r.Get("/snapshot/{version}/members", h.ListSnapshotMembers)
				r.Post("/snapshot/{version}/drafts", h.RenderDrafts)
			})
		})

		r.Post("/events/ingest", h.IngestEvent)
		r.Get("/events/{provider}/{eventID}", h.GetEvent)
		r.Get("/provider/campaigns", h.ListProviderCampaigns)
	})

	return r
}
