package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidstash/vidstash/internal/api/handler"
	mw "github.com/vidstash/vidstash/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	bookmarkHandler *handler.BookmarkHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)

		r.Post("/bookmarks", bookmarkHandler.Create)
		r.Get("/bookmarks", bookmarkHandler.List)
		r.Get("/bookmarks/{bookmarkID}", bookmarkHandler.Get)
		r.Get("/bookmarks/{bookmarkID}/status", bookmarkHandler.GetStatus)
		r.Post("/bookmarks/{bookmarkID}/reprocess", bookmarkHandler.Reprocess)
		r.Delete("/bookmarks/{bookmarkID}", bookmarkHandler.Delete)
	})

	return r
}
