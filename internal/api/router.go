// Package api exposes the dedup store over a read-only JSON HTTP API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/rssdigest/internal/api/handlers"
	"github.com/hoanghai1803/rssdigest/internal/storage"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(store *storage.Store, resolver *timerange.Resolver, logger *slog.Logger) *chi.Mux {
	logger = logger.With("component", "api")
	r := chi.NewRouter()

	// Global middleware.
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handlers.Health(store))
		api.Get("/stats", handlers.GetStats(store, logger))

		api.Get("/articles", handlers.ListArticles(store, resolver, logger))
		api.Get("/articles/{identity}", handlers.GetArticle(store, logger))

		api.Get("/runs", handlers.ListRuns(store, logger))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
