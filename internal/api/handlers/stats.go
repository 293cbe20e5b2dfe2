package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/rssdigest/internal/storage"
)

// Health handles GET /api/health. It reports 503 when the store is unreachable.
func Health(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// GetStats handles GET /api/stats.
func GetStats(store *storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Statistics(r.Context())
		if err != nil {
			logger.Error("failed to get statistics", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get statistics")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// ListRuns handles GET /api/runs. The optional limit parameter caps the
// number of runs returned, newest first.
func ListRuns(store *storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 20, 200)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if limit == 0 {
			limit = 20
		}

		runs, err := store.RecentRuns(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}
