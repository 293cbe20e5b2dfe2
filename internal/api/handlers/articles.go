package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/storage"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListArticles handles GET /api/articles. Supported query parameters are
// status, source, q, start, end, limit and offset. start and end accept the
// same formats as the run command's --start and --end.
func ListArticles(store *storage.Store, resolver *timerange.Resolver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := storage.RecordFilter{
			Status:     models.Status(q.Get("status")),
			SourceFeed: q.Get("source"),
			Query:      q.Get("q"),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown status "+string(filter.Status))
			return
		}

		if raw := q.Get("start"); raw != "" {
			t, err := resolver.ParsePoint(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter.Start = &t
		}
		if raw := q.Get("end"); raw != "" {
			t, err := resolver.ParsePoint(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter.End = &t
		}

		var err error
		if filter.Limit, err = queryInt(r, "limit", defaultListLimit, maxListLimit); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if filter.Offset, err = queryInt(r, "offset", 0, 0); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		records, err := store.ListRecords(r.Context(), filter)
		if err != nil {
			logger.Error("failed to list articles", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list articles")
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}

// GetArticle handles GET /api/articles/{identity}.
func GetArticle(store *storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := parseIdentity(r, "identity")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := store.GetRecord(r.Context(), identity)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Article not found")
				return
			}
			logger.Error("failed to get article", "identity", identity, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get article")
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}
