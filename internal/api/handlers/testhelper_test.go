package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore creates an in-memory SQLite store with migrations applied. It
// registers a cleanup function to close the database when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(context.Background(), db, discardLogger()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return storage.NewStore(db)
}

// seedRecord marks one record and returns it.
func seedRecord(t *testing.T, store *storage.Store, identity, title string, status models.Status, published time.Time) models.ProcessedRecord {
	t.Helper()

	rec := models.ProcessedRecord{
		Identity:    identity,
		Status:      status,
		Title:       title,
		Link:        "https://example.com/" + title,
		SourceFeed:  "https://example.com/feed",
		SourceName:  "Example",
		PublishedAt: &published,
		ProcessedAt: published,
	}
	if status == models.StatusSummarized {
		summary := "Summary of " + title
		rec.SummaryText = &summary
	}
	if err := store.Mark(context.Background(), &rec); err != nil {
		t.Fatalf("marking %s: %v", title, err)
	}
	return rec
}
