package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hoanghai1803/rssdigest/internal/models"
)

// RecordRun stores the outcome of one pipeline run.
func (s *Store) RecordRun(ctx context.Context, r *models.RunResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
			(id, mode, range_start, range_end, fetched, skipped_duplicate, summarized,
			 extraction_failed, summarization_failed, notified, notify_failed, failed_feeds,
			 started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Mode, formatTime(r.RangeStart), formatTime(r.RangeEnd),
		r.Fetched, r.SkippedDuplicate, r.Summarized,
		r.ExtractionFailed, r.SummarizationFailed, r.Notified, r.NotifyFailed,
		strings.Join(r.FailedFeeds, "\n"),
		formatTime(r.StartedAt), formatTime(r.FinishedAt),
	)
	if err != nil {
		return unavailable("record_run", fmt.Errorf("inserting run %s: %w", r.RunID, err))
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, range_start, range_end, fetched, skipped_duplicate, summarized,
				extraction_failed, summarization_failed, notified, notify_failed, failed_feeds,
				started_at, finished_at
		 FROM runs
		 ORDER BY finished_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("recent_runs", fmt.Errorf("querying runs: %w", err))
	}
	defer rows.Close()

	runs := []models.RunResult{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, unavailable("recent_runs", fmt.Errorf("scanning run: %w", err))
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("recent_runs", fmt.Errorf("iterating runs: %w", err))
	}
	return runs, nil
}

// LastRun returns the most recent full run, or ErrNotFound if none exists.
func (s *Store) LastRun(ctx context.Context) (*models.RunResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mode, range_start, range_end, fetched, skipped_duplicate, summarized,
				extraction_failed, summarization_failed, notified, notify_failed, failed_feeds,
				started_at, finished_at
		 FROM runs
		 WHERE mode = ?
		 ORDER BY finished_at DESC, id DESC
		 LIMIT 1`, models.RunModeFull)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("last_run", fmt.Errorf("querying last run: %w", err))
	}
	return r, nil
}

func scanRun(row scanner) (*models.RunResult, error) {
	var (
		r                     models.RunResult
		mode, failedFeeds     string
		rangeStart, rangeEnd  string
		startedAt, finishedAt string
	)
	if err := row.Scan(
		&r.RunID, &mode, &rangeStart, &rangeEnd,
		&r.Fetched, &r.SkippedDuplicate, &r.Summarized,
		&r.ExtractionFailed, &r.SummarizationFailed, &r.Notified, &r.NotifyFailed,
		&failedFeeds, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	r.Mode = models.RunMode(mode)
	r.RangeStart = parseTime(rangeStart)
	r.RangeEnd = parseTime(rangeEnd)
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTime(finishedAt)
	if failedFeeds != "" {
		r.FailedFeeds = strings.Split(failedFeeds, "\n")
	}
	return &r, nil
}
