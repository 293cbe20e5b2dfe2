package storage

import (
	"context"
	"fmt"
	"time"
)

// DailyUsage returns the number of summarization requests made on day (UTC).
func (s *Store) DailyUsage(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT requests FROM api_usage WHERE day = ?), 0)`,
		day.UTC().Format(time.DateOnly),
	).Scan(&n)
	if err != nil {
		return 0, unavailable("daily_usage", fmt.Errorf("reading usage: %w", err))
	}
	return n, nil
}

// IncrementUsage adds one request to day's counter and returns the new total.
func (s *Store) IncrementUsage(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO api_usage (day, requests) VALUES (?, 1)
		 ON CONFLICT(day) DO UPDATE SET requests = requests + 1
		 RETURNING requests`,
		day.UTC().Format(time.DateOnly),
	).Scan(&n)
	if err != nil {
		return 0, unavailable("increment_usage", fmt.Errorf("incrementing usage: %w", err))
	}
	return n, nil
}
