package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/storage"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	last *models.RunResult
	err  error
}

func (f *fakeHistory) LastRun(context.Context) (*models.RunResult, error) {
	return f.last, f.err
}

func TestNewTrigger(t *testing.T) {
	tr, err := NewTrigger("", 6)
	if err != nil {
		t.Fatalf("NewTrigger() error: %v", err)
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := tr.Next(from); !got.Equal(from.Add(6 * time.Hour)) {
		t.Errorf("interval Next() = %v", got)
	}

	if _, err := NewTrigger("", 0); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := NewTrigger("bad cron", 6); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if _, err := NewTrigger("0 8 * * *", 0); err != nil {
		t.Errorf("cron trigger error: %v", err)
	}
}

func TestNextBounds(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	lastEnd := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		history RunHistory
		want    timerange.Bounds
	}{
		{"no history", nil, timerange.Bounds{}},
		{"first run", &fakeHistory{err: storage.ErrNotFound}, timerange.Bounds{}},
		{"history error", &fakeHistory{err: errors.New("db locked")}, timerange.Bounds{}},
		{"resume from last end", &fakeHistory{last: &models.RunResult{RangeEnd: lastEnd}}, timerange.Bounds{Start: "2024-01-02T06:00:00Z"}},
		{"last end in the future", &fakeHistory{last: &models.RunResult{RangeEnd: now.Add(time.Hour)}}, timerange.Bounds{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Interval(time.Hour), nil, tt.history, discardLogger())
			s.now = func() time.Time { return now }
			if got := s.nextBounds(context.Background()); got != tt.want {
				t.Errorf("nextBounds() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStart_RunsImmediatelyAndOnEachTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan time.Time)
	var boundsSeen []timerange.Bounds
	job := func(_ context.Context, bounds timerange.Bounds) (*models.RunResult, error) {
		boundsSeen = append(boundsSeen, bounds)
		if len(boundsSeen) == 2 {
			return nil, errors.New("transient failure")
		}
		if len(boundsSeen) == 3 {
			cancel()
		}
		return &models.RunResult{RunID: "r"}, nil
	}

	s := New(Interval(time.Hour), job, nil, discardLogger())
	s.after = func(time.Duration) <-chan time.Time { return ticks }

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	ticks <- time.Now()
	ticks <- time.Now()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	if len(boundsSeen) != 3 {
		t.Errorf("job ran %d times, want 3", len(boundsSeen))
	}
}
