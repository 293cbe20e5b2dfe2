package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	calls [][]Item
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, items []Item) error {
	r.calls = append(r.calls, items)
	return r.err
}

func TestSplitBatches(t *testing.T) {
	items := make([]Item, 5)
	size := func(Item) int { return 30 }

	tests := []struct {
		name    string
		limit   int
		reserve int
		want    []int
	}{
		{"all fit", 1000, 0, []int{5}},
		{"two per batch", 70, 10, []int{2, 2, 1}},
		{"oversized item alone", 20, 0, []int{1, 1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitBatches(items, tt.limit, tt.reserve, size)
			if len(got) != len(tt.want) {
				t.Fatalf("batches = %d, want %d", len(got), len(tt.want))
			}
			for i, b := range got {
				if len(b) != tt.want[i] {
					t.Errorf("batch %d size = %d, want %d", i, len(b), tt.want[i])
				}
			}
		})
	}

	if got := splitBatches(nil, 100, 0, size); len(got) != 0 {
		t.Errorf("empty input produced %d batches", len(got))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncateRunes("héllo world", 5); got != "héllo..." {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes = %q", got)
	}

	s := strings.Repeat("é", 10) // 20 bytes
	got := truncateBytes(s, 10)
	if len(got) > 10 {
		t.Errorf("truncateBytes length = %d, want <= 10", len(got))
	}
	if !strings.HasSuffix(got, "...") || strings.ContainsRune(got, '\uFFFD') {
		t.Errorf("truncateBytes = %q", got)
	}
}

func TestFailedCount(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 4},
		{"partial", &DeliveryError{Failed: 1, Total: 4}, 1},
		{"wrapped partial", errors.Join(&DeliveryError{Failed: 3, Total: 4}), 3},
	}
	for _, tt := range tests {
		if got := FailedCount(tt.err, 4); got != tt.want {
			t.Errorf("%s: FailedCount() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: &DeliveryError{Channel: "x", Failed: 1, Total: 2, Err: errors.New("down")}}
	m := NewMulti(discardLogger(), ok, nil, bad)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	items := []Item{{Title: "a"}, {Title: "b"}}
	err := m.Notify(context.Background(), items)
	if len(ok.calls) != 1 || len(bad.calls) != 1 {
		t.Fatalf("each notifier should be called once, got %d and %d", len(ok.calls), len(bad.calls))
	}
	if got := FailedCount(err, len(items)); got != 1 {
		t.Errorf("FailedCount = %d, want 1", got)
	}

	if err := NewMulti(discardLogger(), ok).Notify(context.Background(), items); err != nil {
		t.Errorf("healthy Multi returned %v", err)
	}
}

func TestItemSource(t *testing.T) {
	if got := (Item{SourceFeed: "https://f", SourceName: "Blog"}).Source(); got != "Blog" {
		t.Errorf("Source() = %q", got)
	}
	if got := (Item{SourceFeed: "https://f"}).Source(); got != "https://f" {
		t.Errorf("Source() = %q", got)
	}
}
