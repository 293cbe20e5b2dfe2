// Package notify delivers article summaries to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

// Item is one summarized article to announce.
type Item struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	SummaryText string     `json:"summary_text"`
	SourceFeed  string     `json:"source_feed"`
	SourceName  string     `json:"source_name,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Source returns the display name of the item's feed.
func (it Item) Source() string {
	if it.SourceName != "" {
		return it.SourceName
	}
	return it.SourceFeed
}

// Notifier delivers a set of items. Implementations split the set into as
// many messages as their channel requires. When only some items could be
// delivered the returned error is a *DeliveryError.
type Notifier interface {
	Notify(ctx context.Context, items []Item) error
}

// DeliveryError reports how many items did not reach the channel.
type DeliveryError struct {
	Channel string
	Failed  int
	Total   int
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %d of %d items not delivered: %v", e.Channel, e.Failed, e.Total, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// FailedCount returns how many of total items an error from Notify covers.
// Errors that are not a *DeliveryError count every item as failed.
func FailedCount(err error, total int) int {
	if err == nil {
		return 0
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return min(de.Failed, total)
	}
	return total
}

// Multi fans items out to several notifiers. An item counts as failed when
// any channel failed to deliver it.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMulti combines notifiers. Nil entries are skipped.
func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	m := &Multi{logger: logger.With("component", "notify")}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of configured channels.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify sends items to every channel and joins the errors.
func (m *Multi) Notify(ctx context.Context, items []Item) error {
	var (
		errs   []error
		failed int
	)
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, items); err != nil {
			m.logger.Warn("notifier failed", "notifier", fmt.Sprintf("%T", n), "error", err)
			errs = append(errs, err)
			failed = max(failed, FailedCount(err, len(items)))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &DeliveryError{Channel: "multi", Failed: failed, Total: len(items), Err: errors.Join(errs...)}
}

// splitBatches groups items in order so that each group's estimated size plus
// reserve stays within limit. An item larger than the limit gets a batch of
// its own.
func splitBatches(items []Item, limit, reserve int, estimate func(Item) int) [][]Item {
	var (
		batches [][]Item
		current []Item
		size    = reserve
	)
	for _, it := range items {
		n := estimate(it)
		if len(current) > 0 && size+n > limit {
			batches = append(batches, current)
			current = nil
			size = reserve
		}
		current = append(current, it)
		size += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// truncateRunes shortens s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// truncateBytes shortens s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
