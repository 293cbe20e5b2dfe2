// Package feeds turns subscribed feed endpoints into normalized articles and
// extracts readable text from article pages.
package feeds

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

// FeedFetchError reports that one feed could not be retrieved or parsed.
// It never aborts a batch.
type FeedFetchError struct {
	FeedURL string
	Err     error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("fetching feed %s: %v", e.FeedURL, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

// Reader fetches feeds one at a time and yields in-range articles.
type Reader struct {
	client  *http.Client
	limiter *HostLimiter
	logger  *slog.Logger

	// OnFailure, when set, is called by Fetch once for every feed that fails.
	OnFailure func(*FeedFetchError)
}

// NewReader creates a Reader. A nil limiter disables per-host spacing.
func NewReader(client *http.Client, limiter *HostLimiter, logger *slog.Logger) *Reader {
	return &Reader{
		client:  client,
		limiter: limiter,
		logger:  logger.With("component", "feeds"),
	}
}

// Fetch returns a lazy sequence over all articles from feedURLs whose publish
// time is within tr or unknown. Feeds are retrieved in order as the sequence
// is consumed; a failing feed is logged, reported to OnFailure and skipped.
// Each identity is yielded at most once. The sequence is not restartable.
func (r *Reader) Fetch(ctx context.Context, feedURLs []string, tr timerange.TimeRange) iter.Seq[models.Article] {
	return r.FetchReport(ctx, feedURLs, tr, r.OnFailure)
}

// FetchReport is Fetch with a per-call failure callback in place of
// OnFailure. onFailure may be nil.
func (r *Reader) FetchReport(ctx context.Context, feedURLs []string, tr timerange.TimeRange, onFailure func(*FeedFetchError)) iter.Seq[models.Article] {
	consumed := false
	return func(yield func(models.Article) bool) {
		if consumed {
			return
		}
		consumed = true

		seen := make(map[string]bool)
		for _, feedURL := range feedURLs {
			if ctx.Err() != nil {
				return
			}

			articles, err := r.fetchFeed(ctx, feedURL)
			if err != nil {
				fe := &FeedFetchError{FeedURL: feedURL, Err: err}
				r.logger.Warn("failed to fetch feed", "url", feedURL, "error", err)
				if onFailure != nil {
					onFailure(fe)
				}
				continue
			}

			kept := 0
			for _, a := range articles {
				if !tr.Contains(a.PublishedAt) || seen[a.Identity] {
					continue
				}
				seen[a.Identity] = true
				kept++
				if !yield(a) {
					return
				}
			}
			r.logger.Info("fetched feed", "url", feedURL, "items", len(articles), "in_range", kept)
		}
	}
}

// fetchFeed retrieves one feed. Feeds with a "scrape://" URL are read as HTML
// listing pages; all others use RSS/Atom parsing.
func (r *Reader) fetchFeed(ctx context.Context, feedURL string) ([]models.Article, error) {
	if IsScrapeURL(feedURL) {
		return r.scrapeListing(ctx, feedURL)
	}

	if err := r.limiter.Wait(ctx, feedURL); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	fp := gofeed.NewParser()
	fp.Client = r.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	return normalizeFeed(feedURL, feed), nil
}

// normalizeFeed converts gofeed items into Articles. Items missing both a
// title and a link are dropped.
func normalizeFeed(feedURL string, feed *gofeed.Feed) []models.Article {
	sourceName := strings.TrimSpace(feed.Title)

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := StripHTML(item.Title)
		link := strings.TrimSpace(item.Link)
		if link == "" && isPermalink(item.GUID) {
			link = item.GUID
		}
		if title == "" && link == "" {
			continue
		}
		if title == "" {
			title = link
		}

		articles = append(articles, models.Article{
			Identity:    Identity(title, link, feedURL),
			Title:       title,
			Link:        link,
			Description: StripHTML(item.Description),
			Content:     StripHTML(item.Content),
			PublishedAt: itemTime(item),
			SourceFeed:  feedURL,
			SourceName:  sourceName,
		})
	}
	return articles
}

// itemTime prefers the published timestamp and falls back to updated.
func itemTime(item *gofeed.Item) *time.Time {
	for _, t := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if t != nil && !t.IsZero() {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

func isPermalink(guid string) bool {
	return strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://")
}
