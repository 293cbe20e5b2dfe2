// Package pipeline runs one ingestion pass: resolve the time range, read the
// subscribed feeds, skip already-processed articles, extract and summarize the
// rest, persist each outcome and notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hoanghai1803/rssdigest/internal/feeds"
	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/notify"
	"github.com/hoanghai1803/rssdigest/internal/storage"
	"github.com/hoanghai1803/rssdigest/internal/summarizer"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

// FeedSource yields in-range articles from the given feeds.
type FeedSource interface {
	FetchReport(ctx context.Context, feedURLs []string, tr timerange.TimeRange, onFailure func(*feeds.FeedFetchError)) iter.Seq[models.Article]
}

// Extractor returns the readable text of an article page.
type Extractor interface {
	Extract(ctx context.Context, link string) (string, error)
}

// Summarizer condenses article text.
type Summarizer interface {
	Summarize(ctx context.Context, in summarizer.SummaryInput) (*summarizer.Summary, error)
}

// Store is the dedup store plus run history.
type Store interface {
	IsProcessed(ctx context.Context, identity string) (bool, error)
	Mark(ctx context.Context, rec *models.ProcessedRecord) error
	SummarizedInRange(ctx context.Context, start, end time.Time) ([]models.ProcessedRecord, error)
	CleanupOld(ctx context.Context, days int) (int64, error)
	RecordRun(ctx context.Context, r *models.RunResult) error
}

// Config holds run-level settings.
type Config struct {
	FeedURLs []string
	// MinContentChars is the shortest inline feed content accepted when the
	// article page cannot be extracted.
	MinContentChars int
	MaxWords        int
	RetentionDays   int // 0 keeps records forever
}

// RunOptions selects the range and mode of one Run.
type RunOptions struct {
	Range timerange.Bounds
	// Force reprocesses articles that were already summarized.
	Force bool
	// DryRun persists outcomes but does not notify.
	DryRun bool
}

// Pipeline wires the components of a run together. A Pipeline must not run
// concurrently with itself.
type Pipeline struct {
	resolver   *timerange.Resolver
	source     FeedSource
	extractor  Extractor
	summarizer Summarizer
	store      Store
	notifier   notify.Notifier
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Pipeline. notifier may be nil to disable notifications.
func New(resolver *timerange.Resolver, source FeedSource, extractor Extractor, sum Summarizer, store Store, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = feeds.DefaultMinTextChars
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = feeds.DefaultMaxWords
	}
	return &Pipeline{
		resolver:   resolver,
		source:     source,
		extractor:  extractor,
		summarizer: sum,
		store:      store,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With("component", "pipeline"),
		now:        time.Now,
	}
}

// Run processes every candidate article in the resolved range. Per-article
// and per-feed failures are recorded and counted; only an invalid range, a
// store failure or cancellation return an error. The partial result is
// returned alongside any error.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*models.RunResult, error) {
	tr, err := p.resolver.Resolve(opts.Range)
	if err != nil {
		return nil, err
	}

	res := p.newResult(models.RunModeFull, tr)
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("starting run",
		"range", tr.String(),
		"feeds", len(p.cfg.FeedURLs),
		"force", opts.Force,
		"dry_run", opts.DryRun)

	isProcessed := p.store.IsProcessed
	if opts.Force {
		isProcessed = func(context.Context, string) (bool, error) { return false, nil }
	}

	onFailure := func(fe *feeds.FeedFetchError) {
		res.FailedFeeds = append(res.FailedFeeds, fe.FeedURL)
	}

	var summarized []notify.Item
	for article := range p.source.FetchReport(ctx, p.cfg.FeedURLs, tr, onFailure) {
		res.Fetched++

		done, err := isProcessed(ctx, article.Identity)
		if err != nil {
			return p.finish(ctx, res, fmt.Errorf("checking %s: %w", article.Identity, err))
		}
		if done {
			res.SkippedDuplicate++
			logger.Debug("skipping processed article", "identity", article.Identity, "title", article.Title)
			continue
		}

		item, err := p.processArticle(ctx, logger, res, article)
		if err != nil {
			return p.finish(ctx, res, err)
		}
		if item != nil {
			summarized = append(summarized, *item)
		}
	}
	if err := ctx.Err(); err != nil {
		return p.finish(ctx, res, fmt.Errorf("run cancelled: %w", err))
	}

	if !opts.DryRun {
		p.deliver(ctx, logger, res, summarized)
	}

	if p.cfg.RetentionDays > 0 {
		n, err := p.store.CleanupOld(ctx, p.cfg.RetentionDays)
		if err != nil {
			return p.finish(ctx, res, fmt.Errorf("cleaning up old records: %w", err))
		}
		if n > 0 {
			logger.Info("removed expired records", "count", n, "retention_days", p.cfg.RetentionDays)
		}
	}

	return p.finish(ctx, res, nil)
}

// processArticle extracts, summarizes and persists one article. It returns
// the notification item for a summarized article, nil for a recorded
// failure, and an error only when the run must stop. A failure recorded for
// an article that is already summarized leaves the stored summary in place.
func (p *Pipeline) processArticle(ctx context.Context, logger *slog.Logger, res *models.RunResult, a models.Article) (*notify.Item, error) {
	rec := &models.ProcessedRecord{
		Identity:    a.Identity,
		Title:       a.Title,
		Link:        a.Link,
		SourceFeed:  a.SourceFeed,
		SourceName:  a.SourceName,
		PublishedAt: a.PublishedAt,
		RunID:       res.RunID,
	}

	text, err := p.articleText(ctx, a)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		}
		logger.Warn("extraction failed", "title", a.Title, "link", a.Link, "error", err)
		rec.Status = models.StatusExtractionFailed
		rec.FailureReason = err.Error()
		if err := p.store.Mark(ctx, rec); err != nil {
			return nil, fmt.Errorf("recording extraction failure: %w", err)
		}
		res.ExtractionFailed++
		return nil, nil
	}

	sum, err := p.summarizer.Summarize(ctx, summarizer.SummaryInput{
		Title:  a.Title,
		Text:   text,
		Source: a.SourceName,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		}
		// The usage counter lives in the store.
		var ue *storage.UnavailableError
		if errors.As(err, &ue) {
			return nil, fmt.Errorf("summarizing %s: %w", a.Identity, err)
		}
		logger.Warn("summarization failed", "title", a.Title, "error", err)
		rec.Status = models.StatusSummarizationFailed
		rec.FailureReason = err.Error()
		if err := p.store.Mark(ctx, rec); err != nil {
			return nil, fmt.Errorf("recording summarization failure: %w", err)
		}
		res.SummarizationFailed++
		return nil, nil
	}

	rec.Status = models.StatusSummarized
	rec.SummaryText = &sum.Text
	rec.Language = sum.Language
	rec.Model = sum.Model
	if err := p.store.Mark(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording summary: %w", err)
	}
	res.Summarized++
	logger.Info("summarized article", "title", a.Title, "language", sum.Language)

	return &notify.Item{
		Title:       a.Title,
		Link:        a.Link,
		SummaryText: sum.Text,
		SourceFeed:  a.SourceFeed,
		SourceName:  a.SourceName,
		PublishedAt: a.PublishedAt,
	}, nil
}

// articleText extracts the article page, falling back to the feed's inline
// content when that is long enough on its own.
func (p *Pipeline) articleText(ctx context.Context, a models.Article) (string, error) {
	text, err := p.extractor.Extract(ctx, a.Link)
	if err == nil {
		return text, nil
	}
	if ctx.Err() == nil && utf8.RuneCountInString(a.Content) >= p.cfg.MinContentChars {
		p.logger.Debug("using inline feed content", "link", a.Link, "error", err)
		return feeds.TruncateWords(a.Content, p.cfg.MaxWords), nil
	}
	return "", err
}

// PushOnly replays summarized records in the resolved range to the notifier
// without fetching, extracting or summarizing anything.
func (p *Pipeline) PushOnly(ctx context.Context, bounds timerange.Bounds) (*models.RunResult, error) {
	tr, err := p.resolver.Resolve(bounds)
	if err != nil {
		return nil, err
	}

	res := p.newResult(models.RunModePushOnly, tr)
	logger := p.logger.With("run_id", res.RunID)

	records, err := p.store.SummarizedInRange(ctx, tr.Start, tr.End)
	if err != nil {
		return p.finish(ctx, res, fmt.Errorf("loading summarized records: %w", err))
	}
	logger.Info("replaying summaries", "range", tr.String(), "records", len(records))

	items := make([]notify.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, notify.Item{
			Title:       rec.Title,
			Link:        rec.Link,
			SummaryText: rec.Summary(),
			SourceFeed:  rec.SourceFeed,
			SourceName:  rec.SourceName,
			PublishedAt: rec.PublishedAt,
		})
	}
	p.deliver(ctx, logger, res, items)

	return p.finish(ctx, res, nil)
}

// deliver hands items to the notifier. Failures are logged and counted; the
// records keep their summarized status.
func (p *Pipeline) deliver(ctx context.Context, logger *slog.Logger, res *models.RunResult, items []notify.Item) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Notify(ctx, items)
	failed := notify.FailedCount(err, len(items))
	res.Notified += len(items) - failed
	res.NotifyFailed += failed
	if err != nil {
		logger.Error("notification failed", "failed", failed, "total", len(items), "error", err)
	}
}

func (p *Pipeline) newResult(mode models.RunMode, tr timerange.TimeRange) *models.RunResult {
	return &models.RunResult{
		RunID:      newRunID(),
		Mode:       mode,
		RangeStart: tr.Start,
		RangeEnd:   tr.End,
		StartedAt:  p.now().UTC(),
	}
}

// finish stamps the result and, for runs that completed, records it.
func (p *Pipeline) finish(ctx context.Context, res *models.RunResult, runErr error) (*models.RunResult, error) {
	res.FinishedAt = p.now().UTC()

	logger := p.logger.With("run_id", res.RunID)
	logArgs := []any{
		"mode", res.Mode,
		"fetched", res.Fetched,
		"skipped_duplicate", res.SkippedDuplicate,
		"summarized", res.Summarized,
		"extraction_failed", res.ExtractionFailed,
		"summarization_failed", res.SummarizationFailed,
		"notified", res.Notified,
		"notify_failed", res.NotifyFailed,
		"failed_feeds", len(res.FailedFeeds),
		"duration", res.Duration().Round(time.Millisecond),
	}

	if runErr != nil {
		logger.Error("run aborted", append(logArgs, "error", runErr)...)
		return res, runErr
	}

	if err := p.store.RecordRun(ctx, res); err != nil {
		return res, fmt.Errorf("recording run: %w", err)
	}
	logger.Info("run complete", logArgs...)
	return res, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
