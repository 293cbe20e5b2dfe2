// Package summarizer turns extracted article text into a short English
// summary using an LLM provider.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoanghai1803/rssdigest/internal/ai"
	"github.com/hoanghai1803/rssdigest/internal/retry"
)

// ErrQuotaExhausted is returned once the daily request quota is used up.
var ErrQuotaExhausted = errors.New("daily summarization quota exhausted")

// SummarizationError reports that no usable summary could be produced for an
// article after all retries.
type SummarizationError struct {
	Title  string
	Reason string
	Err    error
}

func (e *SummarizationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("summarizing %q: %s", e.Title, e.Reason)
	}
	return fmt.Sprintf("summarizing %q: %s: %v", e.Title, e.Reason, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// UsageStore persists the per-day request counter.
type UsageStore interface {
	DailyUsage(ctx context.Context, day time.Time) (int, error)
	IncrementUsage(ctx context.Context, day time.Time) (int, error)
}

// Config bounds summary length and API consumption.
type Config struct {
	MinWords          int
	MaxWords          int
	MaxTokens         int
	RequestsPerMinute int // 0 disables rate limiting
	DailyQuota        int // 0 disables the quota
	Retry             retry.Policy
}

// SummaryInput is the text to summarize plus context for the prompt.
type SummaryInput struct {
	Title        string
	Text         string
	Source       string
	LanguageHint string
}

// Summary is a successful summarization.
type Summary struct {
	Text     string
	Language string
	Model    string
}

// Summarizer produces summaries one at a time. It is safe for sequential use
// only; the pipeline never calls it concurrently.
type Summarizer struct {
	provider ai.Provider
	detector Detector
	usage    UsageStore
	limiter  *rate.Limiter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Summarizer. detector and usage may be nil; without a detector
// every text is treated as English, and without a usage store the daily quota
// is not enforced.
func New(provider ai.Provider, detector Detector, usage UsageStore, cfg Config, logger *slog.Logger) *Summarizer {
	s := &Summarizer{
		provider: provider,
		detector: detector,
		usage:    usage,
		cfg:      cfg,
		logger:   logger.With("component", "summarizer"),
		now:      time.Now,
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return s
}

// Summarize returns an English summary of in.Text whose length lies within
// [MinWords, MaxWords] when the model cooperates. A reply below MinWords is
// retried once with a request for more detail and the longer of the two is
// kept. A reply above MaxWords is cut to MaxWords.
func (s *Summarizer) Summarize(ctx context.Context, in SummaryInput) (*Summary, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, &SummarizationError{Title: in.Title, Reason: "no text to summarize"}
	}

	lang := strings.TrimSpace(in.LanguageHint)
	if lang == "" {
		lang = s.detect(text)
	}

	prompt := ai.SummaryPrompt{
		Title:    in.Title,
		Source:   in.Source,
		Content:  text,
		Language: lang,
		MinWords: s.cfg.MinWords,
		MaxWords: s.cfg.MaxWords,
	}

	out, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, &SummarizationError{Title: in.Title, Reason: "provider request failed", Err: err}
	}

	if n := wordCount(out); s.cfg.MinWords > 0 && n < s.cfg.MinWords {
		s.logger.Debug("summary below minimum length, retrying",
			"title", in.Title, "words", n, "min", s.cfg.MinWords)

		prompt.Expand = true
		longer, err := s.complete(ctx, prompt)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, &SummarizationError{Title: in.Title, Reason: "cancelled", Err: err}
		case err != nil:
			s.logger.Warn("expanded summary request failed, keeping short summary",
				"title", in.Title, "error", err)
		case wordCount(longer) > n:
			out = longer
		}
	}

	if s.cfg.MaxWords > 0 {
		out = trimWords(out, s.cfg.MaxWords)
	}
	if out == "" {
		return nil, &SummarizationError{Title: in.Title, Reason: "empty summary"}
	}

	return &Summary{Text: out, Language: lang, Model: s.provider.Model()}, nil
}

func (s *Summarizer) detect(text string) string {
	if s.detector == nil {
		return English
	}
	if lang := s.detector.Detect(text); lang != "" {
		return lang
	}
	return English
}

// complete sends one prompt under the retry policy. Every attempt counts
// against the rate limit and the daily quota.
func (s *Summarizer) complete(ctx context.Context, prompt ai.SummaryPrompt) (string, error) {
	system, user := prompt.Build()

	var reply string
	err := retry.Do(ctx, s.cfg.Retry, ai.IsRetryable, s.logger, func(ctx context.Context) error {
		if err := s.acquire(ctx); err != nil {
			return err
		}
		out, err := s.provider.Complete(ctx, ai.Request{
			System:    system,
			User:      user,
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			return err
		}
		reply = ai.CleanSummary(out)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// acquire waits for the rate limiter and reserves one request from today's
// quota.
func (s *Summarizer) acquire(ctx context.Context) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limit: %w", err)
		}
	}
	if s.usage == nil || s.cfg.DailyQuota <= 0 {
		return nil
	}

	today := s.now().UTC()
	used, err := s.usage.DailyUsage(ctx, today)
	if err != nil {
		return fmt.Errorf("reading daily usage: %w", err)
	}
	if used >= s.cfg.DailyQuota {
		return fmt.Errorf("%w: %d of %d requests used", ErrQuotaExhausted, used, s.cfg.DailyQuota)
	}
	if _, err := s.usage.IncrementUsage(ctx, today); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// trimWords keeps the first n words, collapsing whitespace only when it
// actually cuts.
func trimWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
