package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/rssdigest/internal/ai"
	"github.com/hoanghai1803/rssdigest/internal/config"
	"github.com/hoanghai1803/rssdigest/internal/feeds"
	"github.com/hoanghai1803/rssdigest/internal/logging"
	"github.com/hoanghai1803/rssdigest/internal/notify"
	"github.com/hoanghai1803/rssdigest/internal/pipeline"
	"github.com/hoanghai1803/rssdigest/internal/storage"
	"github.com/hoanghai1803/rssdigest/internal/summarizer"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

// app holds what every command needs: configuration, a logger and the store.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.Store
	closeLog func() error
	out      io.Writer
	json     bool
}

// openApp loads configuration, sets up logging and opens the store.
func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Log.Level
	if opts.debug {
		level = "debug"
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Dir:    cfg.Log.Dir,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	store, err := storage.Open(cmd.Context(), cfg.Storage.Path, logger)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		closeLog: closeLog,
		out:      cmd.OutOrStdout(),
		json:     opts.json,
	}, nil
}

// Close releases the store and the log file.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.closeLog())
}

func (a *app) resolver() *timerange.Resolver {
	return timerange.NewResolver(a.cfg.Feeds.DefaultWindowHours)
}

// subscriptions merges the subscription file with feeds.urls, keeping the
// first occurrence of each URL.
func (a *app) subscriptions() ([]feeds.Subscription, error) {
	var subs []feeds.Subscription
	if path := a.cfg.Feeds.SubscriptionsFile; path != "" {
		loaded, err := feeds.LoadSubscriptions(path)
		switch {
		case err == nil:
			subs = append(subs, loaded...)
		case errors.Is(err, os.ErrNotExist) && len(a.cfg.Feeds.URLs) > 0:
			a.logger.Warn("subscriptions file not found, using feeds.urls only", "path", path)
		default:
			return nil, err
		}
	}
	for _, u := range a.cfg.Feeds.URLs {
		subs = append(subs, feeds.Subscription{URL: u})
	}

	seen := make(map[string]bool, len(subs))
	out := subs[:0]
	for _, s := range subs {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("no feeds configured")
	}
	return out, nil
}

// notifier returns the configured channels, or nil when none is enabled.
func (a *app) notifier() notify.Notifier {
	client := feeds.NewHTTPClient(30 * time.Second)
	var channels []notify.Notifier
	if n := a.cfg.Notify; n.WeComWebhookURL != "" {
		channels = append(channels, notify.NewWeComNotifier(n.WeComWebhookURL, client, notify.WeComOptions{
			Title:      n.Title,
			SendEmpty:  n.SendEmpty,
			BatchDelay: time.Duration(n.BatchDelaySeconds) * time.Second,
			Retry:      a.cfg.AI.Retry,
		}, a.logger))
	}
	if n := a.cfg.Notify; n.TelegramBotToken != "" && n.TelegramChatID != "" {
		channels = append(channels, notify.NewTelegramNotifier(n.TelegramBotToken, n.TelegramChatID, n.SendEmpty, client, a.logger))
	}
	if len(channels) == 0 {
		return nil
	}
	return notify.NewMulti(a.logger, channels...)
}

// summarizer builds the LLM-backed summarizer. It fails when no API key is
// configured.
func (a *app) summarizer() (*summarizer.Summarizer, error) {
	c := a.cfg.AI
	if c.APIKey == "" {
		return nil, errors.New("ai.api_key is not set: configure it or export AI_API_KEY")
	}
	provider, err := ai.NewProvider(ai.ProviderConfig{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("AI provider configured", "provider", c.Provider, "model", provider.Model())

	return summarizer.New(provider, summarizer.NewLinguaDetector(), a.store, summarizer.Config{
		MinWords:          a.cfg.Summary.MinLength,
		MaxWords:          a.cfg.Summary.MaxLength,
		MaxTokens:         c.MaxTokens,
		RequestsPerMinute: c.RequestsPerMinute,
		DailyQuota:        c.DailyQuota,
		Retry:             c.Retry,
	}, a.logger), nil
}

// pipeline wires a Pipeline. When withSummarizer is false neither a provider
// nor the subscription list is loaded, which is enough for push-only replays.
func (a *app) pipeline(withSummarizer bool) (*pipeline.Pipeline, error) {
	var feedURLs []string
	if withSummarizer {
		subs, err := a.subscriptions()
		if err != nil {
			return nil, err
		}
		feedURLs = feeds.URLs(subs)
	}

	client := feeds.NewHTTPClient(a.cfg.Feeds.Timeout())
	limiter := feeds.NewHostLimiter(a.cfg.Feeds.HostDelay())
	reader := feeds.NewReader(client, limiter, a.logger)
	extractor := feeds.NewExtractor(client, limiter, a.logger, a.cfg.Feeds.MinContentChars, a.cfg.Summary.MaxInputWords)

	var sum pipeline.Summarizer
	if withSummarizer {
		s, err := a.summarizer()
		if err != nil {
			return nil, err
		}
		sum = s
	}

	return pipeline.New(a.resolver(), reader, extractor, sum, a.store, a.notifier(), pipeline.Config{
		FeedURLs:        feedURLs,
		MinContentChars: a.cfg.Feeds.MinContentChars,
		MaxWords:        a.cfg.Summary.MaxInputWords,
		RetentionDays:   a.cfg.Storage.RetentionDays,
	}, a.logger), nil
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(context.Context, *app) error) (err error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), a)
}
