package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	telegramAPIBase    = "https://api.telegram.org"
	telegramMaxChars   = 4096 // sendMessage text limit
	telegramMaxSummary = 500
)

// TelegramNotifier sends digests to a Telegram chat via the Bot API.
type TelegramNotifier struct {
	botToken  string
	chatID    string
	apiBase   string
	sendEmpty bool
	client    *http.Client
	logger    *slog.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier registers the bot token and chat identifier.
func NewTelegramNotifier(botToken, chatID string, sendEmpty bool, client *http.Client, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:  botToken,
		chatID:    chatID,
		apiBase:   telegramAPIBase,
		sendEmpty: sendEmpty,
		client:    client,
		logger:    logger.With("component", "telegram"),
	}
}

// Notify posts one HTML message per batch of items.
func (n *TelegramNotifier) Notify(ctx context.Context, items []Item) error {
	if n.botToken == "" || n.chatID == "" {
		return errors.New("telegram notifier misconfigured")
	}
	if len(items) == 0 {
		if !n.sendEmpty {
			return nil
		}
		return n.sendMessage(ctx, "<b>RSS Digest</b>\n\nNo new articles in this time range.")
	}

	batches := splitBatches(items, telegramMaxChars, 64, func(it Item) int {
		return len([]rune(formatTelegramItem(it)))
	})

	var (
		errs   []error
		failed int
	)
	for i, batch := range batches {
		var b strings.Builder
		fmt.Fprintf(&b, "<b>RSS Digest</b> (%d/%d)\n", i+1, len(batches))
		for _, it := range batch {
			b.WriteString("\n")
			b.WriteString(formatTelegramItem(it))
		}
		if err := n.sendMessage(ctx, b.String()); err != nil {
			n.logger.Error("failed to send message", "batch", i+1, "error", err)
			failed += len(batch)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &DeliveryError{Channel: "telegram", Failed: failed, Total: len(items), Err: errors.Join(errs...)}
}

func formatTelegramItem(it Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<a href=\"%s\">%s</a>\n", html.EscapeString(it.Link), html.EscapeString(it.Title))
	fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(it.Source()))
	if it.SummaryText != "" {
		b.WriteString(html.EscapeString(truncateRunes(it.SummaryText, telegramMaxSummary)))
		b.WriteString("\n")
	}
	return b.String()
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &result) == nil && result.Description != "" {
			return fmt.Errorf("telegram error: %s: %s", resp.Status, result.Description)
		}
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram error: %s", result.Description)
	}
	return nil
}
