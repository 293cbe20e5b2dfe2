package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hoanghai1803/rssdigest/internal/retry"
)

const (
	// WeComMaxContentBytes is the markdown message size limit of the
	// WeCom group robot.
	WeComMaxContentBytes = 4096
	// wecomHeaderReserve is kept free in each batch for the message header.
	wecomHeaderReserve = 150
	// WeComMaxSummaryChars caps each summary inside a message.
	WeComMaxSummaryChars = 300
)

// WeComOptions tunes a WeComNotifier.
type WeComOptions struct {
	Title      string
	SendEmpty  bool
	BatchDelay time.Duration
	Retry      retry.Policy
}

// WeComNotifier posts markdown digests to a WeCom group robot webhook.
type WeComNotifier struct {
	webhookURL string
	client     *http.Client
	opts       WeComOptions
	logger     *slog.Logger
}

var _ Notifier = (*WeComNotifier)(nil)

// NewWeComNotifier creates a notifier for webhookURL.
func NewWeComNotifier(webhookURL string, client *http.Client, opts WeComOptions, logger *slog.Logger) *WeComNotifier {
	if opts.Title == "" {
		opts.Title = "RSS Digest"
	}
	return &WeComNotifier{
		webhookURL: webhookURL,
		client:     client,
		opts:       opts,
		logger:     logger.With("component", "wecom"),
	}
}

type wecomMessage struct {
	MsgType  string        `json:"msgtype"`
	Markdown wecomMarkdown `json:"markdown"`
}

type wecomMarkdown struct {
	Content string `json:"content"`
}

type wecomResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Notify splits items into messages under the size limit and sends them in
// order. A failed batch does not stop later batches.
func (n *WeComNotifier) Notify(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		if !n.opts.SendEmpty {
			return nil
		}
		content := fmt.Sprintf("# %s\n\nNo new articles in this time range.", n.opts.Title)
		return n.send(ctx, content)
	}

	batches := splitBatches(items, WeComMaxContentBytes, wecomHeaderReserve, estimateWeComItem)
	n.logger.Info("sending digest", "items", len(items), "batches", len(batches))

	var (
		errs   []error
		failed int
	)
	for i, batch := range batches {
		if i > 0 {
			if err := sleepCtx(ctx, n.opts.BatchDelay); err != nil {
				failed += countItems(batches[i:])
				errs = append(errs, err)
				break
			}
		}
		content := formatWeComBatch(n.opts.Title, batch, i+1, len(batches))
		if err := n.send(ctx, content); err != nil {
			n.logger.Error("failed to send batch", "batch", i+1, "items", len(batch), "error", err)
			failed += len(batch)
			errs = append(errs, fmt.Errorf("batch %d: %w", i+1, err))
			continue
		}
		n.logger.Debug("sent batch", "batch", i+1, "items", len(batch))
	}

	if len(errs) == 0 {
		return nil
	}
	return &DeliveryError{Channel: "wecom", Failed: failed, Total: len(items), Err: errors.Join(errs...)}
}

// send posts one markdown message, retrying transport failures and non-zero
// errcode replies under the retry policy.
func (n *WeComNotifier) send(ctx context.Context, content string) error {
	payload, err := json.Marshal(wecomMessage{MsgType: "markdown", Markdown: wecomMarkdown{Content: content}})
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	notCancelled := func(err error) bool { return !errors.Is(err, context.Canceled) }
	return retry.Do(ctx, n.opts.Retry, notCancelled, n.logger, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("posting webhook: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("webhook returned %s", resp.Status)
		}

		var result wecomResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if result.ErrCode != 0 {
			return fmt.Errorf("wecom errcode %d: %s", result.ErrCode, result.ErrMsg)
		}
		return nil
	})
}

// estimateWeComItem approximates the rendered size of one item, including
// markup, so batches can be cut before formatting.
func estimateWeComItem(it Item) int {
	size := len(it.Title) + 20
	size += len(it.Source()) + 20
	size += len(it.Link)*2 + 20
	if it.SummaryText != "" {
		// Summaries are cut by characters; count up to 3 bytes each.
		size += min(len(it.SummaryText), WeComMaxSummaryChars*3) + 30
	}
	return size + 10
}

func formatWeComBatch(title string, items []Item, batch, total int) string {
	var b strings.Builder
	if total > 1 {
		fmt.Fprintf(&b, "# %s (Batch %d/%d)\n", title, batch, total)
	} else {
		fmt.Fprintf(&b, "# %s\n", title)
	}
	fmt.Fprintf(&b, "**%d** new articles\n---\n", len(items))

	for i, it := range items {
		fmt.Fprintf(&b, "\n### %d. %s\n", i+1, it.Title)
		fmt.Fprintf(&b, "**Source:** %s\n", it.Source())
		fmt.Fprintf(&b, "**Link:** [%s](%s)\n", it.Link, it.Link)
		if it.SummaryText != "" {
			fmt.Fprintf(&b, "\n**Summary:**\n%s\n", truncateRunes(it.SummaryText, WeComMaxSummaryChars))
		}
		if i < len(items)-1 {
			b.WriteString("\n---\n")
		}
	}

	return truncateBytes(b.String(), WeComMaxContentBytes)
}

func countItems(batches [][]Item) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}
