package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	// DefaultMinTextChars is the shortest extracted text treated as a real body.
	DefaultMinTextChars = 200
	// DefaultMaxWords caps the text handed to the summarizer.
	DefaultMaxWords = 5000

	maxPageBytes = 10 << 20
)

// Selectors tried in order when readability finds no substantial body.
var contentSelectors = []string{
	"article",
	"[role=main]",
	"main",
	".post-content",
	".article-content",
	".entry-content",
	".post-body",
	".content",
}

// ExtractionError reports that no readable body could be obtained for a link.
type ExtractionError struct {
	Link   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extracting %s: %s", e.Link, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor fetches article pages and returns their readable text.
type Extractor struct {
	client   *http.Client
	limiter  *HostLimiter
	logger   *slog.Logger
	minChars int
	maxWords int
}

// NewExtractor creates an Extractor. Non-positive limits use the defaults.
func NewExtractor(client *http.Client, limiter *HostLimiter, logger *slog.Logger, minChars, maxWords int) *Extractor {
	if minChars <= 0 {
		minChars = DefaultMinTextChars
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &Extractor{
		client:   client,
		limiter:  limiter,
		logger:   logger.With("component", "extractor"),
		minChars: minChars,
		maxWords: maxWords,
	}
}

// Extract fetches link and returns its main text truncated to the word cap.
// Every failure is returned as *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil || pageURL.Host == "" {
		return "", &ExtractionError{Link: link, Reason: "invalid link", Err: err}
	}

	if err := e.limiter.Wait(ctx, link); err != nil {
		return "", &ExtractionError{Link: link, Reason: "rate limit wait", Err: err}
	}

	body, err := e.fetch(ctx, link)
	if err != nil {
		return "", err
	}

	text := e.readable(body, pageURL)
	if utf8.RuneCountInString(text) < e.minChars {
		fallback := e.selectorText(body)
		if utf8.RuneCountInString(fallback) > utf8.RuneCountInString(text) {
			text = fallback
		}
	}

	if n := utf8.RuneCountInString(text); n < e.minChars {
		return "", &ExtractionError{
			Link:   link,
			Reason: fmt.Sprintf("no substantial body text (%d chars)", n),
		}
	}

	return TruncateWords(text, e.maxWords), nil
}

func (e *Extractor) fetch(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, &ExtractionError{Link: link, Reason: "building request", Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &ExtractionError{Link: link, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ExtractionError{Link: link, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" {
			return nil, &ExtractionError{Link: link, Reason: fmt.Sprintf("unsupported content type %q", mt)}
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &ExtractionError{Link: link, Reason: "reading body", Err: err}
	}
	return body, nil
}

// readable runs go-readability over the page body.
func (e *Extractor) readable(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		e.logger.Debug("readability failed", "url", pageURL.String(), "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// selectorText looks for the first well-known content container with enough
// text, then falls back to all paragraphs on the page.
func (e *Extractor) selectorText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, iframe, form").Remove()

	for _, sel := range contentSelectors {
		text := normalizeWhitespace(doc.Find(sel).First().Text())
		if utf8.RuneCountInString(text) >= e.minChars {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := normalizeWhitespace(s.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}
