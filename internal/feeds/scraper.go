package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hoanghai1803/rssdigest/internal/models"
)

const maxListingBytes = 5 << 20

// IsScrapeURL returns true if the feed URL uses the scrape:// scheme,
// indicating it should be fetched via HTML scraping instead of RSS.
func IsScrapeURL(feedURL string) bool {
	return strings.HasPrefix(feedURL, "scrape://")
}

// ScrapeURLToHTTPS converts a scrape:// URL to its https:// equivalent.
func ScrapeURLToHTTPS(feedURL string) string {
	return "https://" + strings.TrimPrefix(feedURL, "scrape://")
}

// scrapeListing fetches a blog listing page and extracts post entries.
func (r *Reader) scrapeListing(ctx context.Context, feedURL string) ([]models.Article, error) {
	pageURL := ScrapeURLToHTTPS(feedURL)

	if err := r.limiter.Wait(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %q: %w", pageURL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %q: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body from %q: %w", pageURL, err)
	}

	return parseListingHTML(feedURL, pageURL, string(body))
}

// parseListingHTML extracts post links from a listing page. A link counts as
// a post when it sits inside an <article> element or carries one of the
// common post-link classes:
//
//	article
//	  a[href]           -> title text + href
//	  time[datetime]    -> publish date
//
//	li.post-list__item
//	  a.grid-post__link -> title text + href
//	  p.grid-post__date -> "Jan 29, 2026"
func parseListingHTML(feedURL, pageURL, body string) ([]models.Article, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	sourceName := strings.TrimSpace(findTitle(doc))
	linked := make(map[string]bool)
	var articles []models.Article

	var walk func(n *html.Node, inArticle bool)
	walk = func(n *html.Node, inArticle bool) {
		if n.Type == html.ElementNode && n.Data == "article" {
			inArticle = true
		}

		if n.Type == html.ElementNode && n.Data == "a" && (inArticle || isPostLinkClass(getAttr(n, "class"))) {
			href := strings.TrimSpace(getAttr(n, "href"))
			title := normalizeWhitespace(textContent(n))
			if href != "" && title != "" && !strings.HasPrefix(href, "#") {
				if ref, err := url.Parse(href); err == nil {
					link := base.ResolveReference(ref).String()
					if !linked[link] {
						linked[link] = true
						articles = append(articles, models.Article{
							Identity:    Identity(title, link, feedURL),
							Title:       title,
							Link:        link,
							PublishedAt: findNearbyDate(n),
							SourceFeed:  feedURL,
							SourceName:  sourceName,
						})
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inArticle)
		}
	}

	walk(doc, false)
	return articles, nil
}

func isPostLinkClass(class string) bool {
	return strings.Contains(class, "grid-post__link") ||
		strings.Contains(class, "featured-post__headline") ||
		strings.Contains(class, "post-title")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// getAttr returns the value of the named attribute on an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent returns the concatenated text content of an HTML node and its children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// findNearbyDate walks up from the given node looking for a date in the
// surrounding container.
func findNearbyDate(n *html.Node) *time.Time {
	parent := n.Parent
	for i := 0; i < 5 && parent != nil; i++ {
		if t := findDateInSubtree(parent); t != nil {
			return t
		}
		parent = parent.Parent
	}
	return nil
}

// findDateInSubtree searches for a <time> element or an element with "date"
// in its class and parses it.
func findDateInSubtree(n *html.Node) *time.Time {
	if n.Type == html.ElementNode {
		if n.Data == "time" {
			if t := parseHumanDate(getAttr(n, "datetime")); t != nil {
				return t
			}
		}
		if n.Data == "time" || strings.Contains(getAttr(n, "class"), "date") {
			if t := parseHumanDate(strings.TrimSpace(textContent(n))); t != nil {
				return t
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findDateInSubtree(c); t != nil {
			return t
		}
	}
	return nil
}

// parseHumanDate tries to parse date strings like "Jan 29, 2026",
// "February 5, 2026" or an ISO timestamp. Results are UTC.
func parseHumanDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 02, 2006",
		"January 02, 2006",
		"2 Jan 2006",
		"2 January 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
