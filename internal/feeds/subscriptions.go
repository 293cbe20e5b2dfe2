package feeds

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Subscription is one feed endpoint from a subscription file.
type Subscription struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// LoadSubscriptions reads an OPML or plain-text subscription file.
func LoadSubscriptions(path string) ([]Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading subscriptions %q: %w", path, err)
	}
	subs, err := ParseSubscriptions(data)
	if err != nil {
		return nil, fmt.Errorf("parsing subscriptions %q: %w", path, err)
	}
	return subs, nil
}

// ParseSubscriptions detects the format of data and returns the feeds it
// lists in file order with duplicates removed. Plain text holds one URL per
// line; blank lines, lines starting with '#' and lines that are not
// http(s) or scrape:// URLs are ignored.
func ParseSubscriptions(data []byte) ([]Subscription, error) {
	trimmed := bytes.TrimSpace(data)
	var (
		subs []Subscription
		err  error
	)
	if bytes.Contains(bytes.ToLower(trimmed[:min(len(trimmed), 512)]), []byte("<opml")) {
		subs, err = parseOPML(trimmed)
	} else {
		subs, err = parsePlainText(trimmed)
	}
	if err != nil {
		return nil, err
	}
	return dedupSubscriptions(subs), nil
}

// URLs returns the feed URLs of subs in order.
func URLs(subs []Subscription) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.URL
	}
	return out
}

type opmlDocument struct {
	Body struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

func parseOPML(data []byte) ([]Subscription, error) {
	var doc opmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding OPML: %w", err)
	}

	var subs []Subscription
	var walk func([]opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if u := strings.TrimSpace(o.XMLURL); u != "" {
				title := strings.TrimSpace(o.Title)
				if title == "" {
					title = strings.TrimSpace(o.Text)
				}
				if title == "" {
					title = hostOf(u)
				}
				subs = append(subs, Subscription{URL: u, Title: title})
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return subs, nil
}

func parsePlainText(data []byte) ([]Subscription, error) {
	var subs []Subscription
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") && !IsScrapeURL(line) {
			continue
		}
		subs = append(subs, Subscription{URL: line, Title: hostOf(line)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning subscriptions: %w", err)
	}
	return subs, nil
}

func dedupSubscriptions(subs []Subscription) []Subscription {
	seen := make(map[string]bool, len(subs))
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}

func hostOf(raw string) string {
	if IsScrapeURL(raw) {
		raw = ScrapeURLToHTTPS(raw)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}
