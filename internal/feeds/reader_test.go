package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Example Blog</title>
	<link>https://example.com</link>
	<item>
		<title>In range</title>
		<link>https://example.com/in-range</link>
		<description>&lt;p&gt;Inside the window&lt;/p&gt;</description>
		<pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
	</item>
	<item>
		<title>Too new</title>
		<link>https://example.com/too-new</link>
		<pubDate>Wed, 03 Jan 2024 00:00:00 GMT</pubDate>
	</item>
	<item>
		<title>Undated</title>
		<link>https://example.com/undated</link>
	</item>
	<item>
		<title>Duplicate of in range</title>
		<link>https://example.com/in-range/?utm_source=rss</link>
		<pubDate>Mon, 01 Jan 2024 13:00:00 GMT</pubDate>
	</item>
	<item>
		<title></title>
		<link></link>
	</item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Blog</title>
	<entry>
		<title>Updated only</title>
		<link href="https://atom.example/updated-only"/>
		<id>urn:uuid:1</id>
		<updated>2024-01-01T06:00:00+02:00</updated>
	</entry>
</feed>`

var testRange = timerange.TimeRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	})
	mux.HandleFunc("/atom", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFeed)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func collect(r *Reader, urls []string) []models.Article {
	var out []models.Article
	for a := range r.Fetch(context.Background(), urls, testRange) {
		out = append(out, a)
	}
	return out
}

func TestReader_FetchFiltersByRange(t *testing.T) {
	srv := newFeedServer(t)
	r := NewReader(NewHTTPClient(5*time.Second), nil, discardLogger())

	got := collect(r, []string{srv.URL + "/rss"})

	titles := make(map[string]models.Article)
	for _, a := range got {
		titles[a.Title] = a
	}

	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2: %+v", len(got), got)
	}
	inRange, ok := titles["In range"]
	if !ok {
		t.Fatal("article published 2024-01-01T12:00Z should be included")
	}
	if _, ok := titles["Undated"]; !ok {
		t.Error("undated article should be included")
	}
	if _, ok := titles["Too new"]; ok {
		t.Error("article published 2024-01-03 should be excluded")
	}
	if _, ok := titles["Duplicate of in range"]; ok {
		t.Error("second item with the same canonical link should be dropped")
	}

	if inRange.Description != "Inside the window" {
		t.Errorf("Description = %q", inRange.Description)
	}
	if inRange.SourceName != "Example Blog" || inRange.SourceFeed != srv.URL+"/rss" {
		t.Errorf("source = %q/%q", inRange.SourceName, inRange.SourceFeed)
	}
	if inRange.PublishedAt == nil || inRange.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt = %v, want UTC time", inRange.PublishedAt)
	}
}

func TestReader_UpdatedTimeFallback(t *testing.T) {
	srv := newFeedServer(t)
	r := NewReader(NewHTTPClient(5*time.Second), nil, discardLogger())

	got := collect(r, []string{srv.URL + "/atom"})
	if len(got) != 1 {
		t.Fatalf("got %d articles, want 1", len(got))
	}
	want := time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)
	if got[0].PublishedAt == nil || !got[0].PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", got[0].PublishedAt, want)
	}
}

func TestReader_IsolatesFeedFailures(t *testing.T) {
	srv := newFeedServer(t)
	r := NewReader(NewHTTPClient(5*time.Second), nil, discardLogger())

	var failed []*FeedFetchError
	r.OnFailure = func(e *FeedFetchError) { failed = append(failed, e) }

	got := collect(r, []string{srv.URL + "/broken", srv.URL + "/garbage", srv.URL + "/atom"})
	if len(got) != 1 {
		t.Fatalf("got %d articles, want 1 from the healthy feed", len(got))
	}
	if len(failed) != 2 {
		t.Fatalf("got %d failures, want 2", len(failed))
	}
	if failed[0].FeedURL != srv.URL+"/broken" {
		t.Errorf("failed[0].FeedURL = %q", failed[0].FeedURL)
	}
	var fe *FeedFetchError
	if !errors.As(error(failed[1]), &fe) {
		t.Error("FeedFetchError should satisfy errors.As")
	}
}

func TestReader_SequenceIsLazyAndSingleUse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, rssFeed)
	}))
	t.Cleanup(srv.Close)

	r := NewReader(NewHTTPClient(5*time.Second), nil, discardLogger())
	seq := r.Fetch(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"}, testRange)
	if n := hits.Load(); n != 0 {
		t.Fatalf("feeds fetched before iteration: %d", n)
	}

	for range seq {
		break
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("hits after first item = %d, want 1", n)
	}

	count := 0
	for range seq {
		count++
	}
	if count != 0 {
		t.Errorf("second iteration yielded %d articles, want 0", count)
	}
}
