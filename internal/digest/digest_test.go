package digest

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

func testDigest() Digest {
	published := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	s1 := "Go 1.22 ships range-over-int."
	s2 := "A deep dive into WAL mode."
	return Digest{
		Title: "Daily Digest",
		Range: timerange.TimeRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		GeneratedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Articles: []models.ProcessedRecord{
			{Title: "Go [release]", Link: "https://go.dev/blog/go1.22", SummaryText: &s1, SourceName: "Go Blog", PublishedAt: &published},
			{Title: "SQLite internals", Link: "https://sqlite.org/wal.html", SummaryText: &s2, SourceFeed: "https://sqlite.org/feed"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"MD", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{" html ", FormatHTML, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown(testDigest())

	for _, want := range []string{
		"# Daily Digest",
		"2 articles",
		"## Go Blog",
		`### [Go \[release\]](https://go.dev/blog/go1.22)`,
		"*Published 2024-01-01 09:30*",
		"Go 1.22 ships range-over-int.",
		"## https://sqlite.org/feed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestMarkdown_Empty(t *testing.T) {
	d := testDigest()
	d.Articles = nil
	if out := Markdown(d); !strings.Contains(out, "No articles in this time range.") {
		t.Errorf("empty digest = %q", out)
	}
}

func TestWrite_HTML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testDigest(), FormatHTML); err != nil {
		t.Fatalf("Write(html) error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Daily Digest</title>",
		"<h1>Daily Digest</h1>",
		`<a href="https://go.dev/blog/go1.22">Go [release]</a>`,
		"<p>A deep dive into WAL mode.</p>",
		"</html>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q:\n%s", want, out)
		}
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testDigest(), FormatJSON); err != nil {
		t.Fatalf("Write(json) error: %v", err)
	}

	var got Digest
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Title != "Daily Digest" || len(got.Articles) != 2 || got.Articles[1].Summary() != "A deep dive into WAL mode." {
		t.Errorf("got %+v", got)
	}
}
