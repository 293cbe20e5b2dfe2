package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hoanghai1803/rssdigest/internal/retry"
)

type wecomServer struct {
	mu       sync.Mutex
	contents []string
	// replies is consumed per request; once empty every request succeeds.
	replies []string
}

func (s *wecomServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg wecomMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decoding message: %v", err)
		}
		if msg.MsgType != "markdown" {
			t.Errorf("msgtype = %q", msg.MsgType)
		}

		s.mu.Lock()
		s.contents = append(s.contents, msg.Markdown.Content)
		reply := `{"errcode":0,"errmsg":"ok"}`
		if len(s.replies) > 0 {
			reply = s.replies[0]
			s.replies = s.replies[1:]
		}
		s.mu.Unlock()

		fmt.Fprint(w, reply)
	}
}

func newTestWeCom(t *testing.T, srv *wecomServer, sendEmpty bool) *WeComNotifier {
	t.Helper()
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	return NewWeComNotifier(ts.URL, ts.Client(), WeComOptions{
		SendEmpty: sendEmpty,
		Retry:     retry.Policy{MaxAttempts: 3, Multiplier: 1},
	}, discardLogger())
}

func TestWeCom_SingleBatch(t *testing.T) {
	srv := &wecomServer{}
	n := newTestWeCom(t, srv, false)

	items := []Item{
		{Title: "First", Link: "https://a.example/1", SummaryText: "one", SourceName: "A"},
		{Title: "Second", Link: "https://b.example/2", SummaryText: "two", SourceFeed: "https://b.example/feed"},
	}
	if err := n.Notify(context.Background(), items); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(srv.contents) != 1 {
		t.Fatalf("messages = %d, want 1", len(srv.contents))
	}
	content := srv.contents[0]
	for _, want := range []string{"# RSS Digest\n", "**2** new articles", "### 1. First", "### 2. Second", "**Source:** A", "**Source:** https://b.example/feed", "[https://a.example/1](https://a.example/1)"} {
		if !strings.Contains(content, want) {
			t.Errorf("message missing %q:\n%s", want, content)
		}
	}
}

func TestWeCom_BatchesStayUnderLimit(t *testing.T) {
	srv := &wecomServer{}
	n := newTestWeCom(t, srv, false)

	var items []Item
	for i := range 30 {
		items = append(items, Item{
			Title:       fmt.Sprintf("Article %d", i),
			Link:        fmt.Sprintf("https://example.com/posts/%d", i),
			SummaryText: strings.Repeat("summary text ", 40),
			SourceName:  "Example",
		})
	}
	if err := n.Notify(context.Background(), items); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(srv.contents) < 2 {
		t.Fatalf("messages = %d, want several batches", len(srv.contents))
	}

	total := 0
	for i, c := range srv.contents {
		if len(c) > WeComMaxContentBytes {
			t.Errorf("message %d is %d bytes, limit %d", i, len(c), WeComMaxContentBytes)
		}
		if !strings.Contains(c, fmt.Sprintf("(Batch %d/%d)", i+1, len(srv.contents))) {
			t.Errorf("message %d missing batch header", i)
		}
		total += strings.Count(c, "\n### ")
	}
	if total != len(items) {
		t.Errorf("articles across batches = %d, want %d", total, len(items))
	}
}

func TestWeCom_SummaryTruncated(t *testing.T) {
	srv := &wecomServer{}
	n := newTestWeCom(t, srv, false)

	long := strings.Repeat("x", WeComMaxSummaryChars+100)
	if err := n.Notify(context.Background(), []Item{{Title: "T", Link: "https://e/1", SummaryText: long}}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if strings.Contains(srv.contents[0], long) {
		t.Error("summary was not truncated")
	}
	if !strings.Contains(srv.contents[0], strings.Repeat("x", WeComMaxSummaryChars)+"...") {
		t.Error("truncated summary missing ellipsis")
	}
}

func TestWeCom_RetriesOnErrcode(t *testing.T) {
	srv := &wecomServer{replies: []string{`{"errcode":45009,"errmsg":"api freq out of limit"}`}}
	n := newTestWeCom(t, srv, false)

	if err := n.Notify(context.Background(), []Item{{Title: "T", Link: "https://e/1"}}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(srv.contents) != 2 {
		t.Errorf("requests = %d, want 2", len(srv.contents))
	}
}

func TestWeCom_PersistentFailure(t *testing.T) {
	failure := `{"errcode":93000,"errmsg":"invalid webhook url"}`
	srv := &wecomServer{replies: []string{failure, failure, failure}}
	n := newTestWeCom(t, srv, false)

	items := []Item{{Title: "A", Link: "https://e/1"}, {Title: "B", Link: "https://e/2"}}
	err := n.Notify(context.Background(), items)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := FailedCount(err, len(items)); got != 2 {
		t.Errorf("FailedCount = %d, want 2", got)
	}
	if !strings.Contains(err.Error(), "93000") {
		t.Errorf("error %q should carry the errcode", err)
	}
}

func TestWeCom_Empty(t *testing.T) {
	srv := &wecomServer{}
	n := newTestWeCom(t, srv, false)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify(nil) error: %v", err)
	}
	if len(srv.contents) != 0 {
		t.Errorf("sent %d messages for empty run without send_empty", len(srv.contents))
	}

	srv = &wecomServer{}
	n = newTestWeCom(t, srv, true)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify(nil) error: %v", err)
	}
	if len(srv.contents) != 1 || !strings.Contains(srv.contents[0], "No new articles") {
		t.Errorf("expected one empty-run message, got %q", srv.contents)
	}
}
