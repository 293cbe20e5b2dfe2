package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegram_Notify(t *testing.T) {
	var texts []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if r.PostForm.Get("chat_id") != "42" || r.PostForm.Get("parse_mode") != "HTML" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		texts = append(texts, r.PostForm.Get("text"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer ts.Close()

	n := NewTelegramNotifier("token", "42", false, ts.Client(), discardLogger())
	n.apiBase = ts.URL

	items := []Item{{Title: "Fish & <Chips>", Link: "https://e/1?a=1&b=2", SummaryText: "tasty", SourceName: "Food"}}
	if err := n.Notify(context.Background(), items); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(texts) != 1 {
		t.Fatalf("messages = %d, want 1", len(texts))
	}
	for _, want := range []string{"Fish &amp; &lt;Chips&gt;", `href="https://e/1?a=1&amp;b=2"`, "<i>Food</i>", "tasty"} {
		if !strings.Contains(texts[0], want) {
			t.Errorf("message missing %q:\n%s", want, texts[0])
		}
	}
}

func TestTelegram_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer ts.Close()

	n := NewTelegramNotifier("token", "42", false, ts.Client(), discardLogger())
	n.apiBase = ts.URL

	err := n.Notify(context.Background(), []Item{{Title: "a"}, {Title: "b"}})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("error = %v, want chat not found", err)
	}
	if got := FailedCount(err, 2); got != 2 {
		t.Errorf("FailedCount = %d, want 2", got)
	}

	misconfigured := NewTelegramNotifier("", "", false, ts.Client(), discardLogger())
	if err := misconfigured.Notify(context.Background(), []Item{{Title: "a"}}); err == nil {
		t.Error("expected error for missing credentials")
	}
}
