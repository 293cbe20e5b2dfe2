package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig is a helper that writes a config file with the given name
// to a temp directory and returns its path.
func writeTestConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[ai]
provider = "openai"
api_key = "sk-test-key-123"
model = "gpt-4o"
requests_per_minute = 5
daily_quota = 100

[ai.retry]
max_attempts = 4
base_delay = "1s"
multiplier = 3.0

[summary]
min_length = 80
max_length = 200

[feeds]
urls = ["https://go.dev/blog/feed.atom"]
default_window_hours = 48
host_delay_ms = 250

[storage]
path = "/var/lib/rssdigest/state.db"
retention_days = 30

[notify]
wecom_webhook_url = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=abc"
send_empty = true

[schedule]
cron = "0 8 * * *"

[server]
port = 9090

[log]
level = "debug"
format = "json"
`
	path := writeTestConfig(t, "config.toml", content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.AI.Provider != "openai" || cfg.AI.APIKey != "sk-test-key-123" || cfg.AI.Model != "gpt-4o" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.RequestsPerMinute != 5 || cfg.AI.DailyQuota != 100 {
		t.Errorf("AI limits = %d rpm, %d daily", cfg.AI.RequestsPerMinute, cfg.AI.DailyQuota)
	}
	if cfg.AI.Retry.MaxAttempts != 4 || cfg.AI.Retry.BaseDelay != time.Second || cfg.AI.Retry.Multiplier != 3 {
		t.Errorf("AI.Retry = %+v", cfg.AI.Retry)
	}
	if cfg.AI.Retry.MaxDelay != 30*time.Second {
		t.Errorf("AI.Retry.MaxDelay = %v, want default 30s", cfg.AI.Retry.MaxDelay)
	}
	if cfg.Summary.MinLength != 80 || cfg.Summary.MaxLength != 200 {
		t.Errorf("Summary = %+v", cfg.Summary)
	}
	if len(cfg.Feeds.URLs) != 1 || cfg.Feeds.DefaultWindowHours != 48 || cfg.Feeds.HostDelay() != 250*time.Millisecond {
		t.Errorf("Feeds = %+v", cfg.Feeds)
	}
	if cfg.Storage.Path != "/var/lib/rssdigest/state.db" || cfg.Storage.RetentionDays != 30 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Notify.WeComWebhookURL == "" || !cfg.Notify.SendEmpty {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Schedule.Cron != "0 8 * * *" {
		t.Errorf("Schedule.Cron = %q", cfg.Schedule.Cron)
	}
	if cfg.Server.Addr() != "localhost:9090" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_YAML(t *testing.T) {
	content := `
ai:
  provider: gemini
  api_key: g-key
  retry:
    max_attempts: 2
    base_delay: 500ms
summary:
  min_length: 50
  max_length: 120
feeds:
  subscriptions_file: feeds.opml
storage:
  retention_days: 7
`
	path := writeTestConfig(t, "config.yaml", content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.Model != "gemini-2.0-flash" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Retry.MaxAttempts != 2 || cfg.AI.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("AI.Retry = %+v", cfg.AI.Retry)
	}
	if cfg.Summary.MinLength != 50 || cfg.Summary.MaxLength != 120 {
		t.Errorf("Summary = %+v", cfg.Summary)
	}
	if want := filepath.Join(filepath.Dir(path), "feeds.opml"); cfg.Feeds.SubscriptionsFile != want {
		t.Errorf("SubscriptionsFile = %q, want %q", cfg.Feeds.SubscriptionsFile, want)
	}
	if cfg.Storage.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d", cfg.Storage.RetentionDays)
	}
}

func TestLoad_YAMLExplicitZeroRejected(t *testing.T) {
	path := writeTestConfig(t, "config.yml", "server:\n  port: 0\nfeeds:\n  urls: [\"https://e/feed\"]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for explicit port 0 in YAML")
	}
}

func TestLoad_MissingFile_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created at %q: %v", path, err)
	}

	if cfg.AI.Provider != "anthropic" || cfg.AI.Model != "claude-haiku-4-5" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.Summary.MinLength != 100 || cfg.Summary.MaxLength != 300 {
		t.Errorf("Summary = %+v", cfg.Summary)
	}
	if cfg.Feeds.DefaultWindowHours != 24 {
		t.Errorf("Feeds.DefaultWindowHours = %d, want 24", cfg.Feeds.DefaultWindowHours)
	}
	if cfg.Storage.RetentionDays != 90 {
		t.Errorf("Storage.RetentionDays = %d, want 90", cfg.Storage.RetentionDays)
	}
	if want := filepath.Join(dir, "nested", "data", "rssdigest.db"); cfg.Storage.Path != want {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, want)
	}
	if cfg.AI.Retry.MaxAttempts != 3 || cfg.AI.Retry.BaseDelay != 2*time.Second || cfg.AI.Retry.Multiplier != 2 {
		t.Errorf("AI.Retry = %+v", cfg.AI.Retry)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
[ai]
api_key = "sk-test"

[feeds]
urls = ["https://example.com/feed"]
`
	path := writeTestConfig(t, "config.toml", content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.AI.Provider != "anthropic" {
		t.Errorf("AI.Provider = %q, want default %q", cfg.AI.Provider, "anthropic")
	}
	if cfg.AI.Timeout() != 60*time.Second {
		t.Errorf("AI.Timeout() = %v, want 60s", cfg.AI.Timeout())
	}
	if cfg.Feeds.Timeout() != 30*time.Second || cfg.Feeds.MinContentChars != 200 {
		t.Errorf("Feeds = %+v", cfg.Feeds)
	}
	if cfg.Storage.RetentionDays != 0 {
		t.Errorf("Storage.RetentionDays = %d, want 0 when omitted", cfg.Storage.RetentionDays)
	}
	if cfg.Schedule.IntervalHours != 24 {
		t.Errorf("Schedule.IntervalHours = %d, want 24", cfg.Schedule.IntervalHours)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		want     string
	}{
		{"generic key", "anthropic", map[string]string{"AI_API_KEY": "generic"}, "generic"},
		{"anthropic key", "anthropic", map[string]string{"ANTHROPIC_API_KEY": "anthropic"}, "anthropic"},
		{"openai key", "openai", map[string]string{"OPENAI_API_KEY": "openai"}, "openai"},
		{"gemini key", "gemini", map[string]string{"GEMINI_API_KEY": "gemini"}, "gemini"},
		{"other provider key ignored", "openai", map[string]string{"ANTHROPIC_API_KEY": "anthropic"}, "from-config"},
		{"generic takes precedence", "anthropic", map[string]string{"ANTHROPIC_API_KEY": "anthropic", "AI_API_KEY": "generic"}, "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"AI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			content := `
[ai]
provider = "` + tt.provider + `"
api_key = "from-config"

[feeds]
urls = ["https://example.com/feed"]
`
			cfg, err := Load(writeTestConfig(t, "config.toml", content))
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg.AI.APIKey != tt.want {
				t.Errorf("AI.APIKey = %q, want %q", cfg.AI.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_NotifyEnvOverrides(t *testing.T) {
	t.Setenv("WECOM_WEBHOOK_URL", "https://hook.example/wecom")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "123")

	cfg, err := Load(writeTestConfig(t, "config.toml", "[feeds]\nurls = [\"https://e/feed\"]\n"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Notify.WeComWebhookURL != "https://hook.example/wecom" {
		t.Errorf("WeComWebhookURL = %q", cfg.Notify.WeComWebhookURL)
	}
	if cfg.Notify.TelegramBotToken != "bot-token" || cfg.Notify.TelegramChatID != "123" {
		t.Errorf("Telegram = %q/%q", cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "[ai]\nprovider = \"cohere\"\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"port zero", "[server]\nport = 0\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"port negative", "[server]\nport = -1\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"port too high", "[server]\nport = 70000\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"zero window", "[feeds]\nurls = [\"https://e/feed\"]\ndefault_window_hours = 0\n"},
		{"negative retention", "[storage]\nretention_days = -1\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"inverted band", "[summary]\nmin_length = 400\nmax_length = 100\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"zero min length", "[summary]\nmin_length = 0\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"zero interval", "[schedule]\ninterval_hours = 0\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"bad retry", "[ai.retry]\nmultiplier = 0.5\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"half telegram", "[notify]\ntelegram_bot_token = \"t\"\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"bad log level", "[log]\nlevel = \"verbose\"\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"bad log format", "[log]\nformat = \"xml\"\n[feeds]\nurls = [\"https://e/feed\"]\n"},
		{"malformed toml", "[ai\nprovider = \n[feeds]\nurls = [\"https://e/feed\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			t.Setenv("TELEGRAM_CHAT_ID", "")
			path := writeTestConfig(t, "config.toml", tt.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load() expected error for %s, got nil", tt.name)
			}
		})
	}
}

func TestLoad_NoFeeds(t *testing.T) {
	path := writeTestConfig(t, "config.toml", "[feeds]\nsubscriptions_file = \"\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when no feeds are configured")
	}
}

func TestLoad_EmptyAPIKey_NoError(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := writeTestConfig(t, "config.toml", "[ai]\napi_key = \"\"\n[feeds]\nurls = [\"https://e/feed\"]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v (empty api_key should warn, not fail)", path, err)
	}
	if cfg.AI.APIKey != "" {
		t.Errorf("AI.APIKey = %q, want empty string", cfg.AI.APIKey)
	}
}
