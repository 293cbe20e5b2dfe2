// Package config loads rssdigest settings from a TOML or YAML file, applies
// defaults and environment overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hoanghai1803/rssdigest/internal/retry"
)

// Config holds all application configuration.
type Config struct {
	AI       AIConfig       `toml:"ai" yaml:"ai"`
	Summary  SummaryConfig  `toml:"summary" yaml:"summary"`
	Feeds    FeedsConfig    `toml:"feeds" yaml:"feeds"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	Schedule ScheduleConfig `toml:"schedule" yaml:"schedule"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// AIConfig holds AI provider settings.
type AIConfig struct {
	Provider          string       `toml:"provider" yaml:"provider"`
	APIKey            string       `toml:"api_key" yaml:"api_key"`
	Model             string       `toml:"model" yaml:"model"`
	BaseURL           string       `toml:"base_url" yaml:"base_url"`
	TimeoutSeconds    int          `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxTokens         int          `toml:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int          `toml:"requests_per_minute" yaml:"requests_per_minute"`
	DailyQuota        int          `toml:"daily_quota" yaml:"daily_quota"`
	Retry             retry.Policy `toml:"retry" yaml:"retry"`
}

// Timeout returns the per-request timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SummaryConfig bounds summary length in words.
type SummaryConfig struct {
	MinLength     int `toml:"min_length" yaml:"min_length"`
	MaxLength     int `toml:"max_length" yaml:"max_length"`
	MaxInputWords int `toml:"max_input_words" yaml:"max_input_words"`
}

// FeedsConfig holds subscription and fetching settings.
type FeedsConfig struct {
	SubscriptionsFile  string   `toml:"subscriptions_file" yaml:"subscriptions_file"`
	URLs               []string `toml:"urls" yaml:"urls"`
	DefaultWindowHours int      `toml:"default_window_hours" yaml:"default_window_hours"`
	TimeoutSeconds     int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	HostDelayMillis    int      `toml:"host_delay_ms" yaml:"host_delay_ms"`
	MinContentChars    int      `toml:"min_content_chars" yaml:"min_content_chars"`
}

// Timeout returns the HTTP timeout for feed and page requests.
func (c FeedsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HostDelay returns the minimum spacing between requests to one host.
func (c FeedsConfig) HostDelay() time.Duration {
	return time.Duration(c.HostDelayMillis) * time.Millisecond
}

// StorageConfig holds database settings.
type StorageConfig struct {
	Path          string `toml:"path" yaml:"path"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// NotifyConfig holds notification channel settings. A channel is enabled when
// its credentials are set.
type NotifyConfig struct {
	WeComWebhookURL   string `toml:"wecom_webhook_url" yaml:"wecom_webhook_url"`
	TelegramBotToken  string `toml:"telegram_bot_token" yaml:"telegram_bot_token"`
	TelegramChatID    string `toml:"telegram_chat_id" yaml:"telegram_chat_id"`
	Title             string `toml:"title" yaml:"title"`
	SendEmpty         bool   `toml:"send_empty" yaml:"send_empty"`
	BatchDelaySeconds int    `toml:"batch_delay_seconds" yaml:"batch_delay_seconds"`
}

// ScheduleConfig selects how the serve command repeats runs. Cron wins over
// the interval when both are set.
type ScheduleConfig struct {
	IntervalHours int    `toml:"interval_hours" yaml:"interval_hours"`
	Cron          string `toml:"cron" yaml:"cron"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Dir    string `toml:"dir" yaml:"dir"`
}

const defaultConfigContent = `[ai]
provider = "anthropic"            # "anthropic", "openai" or "gemini"
api_key = ""                      # Your API key (or set AI_API_KEY env var)
model = "claude-haiku-4-5"
timeout_seconds = 60
requests_per_minute = 10
daily_quota = 0                   # 0 = unlimited

[ai.retry]
max_attempts = 3
base_delay = "2s"
max_delay = "30s"
multiplier = 2.0

[summary]
min_length = 100                  # words
max_length = 300

[feeds]
subscriptions_file = "subscriptions.txt"   # plain text (one URL per line) or OPML
default_window_hours = 24
timeout_seconds = 30
host_delay_ms = 500

[storage]
path = "data/rssdigest.db"
retention_days = 90

[notify]
wecom_webhook_url = ""            # or WECOM_WEBHOOK_URL
telegram_bot_token = ""           # or TELEGRAM_BOT_TOKEN
telegram_chat_id = ""             # or TELEGRAM_CHAT_ID
send_empty = false

[schedule]
interval_hours = 24
cron = ""                         # e.g. "0 8 * * *"; overrides interval_hours

[server]
host = "localhost"
port = 8080

[log]
level = "info"                    # debug, info, warn, error
format = "text"                   # text or json
dir = ""                          # also write daily files here when set
`

// Load reads and parses the config at path. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML. If the file does not exist, a
// default TOML config is created there. Environment variables override values
// from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var (
		cfg     Config
		defined definedFunc
	)
	if isYAML(path) {
		defined, err = decodeYAML(data, &cfg)
	} else {
		defined, err = decodeTOML(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, defined); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Relative paths are resolved against the config file's directory.
	base := filepath.Dir(path)
	cfg.Feeds.SubscriptionsFile = resolvePath(base, cfg.Feeds.SubscriptionsFile)
	cfg.Storage.Path = resolvePath(base, cfg.Storage.Path)
	cfg.Log.Dir = resolvePath(base, cfg.Log.Dir)

	return &cfg, nil
}

// definedFunc reports whether section.key was present in the file.
type definedFunc func(section, key string) bool

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decodeTOML(data []byte, cfg *Config) (definedFunc, error) {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown config keys ignored", "keys", fmt.Sprint(undecoded))
	}
	return func(section, key string) bool { return md.IsDefined(section, key) }, nil
}

func decodeYAML(data []byte, cfg *Config) (definedFunc, error) {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return func(section, key string) bool {
		_, ok := raw[section][key]
		return ok
	}, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the file. This
// catches cases like "port = 0" which would otherwise be silently replaced
// by the default value.
func validateExplicit(cfg *Config, defined definedFunc) error {
	if defined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if defined("feeds", "default_window_hours") && cfg.Feeds.DefaultWindowHours < 1 {
		return fmt.Errorf("invalid feeds.default_window_hours %d: must be >= 1", cfg.Feeds.DefaultWindowHours)
	}
	if defined("summary", "min_length") && cfg.Summary.MinLength < 1 {
		return fmt.Errorf("invalid summary.min_length %d: must be >= 1", cfg.Summary.MinLength)
	}
	if defined("summary", "max_length") && cfg.Summary.MaxLength < 1 {
		return fmt.Errorf("invalid summary.max_length %d: must be >= 1", cfg.Summary.MaxLength)
	}
	if defined("storage", "retention_days") && cfg.Storage.RetentionDays < 0 {
		return fmt.Errorf("invalid storage.retention_days %d: must be >= 0", cfg.Storage.RetentionDays)
	}
	if defined("schedule", "interval_hours") && cfg.Schedule.IntervalHours < 1 {
		return fmt.Errorf("invalid schedule.interval_hours %d: must be >= 1", cfg.Schedule.IntervalHours)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "anthropic"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModel(cfg.AI.Provider)
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 1024
	}

	def := retry.DefaultPolicy()
	if cfg.AI.Retry.MaxAttempts == 0 {
		cfg.AI.Retry.MaxAttempts = def.MaxAttempts
	}
	if cfg.AI.Retry.BaseDelay == 0 {
		cfg.AI.Retry.BaseDelay = def.BaseDelay
	}
	if cfg.AI.Retry.MaxDelay == 0 {
		cfg.AI.Retry.MaxDelay = def.MaxDelay
	}
	if cfg.AI.Retry.Multiplier == 0 {
		cfg.AI.Retry.Multiplier = def.Multiplier
	}

	if cfg.Summary.MinLength == 0 {
		cfg.Summary.MinLength = 100
	}
	if cfg.Summary.MaxLength == 0 {
		cfg.Summary.MaxLength = 300
	}
	if cfg.Summary.MaxInputWords == 0 {
		cfg.Summary.MaxInputWords = 5000
	}

	if cfg.Feeds.DefaultWindowHours == 0 {
		cfg.Feeds.DefaultWindowHours = 24
	}
	if cfg.Feeds.TimeoutSeconds == 0 {
		cfg.Feeds.TimeoutSeconds = 30
	}
	if cfg.Feeds.MinContentChars == 0 {
		cfg.Feeds.MinContentChars = 200
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join("data", "rssdigest.db")
	}

	if cfg.Notify.Title == "" {
		cfg.Notify.Title = "RSS Digest"
	}

	if cfg.Schedule.IntervalHours == 0 {
		cfg.Schedule.IntervalHours = 24
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "claude-haiku-4-5"
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY, matching the
//     configured provider
func applyEnvOverrides(cfg *Config) {
	providerEnv := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	if name, ok := providerEnv[cfg.AI.Provider]; ok {
		if v := os.Getenv(name); v != "" {
			cfg.AI.APIKey = v
		}
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	if v := os.Getenv("WECOM_WEBHOOK_URL"); v != "" {
		cfg.Notify.WeComWebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.AI.Provider {
	case "anthropic", "openai", "gemini":
	default:
		return fmt.Errorf("invalid ai.provider %q: must be \"anthropic\", \"openai\" or \"gemini\"", cfg.AI.Provider)
	}
	if err := cfg.AI.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid ai.retry: %w", err)
	}
	if cfg.AI.RequestsPerMinute < 0 || cfg.AI.DailyQuota < 0 {
		return errors.New("ai.requests_per_minute and ai.daily_quota must not be negative")
	}

	if cfg.Summary.MinLength > cfg.Summary.MaxLength {
		return fmt.Errorf("invalid summary length band: min_length %d exceeds max_length %d",
			cfg.Summary.MinLength, cfg.Summary.MaxLength)
	}

	if cfg.Feeds.DefaultWindowHours < 1 {
		return fmt.Errorf("invalid feeds.default_window_hours %d: must be >= 1", cfg.Feeds.DefaultWindowHours)
	}
	if cfg.Feeds.SubscriptionsFile == "" && len(cfg.Feeds.URLs) == 0 {
		return errors.New("no feeds configured: set feeds.subscriptions_file or feeds.urls")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	if (cfg.Notify.TelegramBotToken == "") != (cfg.Notify.TelegramChatID == "") {
		return errors.New("notify.telegram_bot_token and notify.telegram_chat_id must be set together")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be \"text\" or \"json\"", cfg.Log.Format)
	}

	if cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: set it in the config file or via AI_API_KEY environment variable")
	}

	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(base, p)
}
