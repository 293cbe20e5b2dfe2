// Package ai talks to hosted LLM completion APIs over plain HTTP.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const defaultTimeout = 60 * time.Second

// Provider is the interface that all LLM providers must implement.
type Provider interface {
	// Complete sends one system+user exchange and returns the text reply.
	Complete(ctx context.Context, req Request) (string, error)
	// Model returns the model identifier used for completions.
	Model() string
}

// Request is one completion call.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// ProviderConfig holds the configuration needed to create a Provider.
type ProviderConfig struct {
	Provider string // "anthropic" | "openai" | "gemini"
	APIKey   string
	Model    string
	BaseURL  string        // optional endpoint override
	Timeout  time.Duration // per-request timeout, defaults to 60s
}

// NewProvider creates the appropriate provider based on config.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, client), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, client), nil
	case "gemini":
		return NewGeminiProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Provider)
	}
}

// APIError is a non-success response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the status indicates rate limiting or a
// server-side fault.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// IsRetryable classifies errors returned by Complete. Rate limits, server
// faults and network failures are retryable; cancellation and client errors
// are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
