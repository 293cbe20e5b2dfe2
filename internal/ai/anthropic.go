package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Compile-time interface check.
var _ Provider = (*AnthropicProvider)(nil)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewAnthropicProvider creates an AnthropicProvider. An empty baseURL uses
// the public endpoint.
func NewAnthropicProvider(apiKey, model, baseURL string, client *http.Client) *AnthropicProvider {
	url := anthropicAPIURL
	if baseURL != "" {
		url = strings.TrimRight(baseURL, "/") + "/v1/messages"
	}
	return &AnthropicProvider{apiKey: apiKey, model: model, url: url, client: client}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Model returns the configured model identifier.
func (p *AnthropicProvider) Model() string { return p.model }

// Complete calls the Messages API and returns the concatenated text blocks.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var resp anthropicResponse
	err := postJSON(ctx, p.client, "anthropic", p.url,
		map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": "2023-06-01",
		},
		anthropicRequest{
			Model:     p.model,
			MaxTokens: maxTokens,
			System:    req.System,
			Messages:  []anthropicMessage{{Role: "user", Content: req.User}},
		},
		&resp, errorEnvelope,
	)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic: empty response: no text content returned")
	}
	return sb.String(), nil
}
