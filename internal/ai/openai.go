package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Compile-time interface check.
var _ Provider = (*OpenAIProvider)(nil)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// Any compatible endpoint works through baseURL.
type OpenAIProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider.
func NewOpenAIProvider(apiKey, model, baseURL string, client *http.Client) *OpenAIProvider {
	url := openaiAPIURL
	if baseURL != "" {
		url = strings.TrimRight(baseURL, "/") + "/v1/chat/completions"
	}
	return &OpenAIProvider{apiKey: apiKey, model: model, url: url, client: client}
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Model returns the configured model identifier.
func (p *OpenAIProvider) Model() string { return p.model }

// Complete calls the Chat Completions API and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openaiMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.User})

	var resp openaiResponse
	err := postJSON(ctx, p.client, "openai", p.url,
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		openaiRequest{Model: p.model, Messages: messages, MaxTokens: req.MaxTokens},
		&resp, errorEnvelope,
	)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai: empty response: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
