package ai

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Compile-time interface check.
var _ Provider = (*GeminiProvider)(nil)

const geminiAPIBase = "https://generativelanguage.googleapis.com"

// GeminiProvider implements Provider using the Gemini generateContent API.
type GeminiProvider struct {
	apiKey string
	model  string
	base   string
	client *http.Client
}

// NewGeminiProvider creates a GeminiProvider.
func NewGeminiProvider(apiKey, model, baseURL string, client *http.Client) *GeminiProvider {
	base := geminiAPIBase
	if baseURL != "" {
		base = strings.TrimRight(baseURL, "/")
	}
	return &GeminiProvider{apiKey: apiKey, model: model, base: base, client: client}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Model returns the configured model identifier.
func (p *GeminiProvider) Model() string { return p.model }

// Complete calls generateContent and returns the first candidate's text.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.User}}}},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: req.MaxTokens}
	}

	endpoint := p.base + "/v1beta/models/" + url.PathEscape(p.model) + ":generateContent"

	var resp geminiResponse
	err := postJSON(ctx, p.client, "gemini", endpoint,
		map[string]string{"x-goog-api-key": p.apiKey},
		body, &resp, errorEnvelope,
	)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini: empty response: no candidates returned")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini: empty response: no text returned")
	}
	return sb.String(), nil
}
