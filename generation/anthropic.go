package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const ProviderTypeAnthropic ProviderType = "anthropic"

type AnthropicProvider struct {
	baseURL         string
	apiKey          string
	model           string
	requiredHeaders map[string]string
}

func NewAnthropicProvider(baseURL string, apiKey string, model string, requiredHeaders map[string]string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if requiredHeaders == nil {
		requiredHeaders = map[string]string{
			"anthropic-version": "2023-06-01",
		}
	}
	return &AnthropicProvider{baseURL: baseURL, apiKey: apiKey, model: model, requiredHeaders: requiredHeaders}
}

func (p *AnthropicProvider) GetName() string {
	return "Anthropic"
}

// BuildRequest composes a messages call from the generation request
func (p *AnthropicProvider) BuildRequest(ctx context.Context, req Request) (*http.Request, error) {
	maxTokens := req.Profile.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultProfile.MaxTokens
	}

	prompt := req.Prompt
	if req.ResponseFormatHint == "json_object" {
		// The messages API has no response_format knob; the instruction
		// travels in the prompt instead.
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	body := map[string]interface{}{
		"model":      p.model,
		"system":     req.System,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": req.Profile.Temperature,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range p.requiredHeaders {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

// ParseResponse extracts content and usage from the messages envelope
func (p *AnthropicProvider) ParseResponse(statusCode int, body []byte) (Response, error) {
	if statusCode != http.StatusOK {
		return Response{}, fmt.Errorf("%w: Anthropic returned status %d", ErrTransport, statusCode)
	}

	var envelope struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Response{}, fmt.Errorf("%w: failed to parse Anthropic response: %v", ErrTransport, err)
	}

	var content string
	for _, item := range envelope.Content {
		if item.Type == "text" {
			content += item.Text
		}
	}
	if content == "" {
		return Response{}, fmt.Errorf("%w: no text content in Anthropic response", ErrTransport)
	}

	return Response{
		Content: content,
		Usage: Usage{
			TokensIn:  envelope.Usage.InputTokens,
			TokensOut: envelope.Usage.OutputTokens,
		},
	}, nil
}

func (p *AnthropicProvider) ValidateConfig() error {
	if p.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}
