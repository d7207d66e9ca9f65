package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const ProviderTypeOpenAI ProviderType = "openai"

type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAIProvider(baseURL string, apiKey string, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{baseURL: baseURL, apiKey: apiKey, model: model}
}

func (p *OpenAIProvider) GetName() string {
	return "OpenAI"
}

// BuildRequest composes a chat-completions call from the generation request
func (p *OpenAIProvider) BuildRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.Prompt},
		},
		"temperature": req.Profile.Temperature,
	}
	if req.Profile.MaxTokens > 0 {
		body["max_tokens"] = req.Profile.MaxTokens
	}
	if req.ResponseFormatHint == "json_object" {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// ParseResponse extracts content and usage from the chat-completions envelope
func (p *OpenAIProvider) ParseResponse(statusCode int, body []byte) (Response, error) {
	if statusCode != http.StatusOK {
		return Response{}, fmt.Errorf("%w: OpenAI returned status %d", ErrTransport, statusCode)
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Response{}, fmt.Errorf("%w: failed to parse OpenAI response: %v", ErrTransport, err)
	}
	if len(envelope.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no choices in OpenAI response", ErrTransport)
	}

	return Response{
		Content: envelope.Choices[0].Message.Content,
		Usage: Usage{
			TokensIn:  envelope.Usage.PromptTokens,
			TokensOut: envelope.Usage.CompletionTokens,
		},
	}, nil
}

func (p *OpenAIProvider) ValidateConfig() error {
	if p.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}
