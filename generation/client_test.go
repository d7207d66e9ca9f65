package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func openAIResponse(content string, tokensIn, tokensOut int) string {
	body := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
		"usage": map[string]int{
			"prompt_tokens":     tokensIn,
			"completion_tokens": tokensOut,
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestClient_Generate_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got '%s'", auth)
		}
		_, _ = w.Write([]byte(openAIResponse("## Subjective\nGenerated note", 120, 80)))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "test-key", "gpt-4o-mini")
	client := NewClient(provider, time.Second, 0)

	response, err := client.Generate(context.Background(), Request{
		System:  "system prompt",
		Prompt:  "user prompt",
		Profile: DefaultProfile,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if response.Content != "## Subjective\nGenerated note" {
		t.Errorf("Unexpected content: %s", response.Content)
	}
	if response.Usage.TokensIn != 120 || response.Usage.TokensOut != 80 {
		t.Errorf("Unexpected usage: %+v", response.Usage)
	}
}

func TestClient_Generate_Anthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Expected path /messages, got %s", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("Expected x-api-key header, got '%s'", key)
		}
		if version := r.Header.Get("anthropic-version"); version == "" {
			t.Error("Expected anthropic-version header to be set")
		}
		body := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "Generated letter"}},
			"usage":   map[string]int{"input_tokens": 50, "output_tokens": 25},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	provider := NewAnthropicProvider(server.URL, "test-key", "", nil)
	client := NewClient(provider, time.Second, 0)

	response, err := client.Generate(context.Background(), Request{Prompt: "user prompt", Profile: DefaultProfile})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if response.Content != "Generated letter" {
		t.Errorf("Unexpected content: %s", response.Content)
	}
	if response.Usage.TokensIn != 50 || response.Usage.TokensOut != 25 {
		t.Errorf("Unexpected usage: %+v", response.Usage)
	}
}

func TestClient_Generate_RetriesOnceOn5xx(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream overloaded", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(openAIResponse("recovered", 10, 5)))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "test-key", "")
	client := NewClient(provider, time.Second, 0)

	response, err := client.Generate(context.Background(), Request{Prompt: "p", Profile: DefaultProfile})
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if response.Content != "recovered" {
		t.Errorf("Unexpected content: %s", response.Content)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected exactly 2 calls, got %d", calls)
	}
}

func TestClient_Generate_GivesUpAfterBoundedRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "test-key", "")
	client := NewClient(provider, time.Second, 0)

	_, err := client.Generate(context.Background(), Request{Prompt: "p", Profile: DefaultProfile})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 calls (initial + 1 retry), got %d", calls)
	}
}

func TestNewProvider_UnknownName(t *testing.T) {
	if _, err := NewProvider("cohere", "http://localhost", "key", ""); err == nil {
		t.Error("Expected an error for an unknown provider name")
	}
}
