package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Transcriber converts captured audio into text upstream of reconciliation.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// HTTPTranscriber delegates transcription to a speech-to-text service over HTTP
type HTTPTranscriber struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTranscriber(baseURL string, timeout time.Duration) *HTTPTranscriber {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPTranscriber{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Transcribe posts audio to the service and returns the transcript text
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/transcribe", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call transcription service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription service returned status %d", resp.StatusCode)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return body.Text, nil
}
