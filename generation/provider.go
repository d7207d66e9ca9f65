// Package generation invokes the external report generation service. The
// prompt it receives is already redacted; nothing in this package ever sees
// raw input text.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ProviderType string

// Profile carries the strictness knobs for one generation call. Different
// prompt-strictness tunings are a call parameter, not separate code paths.
type Profile struct {
	Temperature float64
	MaxTokens   int
}

// DefaultProfile is a conservative tuning for clinical drafting.
var DefaultProfile = Profile{Temperature: 0.2, MaxTokens: 4096}

// Request is a single generation invocation.
type Request struct {
	System             string
	Prompt             string
	ResponseFormatHint string // "json_object" or "" for freeform text
	Profile            Profile
}

// Usage reports token consumption for one call.
type Usage struct {
	TokensIn  int
	TokensOut int
}

// Response is the provider-neutral generation result.
type Response struct {
	Content string
	Usage   Usage
}

// ErrTransport marks failures where no usable content came back: network
// errors, timeouts, non-2xx statuses, unparseable envelopes. These may be
// retried once and then degraded.
var ErrTransport = errors.New("generation transport error")

// Provider adapts one external generation API shape.
type Provider interface {
	GetName() string
	BuildRequest(ctx context.Context, req Request) (*http.Request, error)
	ParseResponse(statusCode int, body []byte) (Response, error)
	ValidateConfig() error
}

// NewProvider constructs the configured provider by name.
func NewProvider(name, baseURL, apiKey, model string) (Provider, error) {
	switch ProviderType(name) {
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(baseURL, apiKey, model), nil
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(baseURL, apiKey, model, nil), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", name)
	}
}
