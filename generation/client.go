package generation

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds one generation call end to end.
	DefaultTimeout = 120 * time.Second
	// transportRetries is the bounded retry budget for transport failures.
	// Content errors are never retried: the same prompt would likely repeat
	// the flaw.
	transportRetries = 1
)

// Client invokes a Provider with rate limiting and bounded transport retries
type Client struct {
	provider   Provider
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient wraps provider. requestsPerSecond <= 0 disables rate limiting.
func NewClient(provider Provider, timeout time.Duration, requestsPerSecond float64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Client{
		provider:   provider,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Generate performs one generation call. Transport failures (network errors,
// 5xx, unparseable envelopes) are retried once; the caller decides how to
// degrade after that.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= transportRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Generation] Retrying after transport failure (attempt %d): %v", attempt+1, lastErr)
		}

		response, err := c.doOnce(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return Response{}, lastErr
}

func (c *Client) doOnce(ctx context.Context, req Request) (Response, error) {
	httpReq, err := c.provider.BuildRequest(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build generation request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: failed to read response body: %v", ErrTransport, err)
	}

	return c.provider.ParseResponse(resp.StatusCode, body)
}
