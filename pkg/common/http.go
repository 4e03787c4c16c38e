// Package common holds the shared HTTP plumbing used by the native REST
// clients (Bitfinex, BitMEX). It layers rate limiting and a bounded retry
// policy over net/http; per-exchange signing stays in each native client.
package common

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"github.com/veiloq/exchange-adapters/pkg/logging"
	"github.com/veiloq/exchange-adapters/pkg/ratelimit"
)

// HTTPClient executes requests against one exchange's REST API.
type HTTPClient interface {
	// Do executes a request with rate limiting and retries on 5xx/429.
	// Only safe for idempotent calls.
	Do(ctx context.Context, req *http.Request) (*http.Response, error)

	// DoOnce executes a request with rate limiting but no retries. Order
	// mutations go through this path so a transient failure can never
	// submit twice.
	DoOnce(ctx context.Context, req *http.Request) (*http.Response, error)

	// SetRateLimit replaces the client's rate limiter configuration.
	SetRateLimit(limit ratelimit.Rate) error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Timeout   time.Duration
	RateLimit ratelimit.Rate

	MaxRetries uint
	RetryDelay time.Duration

	Logger logging.Logger

	// Transport overrides the HTTP transport, used by tests to stub the
	// exchange.
	Transport http.RoundTripper
}

// DefaultConfig returns conservative defaults: 30s timeout, 10 req/s,
// 3 retries.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    30 * time.Second,
		RateLimit:  ratelimit.PerSecond(10),
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NewNopLogger(),
	}
}

type client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	logger     logging.Logger
}

// NewHTTPClient builds a client from config; nil selects DefaultConfig.
func NewHTTPClient(config *ClientConfig) HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	return &client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: ratelimit.NewTokenBucketLimiter(config.RateLimit),
		logger:  config.Logger,
	}
}

func (c *client) DoOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait error: %w", err)
	}
	return c.httpClient.Do(req.WithContext(ctx))
}

func (c *client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait error: %w", err)
	}

	// Buffer the body up front so each attempt can replay it.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading request body: %w", err)
		}
	}

	attempts := c.config.MaxRetries
	if attempts == 0 {
		attempts = 1
	}

	var resp *http.Response
	var attemptsDone uint
	err := retry.Do(
		func() error {
			attemptsDone++
			attempt := req.Clone(ctx)
			if body != nil {
				attempt.Body = io.NopCloser(bytes.NewReader(body))
			}

			var err error
			resp, err = c.httpClient.Do(attempt)
			if err != nil {
				return fmt.Errorf("http request error: %w", err)
			}

			// Throttling and gateway failures are retried; the final
			// response is always handed back so the caller can decode
			// the exchange's error body.
			if retryableStatus(resp.StatusCode) && attemptsDone < attempts {
				// Drain so the connection can be reused, then retry.
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return fmt.Errorf("retryable status code: %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(c.config.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying request",
				logging.Int("attempt", int(n)),
				logging.String("url", req.URL.String()),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *client) SetRateLimit(limit ratelimit.Rate) error {
	return c.limiter.SetLimit(limit)
}
