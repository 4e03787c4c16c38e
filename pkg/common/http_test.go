package common

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/exchange-adapters/pkg/ratelimit"
)

type scriptedTransport struct {
	calls     int
	responses []*http.Response
	bodies    []string
}

func (s *scriptedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		s.bodies = append(s.bodies, string(raw))
	}
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], nil
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(transport http.RoundTripper, retries uint) HTTPClient {
	return NewHTTPClient(&ClientConfig{
		RateLimit:  ratelimit.PerSecond(1000),
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
		Transport:  transport,
	})
}

func TestDoRetriesThrottledRequests(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		response(http.StatusTooManyRequests, `{"retry": true}`),
		response(http.StatusServiceUnavailable, ``),
		response(http.StatusOK, `{"ok": true}`),
	}}
	client := newTestClient(transport, 3)

	req, _ := http.NewRequest(http.MethodGet, "https://example.test/v1/ticker", nil)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, transport.calls)
}

func TestDoReturnsFinalResponseWhenRetriesExhaust(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		response(http.StatusServiceUnavailable, `attempt 1`),
		response(http.StatusServiceUnavailable, `attempt 2`),
		response(http.StatusServiceUnavailable, `overloaded`),
	}}
	client := newTestClient(transport, 3)

	req, _ := http.NewRequest(http.MethodGet, "https://example.test/v1/ticker", nil)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The last attempt's body survives so the caller can decode the
	// exchange's error payload.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "overloaded", string(raw))
	assert.Equal(t, 3, transport.calls)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		response(http.StatusBadRequest, `{"error": "bad symbol"}`),
		response(http.StatusOK, ``),
	}}
	client := newTestClient(transport, 3)

	req, _ := http.NewRequest(http.MethodGet, "https://example.test/v1/ticker", nil)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, transport.calls)
}

func TestDoReplaysRequestBody(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		response(http.StatusBadGateway, ``),
		response(http.StatusOK, ``),
	}}
	client := newTestClient(transport, 3)

	req, _ := http.NewRequest(http.MethodPost, "https://example.test/v1/history",
		strings.NewReader(`{"symbol": "BTCUSDT"}`))
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, transport.bodies, 2)
	assert.Equal(t, transport.bodies[0], transport.bodies[1])
}

func TestDoOnceNeverRetries(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		response(http.StatusServiceUnavailable, `overloaded`),
		response(http.StatusOK, ``),
	}}
	client := newTestClient(transport, 3)

	req, _ := http.NewRequest(http.MethodPost, "https://example.test/v1/order", nil)
	resp, err := client.DoOnce(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, transport.calls)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		response(http.StatusOK, ``),
	}}
	client := newTestClient(transport, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequest(http.MethodGet, "https://example.test/v1/ticker", nil)
	_, err := client.Do(ctx, req)
	assert.Error(t, err)
}

func TestSetRateLimit(t *testing.T) {
	client := newTestClient(&scriptedTransport{responses: []*http.Response{
		response(http.StatusOK, ``),
	}}, 1)

	assert.NoError(t, client.SetRateLimit(ratelimit.PerSecond(5)))
}
