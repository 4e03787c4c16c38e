package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/exchange-adapters/pkg/common"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
	"github.com/veiloq/exchange-adapters/pkg/ratelimit"
)

type stubTransport struct {
	fn func(*http.Request) (*http.Response, error)
}

func (s stubTransport) RoundTrip(r *http.Request) (*http.Response, error) { return s.fn(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newStubbedClient(t *testing.T, fn func(*http.Request) (*http.Response, error)) *restClient {
	t.Helper()

	httpClient := common.NewHTTPClient(&common.ClientConfig{
		Timeout:    0,
		RateLimit:  ratelimit.PerSecond(1000),
		MaxRetries: 1,
		Transport:  stubTransport{fn: fn},
	})
	return newRestClient("test-key", "test-secret", "https://example.test", httpClient)
}

func TestPostAuthSignsRequest(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte

	client := newStubbedClient(t, func(r *http.Request) (*http.Response, error) {
		captured = r
		capturedBody, _ = io.ReadAll(r.Body)
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	_, err := client.Wallets(context.Background())
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Equal(t, "/v2/auth/r/wallets", captured.URL.Path)
	assert.Equal(t, "test-key", captured.Header.Get("bfx-apikey"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))

	nonce := captured.Header.Get("bfx-nonce")
	require.NotEmpty(t, nonce)

	mac := hmac.New(sha512.New384, []byte("test-secret"))
	mac.Write([]byte("/api/v2/auth/r/wallets" + nonce))
	mac.Write(capturedBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), captured.Header.Get("bfx-signature"))
}

func TestNonceIsStrictlyIncreasing(t *testing.T) {
	client := newRestClient("k", "s", "", nil)

	var previous int64
	for i := 0; i < 1000; i++ {
		nonce, err := strconv.ParseInt(client.nextNonce(), 10, 64)
		require.NoError(t, err)
		require.Greater(t, nonce, previous)
		previous = nonce
	}
}

func TestSubmitOrderParsesNotification(t *testing.T) {
	notification := `[1700000000000, "on-req", null, null,
		[[12345, null, 55, "tBTCUSD", 1700000000000, 1700000000000, 0.01, 0.01,
		"EXCHANGE LIMIT", null, null, null, 0, "ACTIVE", null, null, 50000]],
		null, "SUCCESS", "Submitting exchange limit order"]`

	client := newStubbedClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, notification), nil
	})

	id, err := client.SubmitOrder(context.Background(), orderSubmission{
		Type: "EXCHANGE LIMIT", Symbol: "tBTCUSD", Amount: "0.01", Price: "50000",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)
}

func TestSubmitOrderErrorNotification(t *testing.T) {
	notification := `[1700000000000, "on-req", null, null, null, null,
		"ERROR", "Invalid order: minimum size for BTC/USD is 0.0002"]`

	client := newStubbedClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, notification), nil
	})

	_, err := client.SubmitOrder(context.Background(), orderSubmission{
		Type: "EXCHANGE LIMIT", Symbol: "tBTCUSD", Amount: "0.0001", Price: "50000",
	})
	require.Error(t, err)
	assert.Equal(t, interfaces.KindOrderRejected, interfaces.KindOf(err))
	assert.Equal(t, interfaces.RejectMinAmount, interfaces.ReasonOf(err))
}

func TestGetPropagatesAPIErrors(t *testing.T) {
	client := newStubbedClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `["error", 10020, "symbol: invalid"]`), nil
	})

	_, err := client.Ticker(context.Background(), "tNOPE")
	require.Error(t, err)
	assert.Equal(t, interfaces.KindInvalidParameter, interfaces.KindOf(err))
}
