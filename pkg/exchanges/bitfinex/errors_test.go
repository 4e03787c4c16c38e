package bitfinex

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   interfaces.ErrorKind
		reason interfaces.RejectReason
	}{
		{
			"v2 auth failure",
			http.StatusInternalServerError,
			`["error", 10100, "apikey: invalid"]`,
			interfaces.KindAuthentication, "",
		},
		{
			"stale nonce",
			http.StatusInternalServerError,
			`["error", 10114, "nonce: small"]`,
			interfaces.KindAuthentication, "",
		},
		{
			"throttled by status",
			http.StatusTooManyRequests,
			`["error", 11010, "ratelimit: error"]`,
			interfaces.KindRateLimit, "",
		},
		{
			"throttled by code",
			http.StatusInternalServerError,
			`["error", 11010, "ratelimit: error"]`,
			interfaces.KindRateLimit, "",
		},
		{
			"unknown pair",
			http.StatusInternalServerError,
			`["error", 10020, "symbol: invalid"]`,
			interfaces.KindInvalidParameter, "",
		},
		{
			"cancel of unknown order",
			http.StatusInternalServerError,
			`["error", 10001, "Order not found."]`,
			interfaces.KindInvalidParameter, "",
		},
		{
			"v1 rejection object",
			http.StatusBadRequest,
			`{"message": "Invalid order: minimum size for BTC/USD is 0.0002"}`,
			interfaces.KindOrderRejected, interfaces.RejectMinAmount,
		},
		{
			"v1 balance rejection",
			http.StatusBadRequest,
			`{"message": "Invalid order: not enough exchange balance"}`,
			interfaces.KindOrderRejected, interfaces.RejectOther,
		},
		{
			"unclassified failure",
			http.StatusInternalServerError,
			`["error", 10000, "generic fail"]`,
			interfaces.KindUnknown, "",
		},
		{
			"non-json body",
			http.StatusBadGateway,
			`upstream exploded`,
			interfaces.KindUnknown, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseAPIError(tt.status, []byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.kind, interfaces.KindOf(err))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, interfaces.ReasonOf(err))
			}
		})
	}
}

func TestTranslateErrorPassesCanonicalThrough(t *testing.T) {
	original := interfaces.NewAuthenticationError("bad key", nil)
	assert.Same(t, error(original), translateError(original))
}

func TestTranslateErrorClassifiesTransport(t *testing.T) {
	err := translateError(context.DeadlineExceeded)
	assert.Equal(t, interfaces.KindTimeout, interfaces.KindOf(err))
	assert.True(t, interfaces.IsNetwork(err))
}

func TestRejectReason(t *testing.T) {
	tests := []struct {
		text string
		want interfaces.RejectReason
	}{
		{"Invalid order: minimum size for BTC/USD is 0.0002", interfaces.RejectMinAmount},
		{"Invalid price", interfaces.RejectMinPrice},
		{"Order value must meet the minimum order value", interfaces.RejectMinTotal},
		{"symbol: invalid", interfaces.RejectUnknownSymbol},
		{"trading is disabled for this pair", interfaces.RejectInactiveSymbol},
		{"something novel", interfaces.RejectOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, rejectReason(tt.text), tt.text)
	}
}
