package binance

import (
	"context"
	"errors"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   interfaces.ErrorKind
		reason interfaces.RejectReason
	}{
		{"bad api key", &common.APIError{Code: -2014, Message: "API-key format invalid."}, interfaces.KindAuthentication, ""},
		{"rejected mbx key", &common.APIError{Code: -2015, Message: "Invalid API-key, IP, or permissions for action."}, interfaces.KindAuthentication, ""},
		{"bad signature", &common.APIError{Code: -1022, Message: "Signature for this request is not valid."}, interfaces.KindAuthentication, ""},
		{"clock drift", &common.APIError{Code: -1021, Message: "Timestamp for this request is outside of the recvWindow."}, interfaces.KindAuthentication, ""},
		{"throttled", &common.APIError{Code: -1003, Message: "Too many requests."}, interfaces.KindRateLimit, ""},
		{"too many orders", &common.APIError{Code: -1015, Message: "Too many new orders."}, interfaces.KindRateLimit, ""},
		{"bad symbol", &common.APIError{Code: -1121, Message: "Invalid symbol."}, interfaces.KindInvalidParameter, ""},
		{"bad interval", &common.APIError{Code: -1120, Message: "Invalid interval."}, interfaces.KindInvalidParameter, ""},
		{"unknown order", &common.APIError{Code: -2013, Message: "Order does not exist."}, interfaces.KindInvalidParameter, ""},
		{"cancel rejected", &common.APIError{Code: -2011, Message: "Unknown order sent."}, interfaces.KindInvalidParameter, ""},
		{"lot size", &common.APIError{Code: -2010, Message: "Filter failure: LOT_SIZE"}, interfaces.KindOrderRejected, interfaces.RejectMinAmount},
		{"price filter", &common.APIError{Code: -2010, Message: "Filter failure: PRICE_FILTER"}, interfaces.KindOrderRejected, interfaces.RejectMinPrice},
		{"notional", &common.APIError{Code: -2010, Message: "Filter failure: NOTIONAL"}, interfaces.KindOrderRejected, interfaces.RejectMinTotal},
		{"closed market", &common.APIError{Code: -2010, Message: "Market is closed."}, interfaces.KindOrderRejected, interfaces.RejectInactiveSymbol},
		{"other rejection", &common.APIError{Code: -1013, Message: "Unsupported order combination"}, interfaces.KindOrderRejected, interfaces.RejectOther},
		{"deadline", context.DeadlineExceeded, interfaces.KindTimeout, ""},
		{"cancellation", context.Canceled, interfaces.KindNetwork, ""},
		{"unclassified api error", &common.APIError{Code: -9999, Message: "weird"}, interfaces.KindUnknown, ""},
		{"plain error", errors.New("boom"), interfaces.KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.kind, interfaces.KindOf(got))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, interfaces.ReasonOf(got))
			}
			// The native cause stays reachable for diagnostics.
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestTranslateErrorPassesCanonicalThrough(t *testing.T) {
	original := interfaces.NewRateLimitError("slow down", nil)
	assert.Same(t, error(original), translateError(original))
}

func TestTranslateErrorNil(t *testing.T) {
	assert.NoError(t, translateError(nil))
}
