package bitmex

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// parseAPIError maps a non-2xx response onto the canonical taxonomy.
// BitMEX reports {"error": {"message": "...", "name": "..."}}; a 503
// with the overload message is throttling, not an outage.
func parseAPIError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Name    string `json:"name"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	message := envelope.Error.Message
	if message == "" {
		message = fmt.Sprintf("http status %d", status)
	}
	cause := fmt.Errorf("bitmex: %s (http %d)", message, status)
	lower := strings.ToLower(message)

	switch {
	case status == http.StatusTooManyRequests:
		return interfaces.NewRateLimitError(message, cause)

	case status == http.StatusServiceUnavailable:
		// "The system is currently overloaded. Please try again later."
		return interfaces.NewRateLimitError(message, cause)

	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return interfaces.NewAuthenticationError(message, cause)

	case strings.Contains(lower, "signature not valid"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "request has expired"):
		return interfaces.NewAuthenticationError(message, cause)

	case strings.Contains(lower, "invalid orderid"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "unable to cancel order"):
		return &interfaces.Error{
			Kind:    interfaces.KindInvalidParameter,
			Message: message,
			Cause:   cause,
		}

	case status == http.StatusBadRequest:
		if reason := sniffRejection(lower); reason != "" {
			return interfaces.NewOrderRejectedError(reason, message, cause)
		}
		return &interfaces.Error{
			Kind:    interfaces.KindInvalidParameter,
			Message: message,
			Cause:   cause,
		}

	default:
		return interfaces.NewUnknownError(cause)
	}
}

func sniffRejection(lower string) interfaces.RejectReason {
	switch {
	case strings.Contains(lower, "orderqty is invalid"),
		strings.Contains(lower, "below the minimum"),
		strings.Contains(lower, "lotsize"):
		return interfaces.RejectMinAmount
	case strings.Contains(lower, "invalid price"),
		strings.Contains(lower, "ticksize"):
		return interfaces.RejectMinPrice
	case strings.Contains(lower, "order value"):
		return interfaces.RejectMinTotal
	case strings.Contains(lower, "instrument is not open"),
		strings.Contains(lower, "market is closed"):
		return interfaces.RejectInactiveSymbol
	case strings.Contains(lower, "insufficient"):
		return interfaces.RejectOther
	default:
		return ""
	}
}

// translateError is the adapter boundary: canonical errors pass through,
// transport failures are classified, the rest is preserved as unknown.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var canonical *interfaces.Error
	if errors.As(err, &canonical) {
		return err
	}
	if tErr := interfaces.ClassifyTransportError(err); tErr != nil {
		return tErr
	}
	return interfaces.NewUnknownError(err)
}
