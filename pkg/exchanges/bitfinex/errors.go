package bitfinex

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// Bitfinex platform error codes, reported as ["error", CODE, "message"].
const (
	codeAuthFailed   = 10100
	codeInvalidNonce = 10114
	codeRateLimit    = 11010
	codeUnknownPair  = 10020
)

// parseAPIError maps a non-2xx response onto the canonical taxonomy.
// v2 errors are positional arrays; v1 endpoints answer with a message
// object instead.
func parseAPIError(status int, body []byte) error {
	code, message := decodeErrorBody(body)
	if message == "" {
		message = fmt.Sprintf("http status %d", status)
	}
	cause := fmt.Errorf("bitfinex: %s (code %d, http %d)", message, code, status)

	switch {
	case status == http.StatusTooManyRequests, code == codeRateLimit:
		return interfaces.NewRateLimitError(message, cause)
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		code == codeAuthFailed, code == codeInvalidNonce:
		return interfaces.NewAuthenticationError(message, cause)
	case code == codeUnknownPair:
		return &interfaces.Error{
			Kind:    interfaces.KindInvalidParameter,
			Message: message,
			Cause:   cause,
		}
	case strings.Contains(strings.ToLower(message), "not found"),
		strings.Contains(strings.ToLower(message), "order: invalid"):
		return &interfaces.Error{
			Kind:    interfaces.KindInvalidParameter,
			Message: message,
			Cause:   cause,
		}
	case status == http.StatusBadRequest:
		if reason := sniffRejection(message); reason != "" {
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

func decodeErrorBody(body []byte) (int, string) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil && len(arr) >= 3 {
		var code int
		var message string
		_ = json.Unmarshal(arr[1], &code)
		_ = json.Unmarshal(arr[2], &message)
		return code, message
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		return 0, obj.Message
	}
	return 0, strings.TrimSpace(string(body))
}

// translateError is the adapter boundary: canonical errors pass through,
// transport failures are classified, everything else is preserved as
// unknown.
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

// rejectReason normalizes the free-text rejection messages Bitfinex puts
// in order notifications.
func rejectReason(text string) interfaces.RejectReason {
	if reason := sniffRejection(text); reason != "" {
		return reason
	}
	return interfaces.RejectOther
}

func sniffRejection(text string) interfaces.RejectReason {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "minimum size"):
		return interfaces.RejectMinAmount
	case strings.Contains(lower, "minimum price"), strings.Contains(lower, "invalid price"):
		return interfaces.RejectMinPrice
	case strings.Contains(lower, "minimum order value"), strings.Contains(lower, "minimal order value"):
		return interfaces.RejectMinTotal
	case strings.Contains(lower, "unknown symbol"), strings.Contains(lower, "symbol: invalid"):
		return interfaces.RejectUnknownSymbol
	case strings.Contains(lower, "market is closed"), strings.Contains(lower, "trading is disabled"):
		return interfaces.RejectInactiveSymbol
	case strings.Contains(lower, "not enough"), strings.Contains(lower, "balance"):
		return interfaces.RejectOther
	default:
		return ""
	}
}
