package binance

import (
	"errors"
	"strings"

	"github.com/adshao/go-binance/v2/common"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// Binance API error codes. Only the codes the adapter branches on are
// listed; everything else falls through to the unknown kind with the
// native message preserved.
const (
	codeUnauthorized       = -1002
	codeTooManyRequests    = -1003
	codeServerBusy         = -1004
	codeTimeout            = -1007
	codeTooManyOrders      = -1015
	codeTimestampOutside   = -1021
	codeInvalidSignature   = -1022
	codeInvalidMessage     = -1100
	codeUnknownParam       = -1101
	codeMandatoryParam     = -1102
	codeUnknownOrderType   = -1116
	codeInvalidSide        = -1117
	codeInvalidInterval    = -1120
	codeInvalidSymbol      = -1121
	codeOrderWouldTrigger  = -1013
	codeNewOrderRejected   = -2010
	codeCancelRejected     = -2011
	codeNoSuchOrder        = -2013
	codeRejectedMbxKey     = -2015
	codeAPIKeyNotFound     = -2014
)

// translateError maps a native SDK failure onto the canonical taxonomy.
// Errors that are already canonical pass through untouched so wrapped
// helpers can call it twice without double wrapping.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var canonical *interfaces.Error
	if errors.As(err, &canonical) {
		return err
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return translateAPIError(apiErr)
	}

	if tErr := interfaces.ClassifyTransportError(err); tErr != nil {
		return tErr
	}
	return interfaces.NewUnknownError(err)
}

func translateAPIError(apiErr *common.APIError) error {
	switch apiErr.Code {
	case codeUnauthorized, codeAPIKeyNotFound, codeRejectedMbxKey,
		codeInvalidSignature, codeTimestampOutside:
		return interfaces.NewAuthenticationError(apiErr.Message, apiErr)

	case codeTooManyRequests, codeTooManyOrders, codeServerBusy:
		return interfaces.NewRateLimitError(apiErr.Message, apiErr)

	case codeTimeout:
		return interfaces.NewTimeoutError(apiErr.Message, apiErr)

	case codeNewOrderRejected, codeOrderWouldTrigger:
		return interfaces.NewOrderRejectedError(rejectReason(apiErr.Message), apiErr.Message, apiErr)

	case codeCancelRejected, codeNoSuchOrder:
		return &interfaces.Error{
			Kind:    interfaces.KindInvalidParameter,
			Message: apiErr.Message,
			Cause:   apiErr,
		}
	}

	// The -11xx block covers malformed request parameters.
	if apiErr.Code <= codeInvalidMessage && apiErr.Code >= -1199 {
		return &interfaces.Error{
			Kind:    interfaces.KindInvalidParameter,
			Message: apiErr.Message,
			Cause:   apiErr,
		}
	}

	return interfaces.NewUnknownError(apiErr)
}

// rejectReason normalizes the filter name Binance embeds in rejection
// messages ("Filter failure: LOT_SIZE" and similar).
func rejectReason(message string) interfaces.RejectReason {
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, "LOT_SIZE"),
		strings.Contains(upper, "MIN_AMOUNT"):
		return interfaces.RejectMinAmount
	case strings.Contains(upper, "PRICE_FILTER"),
		strings.Contains(upper, "PERCENT_PRICE"):
		return interfaces.RejectMinPrice
	case strings.Contains(upper, "MIN_NOTIONAL"), strings.Contains(upper, "NOTIONAL"):
		return interfaces.RejectMinTotal
	case strings.Contains(upper, "INVALID SYMBOL"), strings.Contains(upper, "UNKNOWN SYMBOL"):
		return interfaces.RejectUnknownSymbol
	case strings.Contains(upper, "MARKET IS CLOSED"), strings.Contains(upper, "NOT CURRENTLY TRADING"):
		return interfaces.RejectInactiveSymbol
	default:
		return interfaces.RejectOther
	}
}
