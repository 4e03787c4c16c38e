package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failure into the canonical taxonomy shared by all
// exchange adapters. Callers never observe a native SDK error type directly;
// every adapter boundary translates native failures into one of these kinds
// before returning.
type ErrorKind int

const (
	// KindUnknown marks a native failure that could not be classified.
	// The original message is preserved for diagnostics.
	KindUnknown ErrorKind = iota

	// KindAuthentication indicates bad, expired or malformed credentials.
	KindAuthentication

	// KindRateLimit indicates the exchange throttled the request.
	KindRateLimit

	// KindInvalidParameter indicates a bad symbol, an unsupported interval,
	// a malformed side/type token or any other rejected argument.
	KindInvalidParameter

	// KindOrderRejected indicates the exchange refused an order. The
	// RejectReason carries the normalized rejection cause.
	KindOrderRejected

	// KindNetwork indicates a transport-level failure (connection refused,
	// DNS, broken pipe, 5xx without a translatable body).
	KindNetwork

	// KindTimeout indicates the operation deadline expired before the
	// exchange answered. Timeout is a subtype of Network: IsNetwork reports
	// true for it, and read-only retries treat both the same way.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindOrderRejected:
		return "order_rejected"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// RejectReason normalizes the exchange's order rejection cause.
type RejectReason string

const (
	RejectMinAmount      RejectReason = "min_amount"
	RejectMinPrice       RejectReason = "min_price"
	RejectMinTotal       RejectReason = "min_total"
	RejectUnknownSymbol  RejectReason = "unknown_symbol"
	RejectInactiveSymbol RejectReason = "inactive_symbol"
	RejectOther          RejectReason = "other"
)

// Error is the canonical error returned by every adapter operation.
// It wraps the native cause so diagnostics survive translation, while the
// Kind (and Reason, for rejections) is what callers branch on.
type Error struct {
	Kind    ErrorKind
	Message string
	Reason  RejectReason
	Cause   error
}

func (e *Error) Error() string {
	if e.Kind == KindOrderRejected && e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying native error, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two canonical errors by kind, so callers can write
// errors.Is(err, interfaces.ErrRateLimit) without inspecting the struct.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is comparisons. Each carries only a Kind.
var (
	ErrAuthentication   = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrRateLimit        = &Error{Kind: KindRateLimit, Message: "rate limit exceeded"}
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter, Message: "invalid parameter"}
	ErrOrderRejected    = &Error{Kind: KindOrderRejected, Message: "order rejected"}
	ErrNetwork          = &Error{Kind: KindNetwork, Message: "network error"}
	ErrTimeout          = &Error{Kind: KindTimeout, Message: "deadline exceeded"}
	ErrUnknown          = &Error{Kind: KindUnknown, Message: "unknown error"}
)

// NewError builds a canonical error of the given kind around a native cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewAuthenticationError reports bad or malformed credentials.
func NewAuthenticationError(message string, cause error) *Error {
	return NewError(KindAuthentication, message, cause)
}

// NewRateLimitError reports exchange throttling.
func NewRateLimitError(message string, cause error) *Error {
	return NewError(KindRateLimit, message, cause)
}

// NewInvalidParameterError reports a rejected argument.
func NewInvalidParameterError(message string) *Error {
	return NewError(KindInvalidParameter, message, nil)
}

// NewOrderRejectedError reports a refused order with its normalized reason.
func NewOrderRejectedError(reason RejectReason, message string, cause error) *Error {
	return &Error{Kind: KindOrderRejected, Message: message, Reason: reason, Cause: cause}
}

// NewNetworkError reports a transport failure.
func NewNetworkError(message string, cause error) *Error {
	return NewError(KindNetwork, message, cause)
}

// NewTimeoutError reports a deadline expiry.
func NewTimeoutError(message string, cause error) *Error {
	return NewError(KindTimeout, message, cause)
}

// NewUnknownError preserves an untranslatable native failure.
func NewUnknownError(cause error) *Error {
	msg := "untranslated exchange error"
	if cause != nil {
		msg = cause.Error()
	}
	return NewError(KindUnknown, msg, cause)
}

// KindOf extracts the canonical kind from err, or KindUnknown if err was not
// produced by an adapter.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf extracts the rejection reason from an order rejection error.
func ReasonOf(err error) RejectReason {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindOrderRejected {
		return e.Reason
	}
	return ""
}

// IsNetwork reports whether err is a transport failure, including timeouts.
func IsNetwork(err error) bool {
	k := KindOf(err)
	return k == KindNetwork || k == KindTimeout
}

// IsRetriable reports whether a read-only operation that failed with err may
// safely be retried: throttling and transport failures are transient, all
// other kinds are terminal. Order placement is never retried regardless.
func IsRetriable(err error) bool {
	return KindOf(err) == KindRateLimit || IsNetwork(err)
}

// ClassifyTransportError maps context and net-level failures onto the
// taxonomy. Adapters call this as the last step of their translators for
// errors that did not come from the exchange itself.
func ClassifyTransportError(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("operation deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewNetworkError("operation canceled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeoutError(netErr.Error(), err)
		}
		return NewNetworkError(netErr.Error(), err)
	}
	return nil
}
