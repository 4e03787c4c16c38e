package interfaces

import (
	"fmt"
	"strings"
)

// ParseSide canonicalizes an order side token. Matching is case-insensitive
// ("buy", "Buy", "BUY" all map to SideBuy); anything that is not a
// recognizable buy/sell token fails with an InvalidParameterError rather
// than leaking a native validation failure later.
func ParseSide(token string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return "", NewInvalidParameterError(fmt.Sprintf("unrecognized order side %q, want buy or sell", token))
}

// ParseOrderType canonicalizes an order type token, case-insensitively.
func ParseOrderType(token string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "limit":
		return OrderTypeLimit, nil
	case "market":
		return OrderTypeMarket, nil
	}
	return "", NewInvalidParameterError(fmt.Sprintf("unrecognized order type %q, want limit or market", token))
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// NormalizeOrderRequest validates and canonicalizes an order request before
// dispatch: side and type are parsed case-insensitively, quantity must be
// positive, a limit order must carry a positive price and a market order
// must not carry one. Every adapter runs its requests through this before
// touching the native client so the validation semantics are identical
// everywhere.
func NormalizeOrderRequest(req OrderRequest) (Side, OrderType, error) {
	side, err := ParseSide(req.Side)
	if err != nil {
		return "", "", err
	}

	typ, err := ParseOrderType(req.Type)
	if err != nil {
		return "", "", err
	}

	if req.Symbol == "" {
		return "", "", NewInvalidParameterError("order symbol must not be empty")
	}
	if !req.Quantity.IsPositive() {
		return "", "", NewInvalidParameterError("order quantity must be positive")
	}

	switch typ {
	case OrderTypeLimit:
		if !req.Price.IsPositive() {
			return "", "", NewInvalidParameterError("limit order requires a positive price")
		}
	case OrderTypeMarket:
		if !req.Price.IsZero() {
			return "", "", NewInvalidParameterError("market order must not carry a price")
		}
	}

	return side, typ, nil
}
