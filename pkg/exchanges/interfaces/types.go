package interfaces

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one OHLCV bar. Prices and volumes are decimals so that
// string-encoded exchange values survive without floating point rounding.
type Candle struct {
	// Symbol is the canonical trading pair identifier (e.g. "BTCUSDT").
	Symbol string

	// OpenTime and CloseTime are epoch milliseconds. OpenTime < CloseTime
	// always holds, and any candle sequence returned by an adapter is
	// ordered ascending by OpenTime.
	OpenTime  int64
	CloseTime int64

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	// Volume is the base-asset volume traded during the interval.
	Volume decimal.Decimal

	// QuoteVolume is the quote-asset volume. Zero when the exchange does
	// not report it.
	QuoteVolume decimal.Decimal

	// TradeCount is the number of trades in the interval, 0 when unknown.
	TradeCount int64
}

// Ticker is a snapshot of current market state for one symbol.
//
// Exchange data may transiently violate bid <= last <= ask; adapters pass the
// values through as reported and never assert that relation.
type Ticker struct {
	Symbol    string
	Last      decimal.Decimal
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Volume    decimal.Decimal
	Timestamp int64 // epoch milliseconds
}

// Side is a normalized order side.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// OrderType is a normalized order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "Limit"
	OrderTypeMarket OrderType = "Market"
)

// OrderStatus is a normalized order lifecycle state. Order state is owned by
// the exchange; adapters only reflect the remote state at query time and
// never advance it locally.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCanceled        OrderStatus = "Canceled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// TimeInForce controls how long an order stays active.
type TimeInForce string

// TimeInForceGTC (good till canceled) is the default for every order this
// layer submits, matching the behavior of all wrapped exchanges.
const TimeInForceGTC TimeInForce = "GTC"

// Order reflects the exchange's view of one order.
type Order struct {
	// ID is the exchange-assigned identifier, rendered as a string and
	// treated as opaque (Binance issues integers, BitMEX issues UUIDs).
	ID string

	Symbol           string
	Side             Side
	Type             OrderType
	Quantity         decimal.Decimal
	ExecutedQuantity decimal.Decimal

	// Price is zero for market orders.
	Price decimal.Decimal

	Status      OrderStatus
	TimeInForce TimeInForce
	CreatedAt   time.Time

	// Raw optionally carries the native response for diagnostics. Nothing
	// in the canonical layer reads it.
	Raw any
}

// OrderRequest describes an order to place. Side and Type accept any casing
// and are normalized before dispatch; an unrecognizable token fails with an
// InvalidParameterError before any network call happens.
type OrderRequest struct {
	Symbol   string
	Side     string
	Type     string
	Quantity decimal.Decimal

	// Price is required for limit orders and must be absent for market
	// orders.
	Price decimal.Decimal
}

// Balance is the funds held in one asset.
// Free and Locked are each >= 0 as reported by the exchange.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// BalanceMap maps asset code to balance.
type BalanceMap map[string]Balance

// Trade is a single fill, either public (FetchTrades) or private
// (FetchMyTrades, with OrderID populated).
type Trade struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp int64 // epoch milliseconds
}

// MarketInfo describes one tradable symbol and its order constraints.
type MarketInfo struct {
	Symbol string
	Base   string
	Quote  string

	MinQuantity decimal.Decimal
	MinPrice    decimal.Decimal
	MinNotional decimal.Decimal
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal

	// Active is false when the exchange reports the symbol as not
	// currently tradable.
	Active bool

	// Raw optionally carries exchange-specific extra data. It never leaks
	// into the canonical fields above.
	Raw any
}

// PriceLevel is one rung of an order book ladder.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a depth snapshot. Bids descend by price, asks ascend.
type OrderBook struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp int64 // epoch milliseconds, 0 when the exchange omits it
}
