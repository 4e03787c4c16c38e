package interfaces

import (
	"context"
	"time"
)

// ExchangeAdapter is the contract every exchange implementation satisfies.
// It provides a unified way to read market data, manage orders and query
// balances regardless of which exchange backs the adapter.
//
// Implementations are responsible for:
//   - translating canonical symbols, intervals and side tokens into the
//     exchange's native vocabulary, failing fast on anything unmappable
//   - funneling every native failure through the adapter's error translator
//     so callers only ever see the canonical *Error taxonomy
//   - rate limiting outbound calls with the single limiter the adapter
//     instance owns
//
// All operations accept a context. When its deadline expires the in-flight
// native call is abandoned from the caller's perspective and a timeout error
// is returned; the exchange-side effect (an order that was actually placed
// before the deadline fired) is not rolled back. Callers reconcile via
// FetchOpenOrders / FetchAllOrders after a timeout on CreateOrder.
//
// Adapters may be invoked concurrently. There is no cross-call ordering
// guarantee: two concurrent CreateOrder calls may reach the exchange in
// either order.
type ExchangeAdapter interface {
	// Name returns the exchange identifier ("binance", "bitfinex", ...).
	Name() string

	// FetchMarkets returns the static or semi-static list of tradable
	// symbols and their order constraints.
	FetchMarkets(ctx context.Context) ([]MarketInfo, error)

	// FetchTicker returns a genuine current-market-state snapshot for the
	// symbol. Fails with an InvalidParameterError when the exchange
	// reports the symbol as unknown.
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// FetchOHLCV returns up to limit candles of the given canonical
	// interval, ordered ascending by open time. A limit above the
	// exchange's documented maximum is clamped, not rejected. An interval
	// with no mapping for this exchange fails immediately with an
	// InvalidParameterError and never proceeds with an unmapped value.
	// A nil since requests the most recent candles.
	FetchOHLCV(ctx context.Context, symbol string, interval Interval, limit int, since *time.Time) ([]Candle, error)

	// FetchOrderBook returns a depth snapshot with up to depth levels per
	// side.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)

	// FetchTrades returns recent public trades for the symbol.
	FetchTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)

	// FetchBalance returns account balances. With asset == "" every
	// balance the exchange reports is returned, zero entries included;
	// with an asset code the result holds at most that single entry.
	FetchBalance(ctx context.Context, asset string) (BalanceMap, error)

	// CreateOrder places a live order and returns the exchange-assigned
	// order id. Side and type tokens are normalized case-insensitively
	// before dispatch. On rejection the error is an OrderRejectedError
	// carrying the normalized rejection reason. Never retried internally.
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)

	// CancelOrder cancels one order. An id the exchange no longer knows
	// fails with an InvalidParameterError.
	CancelOrder(ctx context.Context, orderID string, symbol string) error

	// CancelAllOrders cancels every open order, optionally scoped to one
	// symbol, and returns how many were cancelled.
	CancelAllOrders(ctx context.Context, symbol string) (int, error)

	// FetchOpenOrders returns open orders, optionally scoped to a symbol
	// (symbol == "" means all symbols where the exchange allows it).
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// FetchAllOrders returns orders in any state for the symbol.
	FetchAllOrders(ctx context.Context, symbol string) ([]Order, error)

	// FetchMyTrades returns the account's fill history for the symbol.
	FetchMyTrades(ctx context.Context, symbol string) ([]Trade, error)

	// Close releases the native client handle and any persistent
	// connections the adapter established.
	Close() error
}

// CandleHandler consumes streamed candle updates.
type CandleHandler func(Candle)

// TickerHandler consumes streamed ticker updates.
type TickerHandler func(Ticker)

// Streamer is implemented by adapters that maintain a persistent
// market-data connection. Subscriptions stay active until Unsubscribe is
// called or the context is cancelled; handlers run on goroutines owned by
// the adapter.
type Streamer interface {
	SubscribeCandles(ctx context.Context, symbol string, interval Interval, handler CandleHandler) (string, error)
	SubscribeTicker(ctx context.Context, symbol string, handler TickerHandler) (string, error)
	Unsubscribe(subscriptionID string) error
}

// Options configures an adapter at construction time.
//
// Credentials are opaque strings passed straight to the native client; this
// layer never logs them. Construction with malformed credentials fails with
// an AuthenticationError but performs no network round-trip to validate
// them; bad but well-formed keys surface on the first real call.
type Options struct {
	// APIKey and APISecret authenticate private endpoints. Both empty is
	// valid and restricts the adapter to public market data.
	APIKey    string
	APISecret string

	// BaseURL overrides the exchange's production REST endpoint, mainly
	// for testnets and tests.
	BaseURL string

	// HTTPTimeout bounds each REST call.
	HTTPTimeout time.Duration

	// MaxRequestsPerSecond feeds the adapter's token-bucket limiter.
	// Concurrent calls through one adapter share the bucket and are
	// delayed, never dropped.
	MaxRequestsPerSecond int

	// WSReconnectInterval and WSHeartbeatInterval tune the streaming
	// connection for adapters that implement Streamer.
	WSReconnectInterval time.Duration
	WSHeartbeatInterval time.Duration
}

// NewOptions returns defaults suitable for public-endpoint use.
func NewOptions() *Options {
	return &Options{
		HTTPTimeout:          15 * time.Second,
		MaxRequestsPerSecond: 10,
		WSReconnectInterval:  5 * time.Second,
		WSHeartbeatInterval:  20 * time.Second,
	}
}

// WithCredentials sets the API key pair and returns the options for
// chaining.
func (o *Options) WithCredentials(key, secret string) *Options {
	o.APIKey = key
	o.APISecret = secret
	return o
}

// Validate checks the credential shape: a key without a secret (or the
// reverse) is malformed and fails with an AuthenticationError. No network
// call is made.
func (o *Options) Validate() error {
	if (o.APIKey == "") != (o.APISecret == "") {
		return NewAuthenticationError("API key and secret must be provided together", nil)
	}
	return nil
}
