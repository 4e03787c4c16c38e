// Package bitmex adapts the BitMEX derivatives API to the canonical
// exchange contract. Quantities are contract counts and margin balances
// arrive in fractional units (satoshis for XBt); the converters scale
// them to whole assets.
package bitmex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/veiloq/exchange-adapters/pkg/common"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
	"github.com/veiloq/exchange-adapters/pkg/logging"
	"github.com/veiloq/exchange-adapters/pkg/ratelimit"
)

const (
	exchangeName = "bitmex"

	defaultCandleLimit = 100
	maxCandleLimit     = 1000
	defaultDepthLimit  = 25
	maxDepthLimit      = 500
	defaultTradeLimit  = 100
	maxTradeLimit      = 1000
)

// intervals covers the four bucket sizes BitMEX serves. Everything else
// fails fast at translation.
var intervals = interfaces.IntervalMap{
	interfaces.Interval1m: "1m",
	interfaces.Interval5m: "5m",
	interfaces.Interval1h: "1h",
	interfaces.Interval1d: "1d",
}

// Adapter implements the canonical exchange contract for BitMEX.
type Adapter struct {
	options *interfaces.Options
	client  nativeClient
	logger  logging.Logger
}

var _ interfaces.ExchangeAdapter = (*Adapter)(nil)

// New builds an adapter from the given options.
func New(options *interfaces.Options) (*Adapter, error) {
	if options == nil {
		options = interfaces.NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	httpClient := common.NewHTTPClient(&common.ClientConfig{
		Timeout:    options.HTTPTimeout,
		RateLimit:  ratelimit.PerSecond(options.MaxRequestsPerSecond),
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NewNopLogger(),
	})

	return &Adapter{
		options: options,
		client:  newRestClient(options.APIKey, options.APISecret, options.BaseURL, httpClient),
		logger:  logging.NewNopLogger(),
	}, nil
}

// SetLogger replaces the adapter's logger. The default discards output.
func (a *Adapter) SetLogger(logger logging.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

func (a *Adapter) Name() string { return exchangeName }

func call[T any](ctx context.Context, a *Adapter, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if _, ok := ctx.Deadline(); !ok && a.options.HTTPTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.options.HTTPTimeout)
		defer cancel()
	}

	value, err := interfaces.CallWithDeadline(callCtx, func() (T, error) {
		return fn(callCtx)
	})
	if err != nil {
		var zero T
		return zero, translateError(err)
	}
	return value, nil
}

func (a *Adapter) FetchMarkets(ctx context.Context) ([]interfaces.MarketInfo, error) {
	instruments, err := call(ctx, a, a.client.ActiveInstruments)
	if err != nil {
		return nil, err
	}

	markets := make([]interfaces.MarketInfo, 0, len(instruments))
	for _, inst := range instruments {
		market, err := toGlobalMarket(inst)
		if err != nil {
			return nil, translateError(err)
		}
		markets = append(markets, market)
	}
	return markets, nil
}

// FetchTicker reads the instrument snapshot, which carries live best
// bid/ask and last price alongside the 24h aggregates.
func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (*interfaces.Ticker, error) {
	native := nativeSymbol(symbol)
	instruments, err := call(ctx, a, func(ctx context.Context) ([]instrument, error) {
		return a.client.Instrument(ctx, native)
	})
	if err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, interfaces.NewInvalidParameterError(fmt.Sprintf("unknown symbol %q", symbol))
	}

	ticker, err := toGlobalTicker(instruments[0])
	if err != nil {
		return nil, translateError(err)
	}
	return ticker, nil
}

func (a *Adapter) FetchOHLCV(ctx context.Context, symbol string, interval interfaces.Interval, limit int, since *time.Time) ([]interfaces.Candle, error) {
	binSize, err := intervals.Translate(interval)
	if err != nil {
		return nil, err
	}
	limit = interfaces.ClampLimit(limit, defaultCandleLimit, maxCandleLimit)

	native := nativeSymbol(symbol)
	buckets, err := call(ctx, a, func(ctx context.Context) ([]bucketedTrade, error) {
		return a.client.BucketedTrades(ctx, native, binSize, limit, since)
	})
	if err != nil {
		return nil, err
	}

	candles := make([]interfaces.Candle, 0, len(buckets))
	for _, b := range buckets {
		candle, err := toGlobalCandle(native, interval, b)
		if err != nil {
			return nil, translateError(err)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	return candles, nil
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (*interfaces.OrderBook, error) {
	depth = interfaces.ClampLimit(depth, defaultDepthLimit, maxDepthLimit)

	native := nativeSymbol(symbol)
	levels, err := call(ctx, a, func(ctx context.Context) ([]bookLevel, error) {
		return a.client.OrderBookL2(ctx, native, depth)
	})
	if err != nil {
		return nil, err
	}

	book, err := toGlobalOrderBook(native, levels)
	if err != nil {
		return nil, translateError(err)
	}
	return book, nil
}

func (a *Adapter) FetchTrades(ctx context.Context, symbol string, limit int) ([]interfaces.Trade, error) {
	limit = interfaces.ClampLimit(limit, defaultTradeLimit, maxTradeLimit)

	native := nativeSymbol(symbol)
	rows, err := call(ctx, a, func(ctx context.Context) ([]publicTrade, error) {
		return a.client.Trades(ctx, native, limit)
	})
	if err != nil {
		return nil, err
	}

	trades := make([]interfaces.Trade, 0, len(rows))
	for _, r := range rows {
		trade, err := toGlobalPublicTrade(r)
		if err != nil {
			return nil, translateError(err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func (a *Adapter) FetchBalance(ctx context.Context, asset string) (interfaces.BalanceMap, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}

	rows, err := call(ctx, a, a.client.Margin)
	if err != nil {
		return nil, err
	}

	balances, err := toGlobalBalances(rows)
	if err != nil {
		return nil, translateError(err)
	}
	if asset == "" {
		return balances, nil
	}

	filtered := make(interfaces.BalanceMap, 1)
	if b, ok := balances[strings.ToUpper(asset)]; ok {
		filtered[b.Asset] = b
	}
	return filtered, nil
}

func (a *Adapter) CreateOrder(ctx context.Context, req interfaces.OrderRequest) (string, error) {
	if err := a.requireCredentials(); err != nil {
		return "", err
	}

	side, orderType, err := interfaces.NormalizeOrderRequest(req)
	if err != nil {
		return "", err
	}

	payload := orderPayload{
		Symbol:   nativeSymbol(req.Symbol),
		Side:     string(side),
		OrderQty: json.Number(req.Quantity.String()),
		OrdType:  string(orderType),
	}
	if orderType == interfaces.OrderTypeLimit {
		payload.Price = json.Number(req.Price.String())
		payload.TimeInForce = "GoodTillCancel"
	}

	order, err := call(ctx, a, func(ctx context.Context) (*nativeOrder, error) {
		return a.client.PlaceOrder(ctx, payload)
	})
	if err != nil {
		return "", err
	}
	return order.OrderID, nil
}

// CancelOrder cancels by the exchange-assigned UUID.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string, symbol string) error {
	if err := a.requireCredentials(); err != nil {
		return err
	}
	if strings.TrimSpace(orderID) == "" {
		return interfaces.NewInvalidParameterError("order id is required")
	}

	_, err := call(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.client.CancelOrder(ctx, orderID)
	})
	return err
}

// CancelAllOrders delegates to the exchange's bulk cancel endpoint.
func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	if err := a.requireCredentials(); err != nil {
		return 0, err
	}

	native := ""
	if symbol != "" {
		native = nativeSymbol(symbol)
	}
	return call(ctx, a, func(ctx context.Context) (int, error) {
		return a.client.CancelAllOrders(ctx, native)
	})
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]interfaces.Order, error) {
	return a.fetchOrders(ctx, symbol, true)
}

func (a *Adapter) FetchAllOrders(ctx context.Context, symbol string) ([]interfaces.Order, error) {
	if symbol == "" {
		return nil, interfaces.NewInvalidParameterError("symbol is required for order history")
	}
	return a.fetchOrders(ctx, symbol, false)
}

func (a *Adapter) fetchOrders(ctx context.Context, symbol string, openOnly bool) ([]interfaces.Order, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}

	native := ""
	if symbol != "" {
		native = nativeSymbol(symbol)
	}
	rows, err := call(ctx, a, func(ctx context.Context) ([]nativeOrder, error) {
		return a.client.Orders(ctx, native, openOnly)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]interfaces.Order, 0, len(rows))
	for _, r := range rows {
		order, err := toGlobalOrder(r)
		if err != nil {
			return nil, translateError(err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string) ([]interfaces.Trade, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, interfaces.NewInvalidParameterError("symbol is required for trade history")
	}

	native := nativeSymbol(symbol)
	rows, err := call(ctx, a, func(ctx context.Context) ([]execution, error) {
		return a.client.TradeHistory(ctx, native, defaultTradeLimit)
	})
	if err != nil {
		return nil, err
	}

	trades := make([]interfaces.Trade, 0, len(rows))
	for _, r := range rows {
		trade, err := toGlobalExecution(r)
		if err != nil {
			return nil, translateError(err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func (a *Adapter) Close() error { return nil }

// nativeSymbol normalizes to BitMEX's uppercase contract names and maps
// the BTC spot habit onto the XBT root BitMEX actually lists.
func nativeSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	if strings.HasPrefix(upper, "BTC") {
		upper = "XBT" + upper[3:]
	}
	return upper
}

func (a *Adapter) requireCredentials() error {
	if a.options.APIKey == "" || a.options.APISecret == "" {
		return interfaces.NewAuthenticationError("API credentials required", nil)
	}
	return nil
}
