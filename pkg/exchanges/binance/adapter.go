// Package binance adapts the Binance spot API to the canonical exchange
// contract. REST access goes through the official SDK; market-data
// streaming uses the shared WebSocket connector against the public
// stream endpoint.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
	"github.com/veiloq/exchange-adapters/pkg/logging"
	"github.com/veiloq/exchange-adapters/pkg/ratelimit"
)

const (
	exchangeName = "binance"

	defaultCandleLimit = 500
	maxCandleLimit     = 1000
	defaultDepthLimit  = 100
	maxDepthLimit      = 5000
	defaultTradeLimit  = 500
	maxTradeLimit      = 1000
)

// intervals maps every canonical granularity onto Binance's identical
// native tokens. Binance is the only wrapped exchange with full coverage.
var intervals = interfaces.IntervalMap{
	interfaces.Interval1m:  "1m",
	interfaces.Interval5m:  "5m",
	interfaces.Interval15m: "15m",
	interfaces.Interval30m: "30m",
	interfaces.Interval1h:  "1h",
	interfaces.Interval4h:  "4h",
	interfaces.Interval1d:  "1d",
	interfaces.Interval1w:  "1w",
	interfaces.Interval1M:  "1M",
}

// Adapter implements the canonical exchange contract for Binance spot.
type Adapter struct {
	options *interfaces.Options
	client  nativeClient
	limiter ratelimit.RateLimiter
	logger  logging.Logger
	stream  *streamer
}

var _ interfaces.ExchangeAdapter = (*Adapter)(nil)
var _ interfaces.Streamer = (*Adapter)(nil)

// New builds an adapter from the given options. Credential shape is
// validated here; credential correctness surfaces on the first private
// call.
func New(options *interfaces.Options) (*Adapter, error) {
	if options == nil {
		options = interfaces.NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	a := &Adapter{
		options: options,
		client:  newRestClient(options.APIKey, options.APISecret, options.BaseURL),
		limiter: ratelimit.NewTokenBucketLimiter(ratelimit.PerSecond(options.MaxRequestsPerSecond)),
		logger:  logging.NewNopLogger(),
	}
	a.stream = newStreamer(a)
	return a, nil
}

// SetLogger replaces the adapter's logger. The default discards output.
func (a *Adapter) SetLogger(logger logging.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

func (a *Adapter) Name() string { return exchangeName }

// call gates one native request behind the shared limiter and the
// configured HTTP timeout, then funnels any failure through the error
// translator.
func call[T any](ctx context.Context, a *Adapter, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := a.limiter.Wait(ctx); err != nil {
		return zero, translateError(err)
	}

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
		return zero, translateError(err)
	}
	return value, nil
}

// read adds bounded retries for idempotent fetches. Order
// mutations go through call directly so a flaky network can never place
// the same order twice.
func read[T any](ctx context.Context, a *Adapter, fn func(ctx context.Context) (T, error)) (T, error) {
	value, err := interfaces.RetryRead(ctx, func() (T, error) {
		return call(ctx, a, fn)
	})
	if err != nil {
		// The retry loop reports a bare context error when the deadline
		// fires between attempts.
		return value, translateError(err)
	}
	return value, nil
}

func (a *Adapter) FetchMarkets(ctx context.Context) ([]interfaces.MarketInfo, error) {
	info, err := read(ctx, a, a.client.ExchangeInfo)
	if err != nil {
		return nil, err
	}

	markets := make([]interfaces.MarketInfo, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		market, err := toGlobalMarket(s)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
	}
	return markets, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (*interfaces.Ticker, error) {
	stats, err := read(ctx, a, func(ctx context.Context) ([]*binancePriceChangeStats, error) {
		return a.client.PriceChangeStats(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, interfaces.NewInvalidParameterError(fmt.Sprintf("unknown symbol %q", symbol))
	}
	return toGlobalTicker(stats[0])
}

func (a *Adapter) FetchOHLCV(ctx context.Context, symbol string, interval interfaces.Interval, limit int, since *time.Time) ([]interfaces.Candle, error) {
	native, err := intervals.Translate(interval)
	if err != nil {
		return nil, err
	}
	limit = interfaces.ClampLimit(limit, defaultCandleLimit, maxCandleLimit)

	klines, err := read(ctx, a, func(ctx context.Context) ([]*binanceKline, error) {
		return a.client.Klines(ctx, symbol, native, limit, since)
	})
	if err != nil {
		return nil, err
	}
	return toGlobalCandles(symbol, interval, klines)
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (*interfaces.OrderBook, error) {
	depth = interfaces.ClampLimit(depth, defaultDepthLimit, maxDepthLimit)

	response, err := read(ctx, a, func(ctx context.Context) (*binanceDepth, error) {
		return a.client.Depth(ctx, symbol, depth)
	})
	if err != nil {
		return nil, err
	}
	return toGlobalOrderBook(symbol, response)
}

func (a *Adapter) FetchTrades(ctx context.Context, symbol string, limit int) ([]interfaces.Trade, error) {
	limit = interfaces.ClampLimit(limit, defaultTradeLimit, maxTradeLimit)

	trades, err := read(ctx, a, func(ctx context.Context) ([]*binanceTrade, error) {
		return a.client.RecentTrades(ctx, symbol, limit)
	})
	if err != nil {
		return nil, err
	}
	return toGlobalPublicTrades(symbol, trades)
}

func (a *Adapter) FetchBalance(ctx context.Context, asset string) (interfaces.BalanceMap, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}

	account, err := read(ctx, a, a.client.Account)
	if err != nil {
		return nil, err
	}

	balances, err := toGlobalBalances(account)
	if err != nil {
		return nil, err
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
	params, err := a.prepareOrder(req)
	if err != nil {
		return "", err
	}

	response, err := call(ctx, a, func(ctx context.Context) (*binanceCreateOrderResponse, error) {
		return a.client.CreateOrder(ctx, params)
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(response.OrderID, 10), nil
}

// CreateMarginOrder places an order against the cross-margin account.
// Semantics otherwise match CreateOrder.
func (a *Adapter) CreateMarginOrder(ctx context.Context, req interfaces.OrderRequest) (string, error) {
	params, err := a.prepareOrder(req)
	if err != nil {
		return "", err
	}

	response, err := call(ctx, a, func(ctx context.Context) (*binanceCreateOrderResponse, error) {
		return a.client.CreateMarginOrder(ctx, params)
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(response.OrderID, 10), nil
}

func (a *Adapter) prepareOrder(req interfaces.OrderRequest) (orderParams, error) {
	if err := a.requireCredentials(); err != nil {
		return orderParams{}, err
	}

	side, orderType, err := interfaces.NormalizeOrderRequest(req)
	if err != nil {
		return orderParams{}, err
	}

	params := orderParams{
		symbol:    req.Symbol,
		side:      toLocalSide(side),
		orderType: toLocalOrderType(orderType),
		quantity:  req.Quantity.String(),
	}
	if orderType == interfaces.OrderTypeLimit {
		params.price = req.Price.String()
		params.timeInForce = "GTC"
	}
	return params, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID string, symbol string) error {
	if err := a.requireCredentials(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return interfaces.NewInvalidParameterError(fmt.Sprintf("malformed order id %q", orderID))
	}

	_, err = call(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.client.CancelOrder(ctx, symbol, id)
	})
	return err
}

// CancelAllOrders lists the open orders and cancels them one by one; the
// first cancellation failure aborts the sweep with the count so far.
func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	orders, err := a.FetchOpenOrders(ctx, symbol)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range orders {
		if err := a.CancelOrder(ctx, o.ID, o.Symbol); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]interfaces.Order, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}

	orders, err := read(ctx, a, func(ctx context.Context) ([]*binanceOrder, error) {
		return a.client.OpenOrders(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return toGlobalOrders(orders)
}

func (a *Adapter) FetchAllOrders(ctx context.Context, symbol string) ([]interfaces.Order, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, interfaces.NewInvalidParameterError("symbol is required for order history")
	}

	orders, err := read(ctx, a, func(ctx context.Context) ([]*binanceOrder, error) {
		return a.client.AllOrders(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return toGlobalOrders(orders)
}

func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string) ([]interfaces.Trade, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, interfaces.NewInvalidParameterError("symbol is required for trade history")
	}

	trades, err := read(ctx, a, func(ctx context.Context) ([]*binanceMyTrade, error) {
		return a.client.MyTrades(ctx, symbol, defaultTradeLimit)
	})
	if err != nil {
		return nil, err
	}
	return toGlobalMyTrades(trades)
}

func (a *Adapter) Close() error {
	return a.stream.close()
}

func (a *Adapter) requireCredentials() error {
	if a.options.APIKey == "" || a.options.APISecret == "" {
		return interfaces.NewAuthenticationError("API credentials required", nil)
	}
	return nil
}
