// Package bitfinex adapts the Bitfinex v2 REST API to the canonical
// exchange contract. The v2 API answers with positional arrays rather
// than objects; decoding stays in this package's converters.
package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/veiloq/exchange-adapters/pkg/common"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
	"github.com/veiloq/exchange-adapters/pkg/logging"
	"github.com/veiloq/exchange-adapters/pkg/ratelimit"
)

const (
	exchangeName = "bitfinex"

	defaultCandleLimit = 120
	maxCandleLimit     = 10000
	defaultTradeLimit  = 125
	maxTradeLimit      = 10000
)

// intervals covers eight of the canonical nine. Bitfinex has no 4h
// timeframe, so that token has no entry and fails fast at translation.
var intervals = interfaces.IntervalMap{
	interfaces.Interval1m:  "1m",
	interfaces.Interval5m:  "5m",
	interfaces.Interval15m: "15m",
	interfaces.Interval30m: "30m",
	interfaces.Interval1h:  "1h",
	interfaces.Interval1d:  "1D",
	interfaces.Interval1w:  "7D",
	interfaces.Interval1M:  "1M",
}

// Adapter implements the canonical exchange contract for Bitfinex.
// Rate limiting and the bounded read retry live in the shared HTTP
// client every request flows through.
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
	details, err := call(ctx, a, a.client.SymbolDetails)
	if err != nil {
		return nil, err
	}

	markets := make([]interfaces.MarketInfo, 0, len(details))
	for _, d := range details {
		market, err := toGlobalMarket(d)
		if err != nil {
			return nil, translateError(err)
		}
		markets = append(markets, market)
	}
	return markets, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (*interfaces.Ticker, error) {
	native := nativeSymbol(symbol)
	raw, err := call(ctx, a, func(ctx context.Context) ([]json.RawMessage, error) {
		return a.client.Ticker(ctx, native)
	})
	if err != nil {
		return nil, err
	}

	ticker, err := toGlobalTicker(strings.ToUpper(symbol), raw)
	if err != nil {
		return nil, translateError(err)
	}
	return ticker, nil
}

func (a *Adapter) FetchOHLCV(ctx context.Context, symbol string, interval interfaces.Interval, limit int, since *time.Time) ([]interfaces.Candle, error) {
	timeframe, err := intervals.Translate(interval)
	if err != nil {
		return nil, err
	}
	limit = interfaces.ClampLimit(limit, defaultCandleLimit, maxCandleLimit)

	native := nativeSymbol(symbol)
	rows, err := call(ctx, a, func(ctx context.Context) ([][]json.RawMessage, error) {
		return a.client.Candles(ctx, native, timeframe, limit, since)
	})
	if err != nil {
		return nil, err
	}

	candles := make([]interfaces.Candle, 0, len(rows))
	for _, r := range rows {
		candle, err := toGlobalCandle(strings.ToUpper(symbol), interval, r)
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

// bookDepth snaps the requested depth to the precision-0 book sizes the
// API accepts (1, 25 or 100 levels per side).
func bookDepth(requested int) int {
	switch {
	case requested <= 0:
		return 25
	case requested == 1:
		return 1
	case requested <= 25:
		return 25
	default:
		return 100
	}
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (*interfaces.OrderBook, error) {
	native := nativeSymbol(symbol)
	rows, err := call(ctx, a, func(ctx context.Context) ([][]json.RawMessage, error) {
		return a.client.Book(ctx, native, bookDepth(depth))
	})
	if err != nil {
		return nil, err
	}

	book, err := toGlobalOrderBook(strings.ToUpper(symbol), rows)
	if err != nil {
		return nil, translateError(err)
	}
	return book, nil
}

func (a *Adapter) FetchTrades(ctx context.Context, symbol string, limit int) ([]interfaces.Trade, error) {
	limit = interfaces.ClampLimit(limit, defaultTradeLimit, maxTradeLimit)

	native := nativeSymbol(symbol)
	rows, err := call(ctx, a, func(ctx context.Context) ([][]json.RawMessage, error) {
		return a.client.Trades(ctx, native, limit)
	})
	if err != nil {
		return nil, err
	}

	trades := make([]interfaces.Trade, 0, len(rows))
	for _, r := range rows {
		trade, err := toGlobalPublicTrade(strings.ToUpper(symbol), r)
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

	rows, err := call(ctx, a, a.client.Wallets)
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

	// Bitfinex encodes the side in the amount's sign.
	amount := req.Quantity
	if side == interfaces.SideSell {
		amount = amount.Neg()
	}

	sub := orderSubmission{
		Type:   "EXCHANGE LIMIT",
		Symbol: nativeSymbol(req.Symbol),
		Amount: amount.String(),
		Price:  req.Price.String(),
	}
	if orderType == interfaces.OrderTypeMarket {
		sub.Type = "EXCHANGE MARKET"
		sub.Price = ""
	}

	id, err := call(ctx, a, func(ctx context.Context) (int64, error) {
		return a.client.SubmitOrder(ctx, sub)
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
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
		return struct{}{}, a.client.CancelOrder(ctx, id)
	})
	return err
}

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

// FetchOpenOrders lists every open order; the exchange endpoint is not
// symbol-scoped, so scoping happens after conversion.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]interfaces.Order, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}

	rows, err := call(ctx, a, a.client.OpenOrders)
	if err != nil {
		return nil, err
	}

	want := strings.ToUpper(symbol)
	orders := make([]interfaces.Order, 0, len(rows))
	for _, r := range rows {
		order, err := toGlobalOrder(r)
		if err != nil {
			return nil, translateError(err)
		}
		if want != "" && order.Symbol != want {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (a *Adapter) FetchAllOrders(ctx context.Context, symbol string) ([]interfaces.Order, error) {
	if err := a.requireCredentials(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, interfaces.NewInvalidParameterError("symbol is required for order history")
	}

	native := nativeSymbol(symbol)
	rows, err := call(ctx, a, func(ctx context.Context) ([][]json.RawMessage, error) {
		return a.client.OrderHistory(ctx, native)
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
	rows, err := call(ctx, a, func(ctx context.Context) ([][]json.RawMessage, error) {
		return a.client.MyTrades(ctx, native)
	})
	if err != nil {
		return nil, err
	}

	trades := make([]interfaces.Trade, 0, len(rows))
	for _, r := range rows {
		trade, err := toGlobalMyTrade(r)
		if err != nil {
			return nil, translateError(err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) requireCredentials() error {
	if a.options.APIKey == "" || a.options.APISecret == "" {
		return interfaces.NewAuthenticationError("API credentials required", nil)
	}
	return nil
}
