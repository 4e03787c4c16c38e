// Package exchange-adapters provides a unified interface for trading against
// cryptocurrency exchanges.
//
// The library wraps exchange-specific REST and WebSocket APIs behind a single
// canonical contract, allowing applications to read market data, place and
// cancel orders and query balances without caring which exchange backs the
// adapter. Binance, Bitfinex and BitMEX are supported out of the box.
//
// Core Features:
//
//   - Unified API for market data (markets, tickers, candles, order books, trades)
//   - Unified trading surface (create/cancel orders, open orders, order and fill history)
//   - Account balances with per-asset filtering
//   - WebSocket candle and ticker subscriptions where the exchange streams
//   - Rate limiting and bounded retries for read operations; order placement
//     is never retried internally
//   - Decimal prices and quantities end to end (no float64 rounding)
//
// The library is built around the interfaces.ExchangeAdapter contract. Each
// adapter translates canonical symbols, intervals and side tokens into the
// exchange's native vocabulary and funnels every native failure through its
// error translator, so callers only ever see the canonical error taxonomy.
//
// # Errors
//
// Every operation returns an *interfaces.Error carrying one of the canonical
// kinds, comparable with errors.Is against the exported sentinels:
//
//   - ErrAuthentication: missing, malformed or rejected credentials
//
//   - ErrRateLimit: the exchange throttled the request
//
//   - ErrInvalidParameter: bad symbol, unsupported interval, malformed
//     side/type token or any other rejected argument
//
//   - ErrOrderRejected: the exchange refused an order; the error's Reason
//     field carries the normalized rejection cause (min_amount, min_price,
//     min_total, unknown_symbol, inactive_symbol, other)
//
//   - ErrNetwork: transport-level failure (connection refused, DNS, 5xx
//     without a translatable body)
//
//   - ErrTimeout: the operation deadline expired; a subtype of network for
//     retry purposes
//
//   - ErrUnknown: an untranslatable native failure, message preserved
//
// # Examples
//
// Basic usage:
//
// Option 1: constructing an adapter directly:
//
//	options := interfaces.NewOptions().WithCredentials("your-api-key", "your-api-secret")
//	adapter, err := binance.New(options)
//
// Option 2: resolving through the registry:
//
//	exchanges := registry.NewDefault()
//	defer exchanges.CloseAll()
//
//	adapter, err := exchanges.Get("binance", options)
//	if err != nil {
//	    log.Fatalf("failed to build adapter: %v", err)
//	}
//
// # Market Data
//
// Getting historical candles:
//
//	since := time.Now().Add(-1 * time.Hour)
//	candles, err := adapter.FetchOHLCV(ctx, "BTCUSDT", interfaces.Interval1m, 60, &since)
//
//	if err != nil {
//	    switch {
//	    case errors.Is(err, interfaces.ErrInvalidParameter):
//	        log.Fatalf("symbol or interval not supported by this exchange")
//	    case errors.Is(err, interfaces.ErrRateLimit):
//	        log.Fatalf("throttled, back off")
//	    default:
//	        log.Fatalf("failed to get candles: %v", err)
//	    }
//	}
//
//	for _, candle := range candles {
//	    fmt.Printf("%s | Open: %s, Close: %s\n",
//	        time.UnixMilli(candle.OpenTime).Format("15:04:05"),
//	        candle.Open, candle.Close)
//	}
//
// # Trading
//
// Placing and inspecting orders:
//
//	orderID, err := adapter.CreateOrder(ctx, interfaces.OrderRequest{
//	    Symbol:   "BTCUSDT",
//	    Side:     "buy",
//	    Type:     "limit",
//	    Quantity: decimal.RequireFromString("0.001"),
//	    Price:    decimal.RequireFromString("50000"),
//	})
//	if err != nil {
//	    var adapterErr *interfaces.Error
//	    if errors.As(err, &adapterErr) && adapterErr.Kind == interfaces.KindOrderRejected {
//	        log.Fatalf("order rejected: %s", adapterErr.Reason)
//	    }
//	    log.Fatalf("failed to place order: %v", err)
//	}
//
//	open, err := adapter.FetchOpenOrders(ctx, "BTCUSDT")
//
// # Streaming
//
// Adapters that maintain a market-data connection implement
// interfaces.Streamer:
//
//	if streamer, ok := adapter.(interfaces.Streamer); ok {
//	    subID, err := streamer.SubscribeCandles(ctx, "BTCUSDT", interfaces.Interval1m,
//	        func(candle interfaces.Candle) {
//	            fmt.Printf("[%s] Close: %s Volume: %s\n",
//	                time.UnixMilli(candle.OpenTime).Format("15:04:05"),
//	                candle.Close, candle.Volume)
//	        })
//	    defer streamer.Unsubscribe(subID)
//	}
//
// Adapters are safe for concurrent use. Each instance owns one rate limiter;
// concurrent calls share it and are delayed, never dropped.
package exchangeadapters
