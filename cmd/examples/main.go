package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/registry"
	"github.com/veiloq/exchange-adapters/pkg/logging"
)

func main() {
	// Create logger
	logger := logging.NewLogger()
	logger.SetLevel(logging.DEBUG)

	// Create exchange options
	options := &interfaces.Options{
		// API credentials (optional for public endpoints)
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),

		// Connection settings
		HTTPTimeout: 15 * time.Second,

		// Rate limiting
		MaxRequestsPerSecond: 10,

		// WebSocket settings
		WSReconnectInterval: 5 * time.Second,
		WSHeartbeatInterval: 20 * time.Second,
	}

	// Resolve the adapter through the registry
	exchanges := registry.NewDefault()
	defer exchanges.CloseAll()

	adapter, err := exchanges.Get("binance", options)
	if err != nil {
		logger.Error("failed to build adapter", logging.Error(err))
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Get historical candles
	logger.Info("fetching historical candles")
	since := time.Now().Add(-1 * time.Hour)
	candles, err := adapter.FetchOHLCV(ctx, "BTCUSDT", interfaces.Interval1m, 60, &since)
	if err != nil {
		logger.Error("failed to get candles", logging.Error(err))
		os.Exit(1)
	}

	// Print historical candles
	for _, candle := range candles {
		logger.Info("historical candle",
			logging.String("symbol", candle.Symbol),
			logging.String("time", time.UnixMilli(candle.OpenTime).Format(time.RFC3339)),
			logging.String("open", candle.Open.String()),
			logging.String("close", candle.Close.String()),
		)
	}

	// Get current ticker
	logger.Info("fetching current ticker")
	ticker, err := adapter.FetchTicker(ctx, "BTCUSDT")
	if err != nil {
		logger.Error("failed to get ticker", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("current ticker",
		logging.String("symbol", ticker.Symbol),
		logging.String("last_price", ticker.Last.String()),
		logging.String("24h_volume", ticker.Volume.String()),
	)

	// Get order book
	logger.Info("fetching order book")
	orderBook, err := adapter.FetchOrderBook(ctx, "BTCUSDT", 25)
	if err != nil {
		logger.Error("failed to get order book", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("order book snapshot",
		logging.String("symbol", orderBook.Symbol),
		logging.Int("bid_levels", len(orderBook.Bids)),
		logging.Int("ask_levels", len(orderBook.Asks)),
	)

	// Get balances when credentials are configured
	if options.APIKey != "" {
		balances, err := adapter.FetchBalance(ctx, "")
		if err != nil {
			logger.Error("failed to get balances", logging.Error(err))
			os.Exit(1)
		}
		for asset, balance := range balances {
			logger.Info("balance",
				logging.String("asset", asset),
				logging.String("free", balance.Free.String()),
				logging.String("locked", balance.Locked.String()),
			)
		}
	}

	// Subscribe to real-time candle updates where the adapter streams
	if streamer, ok := adapter.(interfaces.Streamer); ok {
		logger.Info("subscribing to real-time candles")
		subID, err := streamer.SubscribeCandles(ctx, "BTCUSDT", interfaces.Interval1m,
			func(candle interfaces.Candle) {
				logger.Info("real-time candle",
					logging.String("symbol", candle.Symbol),
					logging.String("time", time.UnixMilli(candle.OpenTime).Format(time.RFC3339)),
					logging.String("open", candle.Open.String()),
					logging.String("close", candle.Close.String()),
				)
			})
		if err != nil {
			logger.Error("failed to subscribe to candles", logging.Error(err))
			os.Exit(1)
		}
		defer streamer.Unsubscribe(subID)

		logger.Info("subscribing to ticker updates")
		tickerSub, err := streamer.SubscribeTicker(ctx, "BTCUSDT",
			func(ticker interfaces.Ticker) {
				logger.Info("ticker update",
					logging.String("symbol", ticker.Symbol),
					logging.String("last_price", ticker.Last.String()),
					logging.String("24h_volume", ticker.Volume.String()),
				)
			})
		if err != nil {
			logger.Error("failed to subscribe to ticker", logging.Error(err))
			os.Exit(1)
		}
		defer streamer.Unsubscribe(tickerSub)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	// Cleanup
	logger.Info("shutting down")
	cancel()
}
