package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
	"github.com/veiloq/exchange-adapters/pkg/websocket"
)

const streamURL = "wss://stream.binance.com:9443/ws"

// streamer maintains the market-data stream for one adapter. The
// connection is dialed lazily on the first subscription.
type streamer struct {
	adapter *Adapter

	mu        sync.Mutex
	conn      websocket.WSConnector
	requestID atomic.Int64

	// subscriptions maps subscription id to the stream name so
	// Unsubscribe can tell the exchange which stream to drop.
	subscriptions map[string]string
}

func newStreamer(a *Adapter) *streamer {
	return &streamer{
		adapter:       a,
		subscriptions: make(map[string]string),
	}
}

// resolveStreamTopic routes raw frames by event type. Kline frames carry
// the interval inside the nested payload, so the topic mirrors the
// stream name Binance uses for the subscription.
func resolveStreamTopic(message []byte) string {
	var frame struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Kline  struct {
			Interval string `json:"i"`
		} `json:"k"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return ""
	}

	symbol := strings.ToLower(frame.Symbol)
	switch frame.Event {
	case "kline":
		return fmt.Sprintf("%s@kline_%s", symbol, frame.Kline.Interval)
	case "24hrTicker":
		return fmt.Sprintf("%s@ticker", symbol)
	default:
		return ""
	}
}

func (s *streamer) ensureConnected(ctx context.Context) (websocket.WSConnector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && s.conn.IsConnected() {
		return s.conn, nil
	}

	options := s.adapter.options
	url := streamURL
	if options.BaseURL != "" && strings.HasPrefix(options.BaseURL, "ws") {
		url = options.BaseURL
	}

	conn := websocket.NewConnector(websocket.Config{
		URL:               url,
		HeartbeatInterval: options.WSHeartbeatInterval,
		ReconnectInterval: options.WSReconnectInterval,
		ResolveTopic:      resolveStreamTopic,
		Logger:            s.adapter.logger,
	})
	if err := conn.Connect(ctx); err != nil {
		return nil, interfaces.NewNetworkError("stream connect failed", err)
	}

	s.conn = conn
	return conn, nil
}

func (s *streamer) subscribe(ctx context.Context, stream string, handler websocket.MessageHandler) (string, error) {
	conn, err := s.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	if err := conn.Subscribe(stream, handler); err != nil {
		return "", interfaces.NewNetworkError("stream subscribe failed", err)
	}

	reqID := s.requestID.Add(1)
	err = conn.Send(map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{stream},
		"id":     reqID,
	})
	if err != nil {
		_ = conn.Unsubscribe(stream)
		return "", interfaces.NewNetworkError("stream subscribe failed", err)
	}

	id := fmt.Sprintf("%s#%d", stream, reqID)
	s.mu.Lock()
	s.subscriptions[id] = stream
	s.mu.Unlock()
	return id, nil
}

// SubscribeCandles streams kline updates for the symbol and interval.
// Binance pushes the forming candle on every trade; the handler sees
// each update, closed or not.
func (a *Adapter) SubscribeCandles(ctx context.Context, symbol string, interval interfaces.Interval, handler interfaces.CandleHandler) (string, error) {
	native, err := intervals.Translate(interval)
	if err != nil {
		return "", err
	}

	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), native)
	return a.stream.subscribe(ctx, stream, func(message []byte) {
		candle, err := parseKlineFrame(message)
		if err != nil {
			a.logger.Warn("dropping malformed kline frame")
			return
		}
		handler(candle)
	})
}

// SubscribeTicker streams 24h rolling ticker updates for the symbol.
func (a *Adapter) SubscribeTicker(ctx context.Context, symbol string, handler interfaces.TickerHandler) (string, error) {
	stream := fmt.Sprintf("%s@ticker", strings.ToLower(symbol))
	return a.stream.subscribe(ctx, stream, func(message []byte) {
		ticker, err := parseTickerFrame(message)
		if err != nil {
			a.logger.Warn("dropping malformed ticker frame")
			return
		}
		handler(ticker)
	})
}

// Unsubscribe drops one streaming subscription by its id.
func (a *Adapter) Unsubscribe(subscriptionID string) error {
	s := a.stream

	s.mu.Lock()
	stream, ok := s.subscriptions[subscriptionID]
	if ok {
		delete(s.subscriptions, subscriptionID)
	}
	conn := s.conn
	s.mu.Unlock()

	if !ok {
		return interfaces.NewInvalidParameterError(fmt.Sprintf("unknown subscription %q", subscriptionID))
	}
	if conn == nil {
		return nil
	}

	if err := conn.Unsubscribe(stream); err != nil {
		return interfaces.NewNetworkError("stream unsubscribe failed", err)
	}
	return conn.Send(map[string]any{
		"method": "UNSUBSCRIBE",
		"params": []string{stream},
		"id":     s.requestID.Add(1),
	})
}

func (s *streamer) close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.subscriptions = make(map[string]string)
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

type klineFrame struct {
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime    int64  `json:"t"`
		CloseTime   int64  `json:"T"`
		Open        string `json:"o"`
		Close       string `json:"c"`
		High        string `json:"h"`
		Low         string `json:"l"`
		Volume      string `json:"v"`
		QuoteVolume string `json:"q"`
		TradeCount  int64  `json:"n"`
	} `json:"k"`
}

func parseKlineFrame(message []byte) (interfaces.Candle, error) {
	var frame klineFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return interfaces.Candle{}, err
	}

	var p decParser
	candle := interfaces.Candle{
		Symbol:      frame.Symbol,
		OpenTime:    frame.Kline.OpenTime,
		CloseTime:   frame.Kline.CloseTime,
		Open:        p.parse(frame.Kline.Open),
		High:        p.parse(frame.Kline.High),
		Low:         p.parse(frame.Kline.Low),
		Close:       p.parse(frame.Kline.Close),
		Volume:      p.parse(frame.Kline.Volume),
		QuoteVolume: p.parse(frame.Kline.QuoteVolume),
		TradeCount:  frame.Kline.TradeCount,
	}
	return candle, p.err
}

type tickerFrame struct {
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Last      string `json:"c"`
	Bid       string `json:"b"`
	Ask       string `json:"a"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
}

func parseTickerFrame(message []byte) (interfaces.Ticker, error) {
	var frame tickerFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return interfaces.Ticker{}, err
	}

	var p decParser
	ticker := interfaces.Ticker{
		Symbol:    frame.Symbol,
		Last:      p.parse(frame.Last),
		Bid:       p.parse(frame.Bid),
		Ask:       p.parse(frame.Ask),
		High:      p.parse(frame.High),
		Low:       p.parse(frame.Low),
		Volume:    p.parse(frame.Volume),
		Timestamp: frame.EventTime,
	}
	return ticker, p.err
}
