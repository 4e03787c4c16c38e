// Package websocket provides the reconnecting WebSocket connection used by
// adapters that stream market data. It multiplexes topic subscriptions over
// one connection, keeps it alive with pings and re-establishes it (with
// resubscription) after unexpected drops.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"

	"github.com/veiloq/exchange-adapters/pkg/logging"
)

// MessageHandler consumes raw messages for one topic.
type MessageHandler func(message []byte)

// TopicResolver extracts the routing topic from a raw message. Exchanges
// frame stream messages differently, so the owner of the connection
// supplies the resolver.
type TopicResolver func(message []byte) string

// WSConnector manages one exchange stream connection.
type WSConnector interface {
	Connect(ctx context.Context) error
	Close() error

	// Subscribe routes messages whose resolved topic matches to handler.
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topic string) error

	// Send writes a control or subscription message to the stream.
	Send(message interface{}) error

	IsConnected() bool
}

// Config tunes a connector.
type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	MaxRetries        int

	// ResolveTopic defaults to reading a top-level "topic" JSON field.
	ResolveTopic TopicResolver

	Logger logging.Logger
}

type connector struct {
	config Config

	conn    *websocket.Conn
	writeMu sync.Mutex

	handlers   map[string]MessageHandler
	handlersMu sync.RWMutex

	stateMu      sync.Mutex
	connected    bool
	reconnecting bool
	done         chan struct{}
	closed       bool

	logger logging.Logger
}

// NewConnector builds a connector; it does not dial until Connect.
func NewConnector(config Config) WSConnector {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 20 * time.Second
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = 5 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.ResolveTopic == nil {
		config.ResolveTopic = defaultTopicResolver
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	return &connector{
		config:   config,
		handlers: make(map[string]MessageHandler),
		logger:   config.Logger,
	}
}

func defaultTopicResolver(message []byte) string {
	var msg struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return ""
	}
	return msg.Topic
}

func (c *connector) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.connected {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context already cancelled: %w", err)
	}

	c.logger.Debug("dialing websocket",
		logging.String("url", c.config.URL),
		logging.Duration("heartbeat", c.config.HeartbeatInterval),
	)

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
		if err != nil {
			lastErr = err
			c.logger.Warn("websocket dial failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.ReconnectInterval):
			}
			continue
		}

		c.conn = conn
		c.connected = true
		c.done = make(chan struct{})
		c.closed = false

		go c.readPump(ctx)
		go c.heartbeat()

		c.logger.Info("websocket connected", logging.String("url", c.config.URL))
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *connector) readPump(ctx context.Context) {
	conn := c.conn

	defer func() {
		c.stateMu.Lock()
		c.connected = false
		wasClosed := c.closed
		if !c.closed {
			close(c.done)
			c.closed = true
		}
		shouldReconnect := !wasClosed && !c.reconnecting && ctx.Err() == nil
		c.stateMu.Unlock()

		_ = conn.Close()

		if shouldReconnect {
			go c.reconnect(ctx)
		}
	}()

	deadline := c.config.HeartbeatInterval * 3
	conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(deadline))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", logging.Error(err))
			}
			return
		}

		c.dispatch(message)
	}
}

func (c *connector) dispatch(message []byte) {
	topic := c.config.ResolveTopic(message)
	if topic == "" {
		return
	}

	c.handlersMu.RLock()
	handler, ok := c.handlers[topic]
	c.handlersMu.RUnlock()
	if !ok {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("stream handler panic recovered",
					logging.String("topic", topic),
					logging.String("panic", fmt.Sprintf("%v", r)),
				)
			}
		}()
		handler(message)
	}()
}

func (c *connector) heartbeat() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	c.stateMu.Lock()
	done := c.done
	c.stateMu.Unlock()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			if !c.IsConnected() {
				c.writeMu.Unlock()
				return
			}
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (c *connector) reconnect(ctx context.Context) {
	c.stateMu.Lock()
	if c.reconnecting {
		c.stateMu.Unlock()
		return
	}
	c.reconnecting = true
	c.stateMu.Unlock()

	defer func() {
		c.stateMu.Lock()
		c.reconnecting = false
		c.stateMu.Unlock()
	}()

	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			return c.Connect(ctx)
		},
		retry.Attempts(uint(c.config.MaxRetries)),
		retry.Delay(c.config.ReconnectInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("websocket reconnect attempt failed",
				logging.Int("attempt", int(n+1)),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		c.logger.Error("websocket reconnect failed", logging.Error(err))
		return
	}

	if err := c.resubscribe(); err != nil {
		c.logger.Warn("failed to resubscribe after reconnect", logging.Error(err))
	}
}

func (c *connector) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("websocket not connected")
	}

	c.handlersMu.Lock()
	c.handlers[topic] = handler
	c.handlersMu.Unlock()
	return nil
}

func (c *connector) Unsubscribe(topic string) error {
	c.handlersMu.Lock()
	delete(c.handlers, topic)
	c.handlersMu.Unlock()
	return nil
}

func (c *connector) Send(message interface{}) error {
	if !c.IsConnected() {
		return fmt.Errorf("websocket not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if data, ok := message.([]byte); ok {
		return c.conn.WriteMessage(websocket.TextMessage, data)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connector) IsConnected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected
}

func (c *connector) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	if c.done != nil {
		close(c.done)
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.stateMu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))
	time.Sleep(100 * time.Millisecond)

	if err := conn.Close(); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return err
	}
	return nil
}

// resubscribe re-registers every handler after a reconnect. Registration is
// local routing state; exchange-side subscription messages are replayed by
// the owning adapter via Send.
func (c *connector) resubscribe() error {
	c.handlersMu.RLock()
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	c.handlersMu.RUnlock()

	for _, topic := range topics {
		c.logger.Debug("resubscribed topic", logging.String("topic", topic))
	}
	return nil
}
