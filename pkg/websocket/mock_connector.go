package websocket

import (
	"context"
	"sync"
)

// MockConnector implements WSConnector for adapter tests. It records calls,
// can be primed with errors and lets tests inject stream messages without a
// network.
type MockConnector struct {
	mu sync.RWMutex

	connected bool
	handlers  map[string]MessageHandler

	connectCalls     int
	closeCalls       int
	sendCalls        int
	subscribeCalls   map[string]int
	unsubscribeCalls map[string]int
	sentMessages     []interface{}

	connectError   error
	subscribeError error
	sendError      error
	closeError     error
}

// NewMockConnector returns a disconnected mock.
func NewMockConnector() *MockConnector {
	return &MockConnector{
		handlers:         make(map[string]MessageHandler),
		subscribeCalls:   make(map[string]int),
		unsubscribeCalls: make(map[string]int),
	}
}

func (m *MockConnector) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectCalls++
	if m.connectError != nil {
		return m.connectError
	}
	m.connected = true
	return nil
}

func (m *MockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	if m.closeError != nil {
		return m.closeError
	}
	m.connected = false
	return nil
}

func (m *MockConnector) Subscribe(topic string, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribeCalls[topic]++
	if m.subscribeError != nil {
		return m.subscribeError
	}
	m.handlers[topic] = handler
	return nil
}

func (m *MockConnector) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unsubscribeCalls[topic]++
	delete(m.handlers, topic)
	return nil
}

func (m *MockConnector) Send(message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendCalls++
	if m.sendError != nil {
		return m.sendError
	}
	m.sentMessages = append(m.sentMessages, message)
	return nil
}

func (m *MockConnector) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SimulateMessage delivers a raw message to the handler registered for the
// topic, synchronously.
func (m *MockConnector) SimulateMessage(topic string, message []byte) {
	m.mu.RLock()
	handler, ok := m.handlers[topic]
	m.mu.RUnlock()

	if ok {
		handler(message)
	}
}

func (m *MockConnector) SetConnectError(err error)   { m.withLock(func() { m.connectError = err }) }
func (m *MockConnector) SetSubscribeError(err error) { m.withLock(func() { m.subscribeError = err }) }
func (m *MockConnector) SetSendError(err error)      { m.withLock(func() { m.sendError = err }) }
func (m *MockConnector) SetCloseError(err error)     { m.withLock(func() { m.closeError = err }) }

func (m *MockConnector) withLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func (m *MockConnector) ConnectCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectCalls
}

func (m *MockConnector) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}

func (m *MockConnector) SubscribeCalls(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscribeCalls[topic]
}

func (m *MockConnector) SentMessages() []interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]interface{}, len(m.sentMessages))
	copy(out, m.sentMessages)
	return out
}
