package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// MockServer is an in-process WebSocket endpoint for connector tests.
type MockServer struct {
	server *httptest.Server
	url    string

	mu            sync.RWMutex
	connections   map[*websocket.Conn]bool
	messageBuffer [][]byte
	onMessage     func(*websocket.Conn, []byte)

	rejectConnections bool
	dropConnections   bool
}

// NewMockServer starts the server; callers must Close it.
func NewMockServer() *MockServer {
	m := &MockServer{connections: make(map[*websocket.Conn]bool)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handleConnection))
	m.url = "ws" + strings.TrimPrefix(m.server.URL, "http")
	return m
}

func (m *MockServer) URL() string { return m.url }

func (m *MockServer) Close() { m.server.Close() }

// SetRejectConnections makes the server refuse new upgrades.
func (m *MockServer) SetRejectConnections(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectConnections = reject
}

// SetDropConnections makes the server hang up established connections.
func (m *MockServer) SetDropConnections(drop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropConnections = drop
}

// OnMessage registers a callback invoked for each received text message.
func (m *MockServer) OnMessage(callback func(*websocket.Conn, []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = callback
}

// Broadcast sends a message to every connected client.
func (m *MockServer) Broadcast(message []byte) {
	m.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(m.connections))
	for conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			m.removeConnection(conn)
		}
	}
}

// ConnectionCount returns how many clients are connected.
func (m *MockServer) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// ReceivedMessages returns a copy of everything clients sent.
func (m *MockServer) ReceivedMessages() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.messageBuffer))
	copy(out, m.messageBuffer)
	return out
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	reject := m.rejectConnections
	m.mu.RUnlock()
	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections[conn] = true
	m.mu.Unlock()

	defer func() {
		m.removeConnection(conn)
		conn.Close()
	}()

	for {
		m.mu.RLock()
		drop := m.dropConnections
		onMessage := m.onMessage
		m.mu.RUnlock()
		if drop {
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		m.mu.Lock()
		m.messageBuffer = append(m.messageBuffer, message)
		m.mu.Unlock()

		if onMessage != nil {
			onMessage(conn, message)
		}
	}
}

func (m *MockServer) removeConnection(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, conn)
}
