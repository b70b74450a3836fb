package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visaconnect/pkg/logger"
)

const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// WSMessage is the envelope of every frame pushed to a client.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Client represents a WebSocket connection client
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// enqueue queues a frame without blocking. It reports false once the client
// is closed or its buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// close closes Send once, which makes WritePump say goodbye and exit.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Manager tracks live connections. A user may hold several at once, one per
// open tab or device.
type Manager struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the manager. It reports false once the
// manager has shut down; the caller then owns closing the connection.
func (m *Manager) Register(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

// Unregister drops a connection. After shutdown every client is already
// closed, so it returns immediately.
func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.register:
				m.mutex.Lock()
				if m.clients[client.UserID] == nil {
					m.clients[client.UserID] = make(map[*Client]struct{})
				}
				m.clients[client.UserID][client] = struct{}{}
				m.mutex.Unlock()
				logger.Debug("Client registered: %s", client.UserID)

			case client := <-m.unregister:
				m.remove(client)
				logger.Debug("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for userID, conns := range m.clients {
					for client := range conns {
						client.close()
					}
					delete(m.clients, userID)
				}
				m.mutex.Unlock()
				return
			}
		}
	}()
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	conns, ok := m.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; ok {
		delete(conns, client)
		client.close()
	}
	if len(conns) == 0 {
		delete(m.clients, client.UserID)
	}
}

func (m *Manager) IsOnline(userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID]) > 0
}

// SendToUser pushes an event to every connection of the user. A connection
// whose buffer is full misses the event rather than blocking the sender.
func (m *Manager) SendToUser(userID string, event string, payload interface{}) error {
	message, err := json.Marshal(WSMessage{
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for client := range m.clients[userID] {
		if !client.enqueue(message) {
			logger.Warn("Dropping %s for user %s: send buffer full", event, userID)
		}
	}
	return nil
}

// ReadPump reads messages from the WebSocket connection. Clients only send
// pings; everything else is ignored.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("websocket read error for %s: %v", c.UserID, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			pong, _ := json.Marshal(WSMessage{Type: MessageTypePong, Timestamp: time.Now().UTC().Format(time.RFC3339)})
			c.enqueue(pong)
		}
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("websocket write error for %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
