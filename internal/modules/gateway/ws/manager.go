package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/gorilla/websocket"
)

type CloseReason string

const (
	ReasonWriteError  CloseReason = "write_error"
	ReasonPingError   CloseReason = "ping_error"
	ReasonReadError   CloseReason = "read_error"
	ReasonClientClose CloseReason = "client_closed"
	ReasonReplaced    CloseReason = "replaced_by_new_connection"
	ReasonShutdown    CloseReason = "server_shutdown"
	ReasonDropped     CloseReason = "dropped_by_server"
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer full")
)

// Options tunes every connection of a Manager
type Options struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultOptions mirrors the gateway defaults
func DefaultOptions() Options {
	return Options{
		PingInterval:   54 * time.Second,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     256,
	}
}

// Connection represents a WebSocket connection. It implements service.Conn.
type Connection struct {
	UserID    int64
	Conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	manager   *Manager
	ctx       context.Context
	closeOnce sync.Once
}

// Manager tracks the live connection of every admitted user
type Manager struct {
	clients map[int64]*Connection
	opts    Options
	mu      sync.Mutex
}

// NewManager creates a new connection manager
func NewManager(opts Options) *Manager {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	return &Manager{
		clients: make(map[int64]*Connection),
		opts:    opts,
	}
}

// Register tracks a new connection and returns the user's previous one, if
// any. The caller closes it once the new connection has taken over.
func (m *Manager) Register(ctx context.Context, conn *websocket.Conn, userID int64) (*Connection, *Connection) {
	c := &Connection{
		UserID:  userID,
		Conn:    conn,
		send:    make(chan []byte, m.opts.SendBuffer),
		done:    make(chan struct{}),
		manager: m,
		ctx:     ctx,
	}

	m.mu.Lock()
	old := m.clients[userID]
	m.clients[userID] = c
	m.mu.Unlock()

	return c, old
}

func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clients[c.UserID] == c {
		delete(m.clients, c.UserID)
	}
}

// Count returns the number of tracked connections
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Shutdown closes all connections
func (m *Manager) Shutdown() {
	m.mu.Lock()
	clients := make([]*Connection, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.CloseWithReason(ReasonShutdown, nil)
	}
}

// Send queues payload without blocking. A full buffer means the client is
// too slow; the caller is expected to drop it.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Close is called by the server side when it gives up on the client
func (c *Connection) Close() {
	c.CloseWithReason(ReasonDropped, nil)
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// CloseWithReason closes the connection with a reason
func (c *Connection) CloseWithReason(r CloseReason, err error) {
	c.closeOnce.Do(func() {
		event := logger.Info(c.ctx)
		if err != nil {
			event = logger.Warn(c.ctx).Err(err)
		}
		event.Int64("user_id", c.UserID).
			Str("reason", string(r)).
			Msg("ws connection closed")

		close(c.done)
		c.manager.unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps queued messages and pings to the websocket connection
func (c *Connection) WritePump() {
	opts := c.manager.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(ReasonPingError, err)
				return
			}
		}
	}
}

// ReadPump feeds every inbound frame to handleMessage until the socket fails.
// It blocks; the connection is closed when it returns.
func (c *Connection) ReadPump(handleMessage func(message []byte)) {
	opts := c.manager.opts
	reason := ReasonClientClose
	var readErr error
	defer func() {
		c.CloseWithReason(reason, readErr)
	}()

	c.Conn.SetReadLimit(opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				reason = ReasonReadError
				readErr = err
			}
			return
		}
		handleMessage(message)
	}
}
