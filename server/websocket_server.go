package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/room4-2/aasha/config"
	"github.com/room4-2/aasha/messages"
	"github.com/room4-2/aasha/metrics"
	"github.com/room4-2/aasha/session"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxClientFrame = 4 * 1024
	sendQueueSize  = 32

	defaultKeepAlive = 30 * time.Second
)

// Monitor streams call snapshots to dashboard clients over WebSocket.
type Monitor struct {
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config

	mu      sync.RWMutex
	clients map[*monitorClient]struct{}
}

type monitorClient struct {
	conn    *websocket.Conn
	addr    string
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64 // frames lost since the last slow-consumer notice

	mu    sync.Mutex
	phone string // only this number's calls when set
}

// NewMonitor creates the monitor and subscribes it to session updates.
func NewMonitor(cfg *config.Config, sessionManager *session.Manager) *Monitor {
	m := &Monitor{
		sessionManager: sessionManager,
		config:         cfg,
		clients:        make(map[*monitorClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4 * 1024,
			WriteBufferSize:   16 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
	sessionManager.OnUpdate(m.Broadcast)
	return m
}

func (m *Monitor) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Monitor WebSocket upgrade failed: %v", err)
		return
	}

	c := &monitorClient{
		conn: conn,
		addr: r.RemoteAddr,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
	metrics.MonitorClients.Inc()
	log.Printf("👀 Monitor connected from %s", r.RemoteAddr)

	m.sendTo(c, messages.NewStatusMessage("connected", "", m.sessionManager.GetActiveSessionCount()))

	go m.writePump(c)
	m.readPump(r.Context(), c)

	m.remove(c)
	log.Printf("👀 Monitor disconnected from %s", r.RemoteAddr)
}

// Broadcast sends a snapshot to every client watching its number. Clients that
// cannot keep up miss frames rather than slowing calls down, and are told how
// many they missed once their queue drains.
func (m *Monitor) Broadcast(snap session.Snapshot) {
	data, err := sonic.Marshal(messages.NewSnapshotMessage(snap))
	if err != nil {
		log.Printf("❌ Failed to encode monitor frame: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients {
		if !c.watches(snap.PhoneNumber) {
			continue
		}
		select {
		case c.send <- data:
		default:
			if c.dropped.Add(1) == 1 {
				log.Printf("⚠️ Monitor client %s is slow, dropping frames", c.addr)
			}
		}
	}
}

// Close disconnects every client.
func (m *Monitor) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients {
		c.close()
	}
}

func (m *Monitor) remove(c *monitorClient) {
	m.mu.Lock()
	_, ok := m.clients[c]
	delete(m.clients, c)
	m.mu.Unlock()
	if ok {
		metrics.MonitorClients.Dec()
	}
	c.close()
}

func (m *Monitor) sendTo(c *monitorClient, msg *messages.ServerMessage) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("❌ Failed to encode monitor frame: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (m *Monitor) readPump(ctx context.Context, c *monitorClient) {
	c.conn.SetReadLimit(maxClientFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * m.keepAlive()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * m.keepAlive()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Monitor read error: %v", err)
			}
			return
		}

		var msg messages.ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			m.sendTo(c, messages.NewErrorMessage(messages.ErrCodeInvalidMessage, "malformed JSON"))
			continue
		}

		switch msg.Type {
		case messages.TypeFilter:
			c.mu.Lock()
			c.phone = msg.Phone
			c.mu.Unlock()
			m.sendTo(c, messages.NewStatusMessage("filter_set", msg.Phone, m.sessionManager.GetActiveSessionCount()))
			// Bring the client up to date on the call it asked about.
			if msg.Phone != "" {
				if snap, ok := m.sessionManager.Snapshot(ctx, msg.Phone); ok {
					m.sendTo(c, messages.NewSnapshotMessage(snap))
				}
			}
		case messages.TypePing:
			m.sendTo(c, messages.NewStatusMessage("pong", "", m.sessionManager.GetActiveSessionCount()))
		default:
			m.sendTo(c, messages.NewErrorMessage(messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type))
		}
	}
}

func (m *Monitor) writePump(c *monitorClient) {
	ticker := time.NewTicker(m.keepAlive())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Monitor write error: %v", err)
				c.close()
				return
			}
			if notice := c.lagNotice(); notice != nil {
				if err := c.conn.WriteMessage(websocket.TextMessage, notice); err != nil {
					c.close()
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (m *Monitor) keepAlive() time.Duration {
	if m.config.KeepAlivePeriod <= 0 {
		return defaultKeepAlive
	}
	return m.config.KeepAlivePeriod
}

func (c *monitorClient) watches(phone string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phone == "" || c.phone == phone
}

// lagNotice returns a slow-consumer error frame if frames were dropped since the
// last notice, or nil.
func (c *monitorClient) lagNotice() []byte {
	n := c.dropped.Swap(0)
	if n == 0 {
		return nil
	}
	data, err := sonic.Marshal(messages.NewErrorMessage(messages.ErrCodeSlowConsumer,
		fmt.Sprintf("%d monitor frames dropped", n)))
	if err != nil {
		log.Printf("❌ Failed to encode monitor frame: %v", err)
		return nil
	}
	return data
}

func (c *monitorClient) close() {
	c.once.Do(func() { close(c.done) })
}
