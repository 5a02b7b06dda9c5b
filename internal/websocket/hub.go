// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 8
)

// Event is pushed to an app shell waiting on a handoff. Delivery is
// best-effort: the poller and deep-link paths remain the source of truth,
// the socket only saves the app a lookup round-trip.
type Event struct {
	Type       string `json:"type"` // handoff_complete
	DeviceID   string `json:"device_id"`
	IdentityID int64  `json:"identity_id,omitempty"`
}

// Client wraps one device socket. The write pump is the connection's only
// writer; everything else hands events to the send channel.
type Client struct {
	hub      *Hub
	deviceID string
	conn     *websocket.Conn
	send     chan Event
	ctx      context.Context
	cancel   context.CancelFunc
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.hub.logger.Debug("ws write failed, dropping socket",
					zap.String("device_id", c.deviceID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks open device sockets. Keyed by device ID because handoff events
// fire before the client is authenticated.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]bool),
		logger:  logger,
	}
}

// Register adds a device socket and starts its write pump.
func (h *Hub) Register(deviceID string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:      h,
		deviceID: deviceID,
		conn:     conn,
		send:     make(chan Event, sendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	h.mu.Lock()
	if h.clients[deviceID] == nil {
		h.clients[deviceID] = make(map[*Client]bool)
	}
	h.clients[deviceID][c] = true
	h.mu.Unlock()

	go c.writePump()
	return c
}

// Unregister removes a device socket, stops its pump and closes the
// connection. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.deviceID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, c.deviceID)
		}
	}
	h.mu.Unlock()

	c.cancel()
	c.conn.Close()
}

// Publish queues an event for every socket a device holds open. The send is
// non-blocking: a client whose buffer is full, or that is mid-teardown,
// misses the event and falls back to the lookup path.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, 2)
	for c := range h.clients[event.DeviceID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- event:
		default:
			h.logger.Debug("ws send buffer full, dropping event",
				zap.String("device_id", event.DeviceID),
			)
		}
	}
}

// ConnectedDevices reports how many devices hold open sockets.
func (h *Hub) ConnectedDevices() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
