// Package realtime pushes alert state, prices, and notification events to
// websocket clients.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/notify/local"
	"github.com/linnemanlabs/coinwatch/internal/pricefeed"
)

// Message types sent to clients.
const (
	TypeState        = "state"
	TypePrices       = "prices"
	TypeNotification = "notification"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is the websocket envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub tracks connected clients and fans out messages to them. A client that
// cannot keep up is disconnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	logger   log.Logger
	initial  func() []Message
}

// NewHub creates a hub. initial, if non-nil, supplies the messages written to
// each client right after it connects.
func NewHub(logger log.Logger, initial func() []Message) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		initial: initial,
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	if h.initial != nil {
		for _, m := range h.initial() {
			select {
			case c.send <- m:
			default:
			}
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast queues m for every client.
func (h *Hub) Broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			h.removeLocked(c)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked must be called with h.mu held. Closing send stops the write
// pump, which closes the connection and unblocks the read pump.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Forward relays store snapshots and notification center events to the hub
// until ctx is done or both channels close. Either channel may be nil.
func (h *Hub) Forward(ctx context.Context, states <-chan alerts.State, events <-chan local.Event) {
	for states != nil || events != nil {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			h.Broadcast(StateMessage(st))
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.Broadcast(Message{Type: TypeNotification, Data: ev})
		}
	}
}

// StateMessage wraps an alert state snapshot.
func StateMessage(st alerts.State) Message {
	return Message{Type: TypeState, Data: st}
}

// PricesMessage wraps a price snapshot.
func PricesMessage(s pricefeed.Snapshot) Message {
	return Message{Type: TypePrices, Data: s}
}
