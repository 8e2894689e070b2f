// Package push fans new scans out to every connected station over websocket.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

// Message types.
const (
	TypeNewScan = "new_scan"
)

const (
	sendBuffer   = 256
	pingPeriod   = 54 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxReadBytes = 512
)

// Message is the envelope written on the socket.
type Message struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub keeps the set of connected stations. Run must be started before
// clients connect.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]bool

	upgrader websocket.Upgrader
	log      zerolog.Logger
	now      func() time.Time
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client, 10),
		unregister: make(chan *client, 10),
		broadcast:  make(chan []byte, 100),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// stations run on the shop floor LAN
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
		now: time.Now,
	}
}

// Run serves register/unregister/broadcast until ctx is done, then drops
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("push hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info().Msg("push hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Str("client", c.id).Int("clients", n).Msg("station connected")

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.log.Warn().Str("client", c.id).Msg("send buffer full, dropping station")
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.log.Info().Str("client", c.id).Int("clients", len(h.clients)).Msg("station disconnected")
}

// Publish implements scans.Publisher. It never blocks the caller; a full
// queue drops the event.
func (h *Hub) Publish(ctx context.Context, ev domain.NewScanEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("encoding push event")
		return
	}
	msg, err := json.Marshal(Message{
		Type:      TypeNewScan,
		Timestamp: h.now().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("encoding push envelope")
		return
	}

	select {
	case h.broadcast <- msg:
	case <-ctx.Done():
	default:
		h.log.Warn().Str("id", string(ev.ID)).Msg("push queue full, event dropped")
	}
}

// ClientCount returns the number of connected stations.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the station to the feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{
		id:   fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only keeps the read deadline alive; stations never send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("client", c.id).Msg("websocket read")
			}
			return
		}
	}
}

// writePump sends one frame per message.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
