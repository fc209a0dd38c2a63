package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phistack/phistack/pkg/tracker"
	"github.com/phistack/phistack/server/internal/api"
	"github.com/phistack/phistack/server/internal/store"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxClientMessage bounds the size of a client request frame.
	maxClientMessage = 512
)

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventRun      = "run"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// CORS is applied at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// request is a client-to-server frame. The only action is "snapshot", which
// asks for an immediate snapshot outside the ticker.
type request struct {
	Action string `json:"action"`
}

// Hub tracks connected dashboards. It pushes the store snapshot on every
// tick and each newly published run as soon as it completes.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts the snapshot every interval until ctx is cancelled, then
// closes all clients.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if data, err := h.snapshot(); err == nil {
				h.fanOut(data)
			}
		}
	}
}

// Publish pushes a completed run to every client. Records are omitted; the
// dashboard fetches them from /api/v1/runs/{id} on demand.
func (h *Hub) Publish(run *tracker.Run) {
	if run == nil {
		return
	}
	data, err := encode(EventRun, api.NewRunResponse(run, false))
	if err != nil {
		slog.Error("ws: encode run", "run", run.ID, "err", err)
		return
	}
	h.fanOut(data)
}

// ServeHTTP upgrades the connection, sends the current snapshot and then
// streams updates until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufSize)}
	h.register(c)
	defer h.unregister(c)

	if data, err := h.snapshot(); err == nil {
		c.offer(data)
	}

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: data})
}

func (h *Hub) snapshot() ([]byte, error) {
	return encode(EventSnapshot, api.BuildSnapshot(h.store))
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("ws: client connected", "remote", c.conn.RemoteAddr().String())
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// fanOut queues data on every client. Clients whose buffer is full are
// dropped rather than allowed to stall the broadcaster.
func (h *Hub) fanOut(data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.offer(data) {
			slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
			h.unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// offer queues data without blocking and reports whether it fit. The hub
// lock is held so a concurrent unregister cannot close send underneath us.
func (c *client) offer(data []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writePump forwards queued messages and keepalive pings to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles pongs and client requests until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxClientMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if json.Unmarshal(raw, &req) != nil || req.Action != "snapshot" {
			continue
		}
		if data, err := c.hub.snapshot(); err == nil {
			c.offer(data)
		}
	}
}
