// Package feed streams change events to websocket clients.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"execledger/internal/events"
	"execledger/internal/events/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 256
)

type message struct {
	sequence uint64
	data     []byte
}

type client struct {
	send chan message
	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Replayer returns retained events after a sequence number.
type Replayer interface {
	Since(after uint64) []events.Event
}

// Hub is a change-notifier listener that fans events out to websocket
// clients. A client whose buffer fills up is disconnected rather than
// allowed to slow the writer down.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	replay   Replayer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Hub)

// WithReplay lets clients resume with ?after=<sequence>.
func WithReplay(r Replayer) Option {
	return func(h *Hub) {
		h.replay = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// AllowOrigins returns an origin check admitting requests without an Origin
// header and those whose Origin is listed. "*" admits everything.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[normalizeOrigin(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[normalizeOrigin(origin)]
		return ok
	}
}

// normalizeOrigin lowercases the origin and drops trailing slashes.
func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnEvent implements events.Listener.
func (h *Hub) OnEvent(ctx context.Context, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode event for feed", "sequence", event.Sequence, "error", err)
		return
	}
	msg := message{sequence: event.Sequence, data: data}

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
		h.logger.WarnContext(ctx, "event feed client too slow, disconnecting")
		h.unregister(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams events until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "after must be an unsigned integer", http.StatusBadRequest)
			return
		}
		after = v
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{send: make(chan message, clientSendSize), done: make(chan struct{})}
	h.register(c)

	// Register before taking the replay snapshot so nothing falls between the
	// two; the writer skips live events already covered by the replay.
	var backlog []events.Event
	if h.replay != nil && after > 0 {
		backlog = h.replay.Since(after)
	}

	go h.readLoop(conn, c)
	h.writeLoop(conn, c, after, backlog)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetFeedClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.metrics.SetFeedClients(n)
}

func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	defer h.unregister(c)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client, after uint64, backlog []events.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(c)
		_ = conn.Close()
	}()

	last := after
	for _, e := range backlog {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if !h.write(conn, websocket.TextMessage, data) {
			return
		}
		last = e.Sequence
	}

	for {
		select {
		case <-c.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if msg.sequence <= last {
				continue
			}
			if !h.write(conn, websocket.TextMessage, msg.data) {
				return
			}
			last = msg.sequence
		case <-ticker.C:
			if !h.write(conn, websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, messageType int, data []byte) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data) == nil
}
