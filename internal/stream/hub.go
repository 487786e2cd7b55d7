// Package stream pushes committed states to browser dashboards over
// WebSocket.
package stream

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/synchronizer"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sendBuffer = 256

// Message is one frame sent to clients.
type Message struct {
	Type  string               `json:"type"`
	Key   string               `json:"key"`
	State domain.ResolvedState `json:"state"`
}

const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans state changes out to connected clients. New clients receive the
// latest state of every key first.
type Hub struct {
	logger *zap.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}

	mu      sync.RWMutex
	latest  map[string]domain.ResolvedState
	clients map[*Client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, sendBuffer),
		done:       make(chan struct{}),
		latest:     make(map[string]domain.ResolvedState),
		clients:    make(map[*Client]struct{}),
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
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
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			for _, m := range h.snapshotLocked() {
				select {
				case c.send <- m:
				default:
				}
			}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			h.latest[m.Key] = m.State
			for c := range h.clients {
				select {
				case c.send <- m:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) snapshotLocked() []Message {
	keys := make([]string, 0, len(h.latest))
	for k := range h.latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Message, 0, len(keys))
	for _, k := range keys {
		out = append(out, Message{Type: MessageSnapshot, Key: k, State: h.latest[k]})
	}
	return out
}

// StateChanged implements synchronizer.Listener. A full broadcast buffer
// drops the update; the next tick carries a fresh state.
func (h *Hub) StateChanged(handle *synchronizer.Handle, prev, next domain.ResolvedState) {
	h.Publish(handle.Key(), next)
}

func (h *Hub) Publish(key domain.Key, state domain.ResolvedState) {
	select {
	case h.broadcast <- Message{Type: MessageUpdate, Key: key.String(), State: state}:
	default:
		h.logger.Warn("stream broadcast buffer full, dropping update", zap.String("key", key.String()))
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
