package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"carlot/internal/middleware"
	"carlot/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const defaultMaxConns = 10000

// ErrHubFull is returned by Register when the connection limit is reached.
var ErrHubFull = errors.New("car feed connection limit reached")

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("car feed is shutting down")

// Hub fans car events out to every connected feed client.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int
	closed   bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		maxConns: defaultMaxConns,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= h.maxConns {
		return nil, ErrHubFull
	}

	client := newClient(h, conn, userID)
	h.clients[client] = struct{}{}
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WebSocketConnections.Dec()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected client.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.clients {
		c.TrySend(data)
	}
}

// StartWiring connects the Notifier to this hub. Without Redis the notifier
// delivers locally.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	n.SetLocalSink(h.BroadcastAll)
	return n.StartCarEventSubscriber(ctx, h.BroadcastAll)
}

// Shutdown closes every send channel and rejects new clients. Each client's
// WritePump then sends a going-away close frame and closes its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for client := range h.clients {
		client.closeCode = websocket.CloseGoingAway
		close(client.Send)
		observability.WebSocketConnections.Dec()
	}
	middleware.Logger.Info("car feed closed", slog.Int("clients", len(h.clients)))
	h.clients = make(map[*Client]struct{})
	return nil
}
