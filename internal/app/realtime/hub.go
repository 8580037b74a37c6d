package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"justchat/internal/pkg/logx"
)

// Options configures a Hub.
type Options struct {
	// Client holds the per-connection transport timings.
	Client ClientConfig

	// PresenceCoalesce is the presence broadcast window. Zero broadcasts on every change.
	PresenceCoalesce time.Duration

	// MaxConnections caps open connections per process. Zero means unlimited.
	MaxConnections int
}

// Hub wires the registry, router, presence, typing relay and lifecycle together
// and owns the websocket clients attached to it.
type Hub struct {
	registry  *Registry
	router    *Router
	presence  *Presence
	typing    *Typing
	writer    *DurableWriter
	lifecycle *Lifecycle

	opts Options

	// reserved counts connections admitted or attached, for the capacity check.
	reserved atomic.Int64

	// clients tracks attached clients so Shutdown can wait for their cleanup.
	clients sync.WaitGroup

	mu      sync.Mutex
	closing bool
	live    map[*Client]struct{}

	logger zerolog.Logger
}

// NewHub builds a Hub persisting presence changes to store.
func NewHub(store PresenceStore, opts Options) *Hub {
	if opts.Client.SendBuffer <= 0 {
		opts.Client = DefaultClientConfig()
	}

	registry := NewRegistry()
	router := NewRouter(registry)
	presence := NewPresence(registry, opts.PresenceCoalesce)
	writer := NewDurableWriter(store)

	return &Hub{
		registry:  registry,
		router:    router,
		presence:  presence,
		typing:    NewTyping(router),
		writer:    writer,
		lifecycle: NewLifecycle(registry, presence, writer),
		opts:      opts,
		live:      make(map[*Client]struct{}),
		logger:    logx.Component("hub"),
	}
}

// Registry returns the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Router returns the event router used by the message write path.
func (h *Hub) Router() *Router { return h.router }

// Services returns the background loops to run under a supervisor.
func (h *Hub) Services() []suture.Service {
	return []suture.Service{h.presence, h.writer}
}

// Reserve claims a connection slot before the handshake is upgraded. It returns
// false when the hub is shutting down or at MaxConnections. A successful Reserve
// must be followed by Attach or Release.
func (h *Hub) Reserve() bool {
	h.mu.Lock()
	closing := h.closing
	h.mu.Unlock()
	if closing {
		return false
	}

	n := h.reserved.Add(1)
	if h.opts.MaxConnections > 0 && n > int64(h.opts.MaxConnections) {
		h.reserved.Add(-1)
		return false
	}
	return true
}

// Release returns a slot taken by Reserve when the upgrade failed.
func (h *Hub) Release() {
	h.reserved.Add(-1)
}

// Attach registers an upgraded connection for userID and starts its pumps. It
// blocks until the connection is closed and deregistered.
func (h *Hub) Attach(conn *websocket.Conn, userID string) {
	client := newClient(h, conn, userID, h.opts.Client)

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		h.reserved.Add(-1)
		_ = conn.Close()
		return
	}
	h.live[client] = struct{}{}
	h.clients.Add(1)
	h.mu.Unlock()

	h.lifecycle.Connect(userID, client)

	go client.WritePump()
	client.ReadPump()
}

// disconnect is called once by each client's ReadPump on exit.
func (h *Hub) disconnect(c *Client) {
	h.lifecycle.Disconnect(c.userID, c.id)

	h.mu.Lock()
	if _, ok := h.live[c]; ok {
		delete(h.live, c)
		h.reserved.Add(-1)
		h.clients.Done()
	}
	h.mu.Unlock()
}

// DisconnectUser closes every attached connection of userID and returns how many
// were closed. Each one deregisters through its ReadPump as usual.
func (h *Hub) DisconnectUser(userID string) int {
	h.mu.Lock()
	var clients []*Client
	for c := range h.live {
		if c.userID == userID {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	if len(clients) > 0 {
		h.logger.Info().Str("user_id", userID).Int("clients", len(clients)).Msg("Closed user connections")
	}
	return len(clients)
}

// IsOnline reports whether userID has an open connection.
func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

// Stats returns the number of open connections and online users.
func (h *Hub) Stats() (connections, users int) {
	return h.registry.Counts()
}

// Shutdown refuses new connections, closes every attached client and waits until
// they have all deregistered or ctx expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.live))
	for c := range h.live {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.logger.Info().Int("clients", len(clients)).Msg("Closing realtime connections...")

	for _, c := range clients {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.clients.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("Hub shutdown complete.")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Msg("Hub shutdown timed out waiting for clients.")
		return ctx.Err()
	}
}
