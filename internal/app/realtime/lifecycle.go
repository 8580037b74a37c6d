package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"justchat/internal/pkg/logx"
)

// Lifecycle registers admitted connections and tears them down on close.
type Lifecycle struct {
	// mu orders registry transitions with their durable writes, so the last
	// queued write for a user always matches the registry.
	mu sync.Mutex

	registry *Registry
	presence *Presence
	writer   *DurableWriter
	now      func() time.Time
	logger   zerolog.Logger
}

// NewLifecycle wires the registry, presence broadcaster and durable writer.
func NewLifecycle(registry *Registry, presence *Presence, writer *DurableWriter) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		presence: presence,
		writer:   writer,
		now:      time.Now,
		logger:   logx.Component("lifecycle"),
	}
}

// Connect registers conn for userID and triggers a presence broadcast. The first
// connection of a user also queues a durable online write.
func (l *Lifecycle) Connect(userID string, conn Sink) {
	l.mu.Lock()
	first := l.registry.Register(userID, conn)
	if first {
		l.writer.Online(userID)
	}
	l.mu.Unlock()

	l.logger.Debug().
		Str("user_id", userID).
		Str("conn_id", conn.ID()).
		Bool("first", first).
		Msg("Connection registered")

	l.presence.Notify()
}

// Disconnect deregisters connID. When it was the user's last connection a
// durable offline write is queued with the current time as last seen. A presence
// broadcast follows every removal. It reports whether anything was removed.
func (l *Lifecycle) Disconnect(userID, connID string) bool {
	l.mu.Lock()
	removed, last := l.registry.Deregister(userID, connID)
	if removed && last {
		l.writer.Offline(userID, l.now())
	}
	l.mu.Unlock()

	if !removed {
		return false
	}

	l.logger.Debug().
		Str("user_id", userID).
		Str("conn_id", connID).
		Bool("last", last).
		Msg("Connection deregistered")

	l.presence.Notify()
	return true
}
