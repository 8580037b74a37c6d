package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"justchat/internal/metrics"
	"justchat/internal/pkg/logx"
)

// Presence broadcasts the online-user list to every open connection.
//
// With a positive coalesce window, Notify only marks the snapshot dirty and the
// Serve loop broadcasts at most once per window, always reading the latest
// registry state. With a zero window Notify broadcasts synchronously.
type Presence struct {
	registry *Registry
	coalesce time.Duration
	dirty    chan struct{}
	logger   zerolog.Logger
}

// NewPresence returns a Presence over registry.
func NewPresence(registry *Registry, coalesce time.Duration) *Presence {
	return &Presence{
		registry: registry,
		coalesce: coalesce,
		dirty:    make(chan struct{}, 1),
		logger:   logx.Component("presence"),
	}
}

// Broadcast sends the current snapshot to every connection and returns how many
// connections accepted it.
func (p *Presence) Broadcast() int {
	online, sinks := p.registry.snapshot()

	metrics.ActiveConnections.Set(float64(len(sinks)))
	metrics.OnlineUsers.Set(float64(len(online)))

	ev := PresenceSnapshot(online)
	payload, err := ev.Encode()
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to encode presence snapshot")
		return 0
	}

	metrics.PresenceBroadcasts.Inc()
	return deliver(sinks, payload, string(ev.Type), p.logger)
}

// Notify records that the registry changed.
func (p *Presence) Notify() {
	if p.coalesce <= 0 {
		p.Broadcast()
		return
	}

	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

// Serve runs the coalescing broadcast loop until ctx is cancelled.
func (p *Presence) Serve(ctx context.Context) error {
	p.logger.Info().Dur("coalesce", p.coalesce).Msg("Presence loop started.")
	defer p.logger.Info().Msg("Presence loop stopped.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-p.dirty:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.coalesce):
			}

			// Signals that arrived during the window are covered by this snapshot.
			select {
			case <-p.dirty:
			default:
			}

			p.Broadcast()
		}
	}
}

// String names the service for the supervisor.
func (p *Presence) String() string {
	return "presence-broadcaster"
}
