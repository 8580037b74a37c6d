package realtime

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"justchat/internal/metrics"
	"justchat/internal/pkg/logx"
)

// Router resolves target users to their open connections and queues events on them.
// Delivery is best effort: offline users and refusing connections are skipped.
type Router struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewRouter returns a Router reading from registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		logger:   logx.Component("router"),
	}
}

// Route queues ev on every connection of every target user and returns the number
// of connections that accepted it. Duplicate targets are delivered once.
// The only error is a failure to encode ev.
func (r *Router) Route(ev Event, targets ...string) (int, error) {
	payload, err := ev.Encode()
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to encode event")
		return 0, err
	}

	sinks := r.registry.sinksFor(targets...)
	if len(sinks) == 0 {
		metrics.EventsDropped.WithLabelValues(string(ev.Type), "offline").Inc()
		return 0, nil
	}

	delivered := deliver(sinks, payload, string(ev.Type), r.logger)
	return delivered, nil
}

// deliver pushes payload to every sink independently and counts successes.
func deliver(sinks []Sink, payload []byte, eventType string, logger zerolog.Logger) int {
	delivered := 0
	for _, s := range sinks {
		if err := s.Send(payload); err != nil {
			reason := "closed"
			if errors.Is(err, ErrSendQueueFull) {
				reason = "queue_full"
			}
			metrics.EventsDropped.WithLabelValues(eventType, reason).Inc()
			logger.Debug().Err(err).
				Str("conn_id", s.ID()).
				Str("user_id", s.UserID()).
				Str("event_type", eventType).
				Msg("Connection refused event")
			continue
		}
		delivered++
	}

	metrics.EventsRouted.WithLabelValues(eventType).Add(float64(delivered))
	return delivered
}

// MessageCreated pushes a stored message to both participants.
func (r *Router) MessageCreated(msg any, senderID, receiverID string) int {
	n, _ := r.Route(MessageCreated(msg), senderID, receiverID)
	return n
}

// MessageDeleted pushes a deletion to both participants.
func (r *Router) MessageDeleted(messageID, senderID, receiverID string) int {
	n, _ := r.Route(MessageDeleted(messageID), senderID, receiverID)
	return n
}

// MessageRead pushes a read receipt to both participants.
func (r *Router) MessageRead(messageID string, readAt time.Time, senderID, receiverID string) int {
	n, _ := r.Route(MessageRead(messageID, readAt), senderID, receiverID)
	return n
}

// Typing pushes a typing change to the receiver only.
func (r *Router) Typing(senderID, receiverID string, typing bool) int {
	n, _ := r.Route(UserTyping(senderID, typing), receiverID)
	return n
}
