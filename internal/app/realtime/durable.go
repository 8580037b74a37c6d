package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"justchat/internal/metrics"
	"justchat/internal/pkg/logx"
)

// PresenceStore persists the online flag and last-seen time of a user.
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

const (
	durableQueueSize    = 1024
	durableWriteTimeout = 5 * time.Second
	durableDrainTimeout = 10 * time.Second
)

type durableJob struct {
	userID   string
	online   bool
	lastSeen time.Time
}

func (j durableJob) op() string {
	if j.online {
		return "online"
	}
	return "offline"
}

// DurableWriter applies presence changes to the PresenceStore on a single worker
// goroutine, in the order they were queued, so store latency never holds up
// registry mutations or presence broadcasts. Calls go through a circuit breaker;
// failures are logged and counted, never retried.
type DurableWriter struct {
	store   PresenceStore
	jobs    chan durableJob
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

// NewDurableWriter returns a writer for store. Serve must run for queued jobs to be applied.
func NewDurableWriter(store PresenceStore) *DurableWriter {
	logger := logx.Component("presence-writer")

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "presence-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Presence store circuit breaker changed state")
		},
	})

	return &DurableWriter{
		store:   store,
		jobs:    make(chan durableJob, durableQueueSize),
		breaker: breaker,
		logger:  logger,
	}
}

// Online queues a MarkOnline for userID.
func (w *DurableWriter) Online(userID string) {
	w.enqueue(durableJob{userID: userID, online: true})
}

// Offline queues a MarkOffline for userID with the given last-seen time.
func (w *DurableWriter) Offline(userID string, lastSeen time.Time) {
	w.enqueue(durableJob{userID: userID, lastSeen: lastSeen})
}

func (w *DurableWriter) enqueue(job durableJob) {
	select {
	case w.jobs <- job:
	default:
		metrics.DurableWrites.WithLabelValues(job.op(), "queue_full").Inc()
		w.logger.Error().
			Str("user_id", job.userID).
			Str("op", job.op()).
			Msg("Presence write queue full, dropping update")
	}
}

// Serve applies queued jobs until ctx is cancelled, then drains what is left.
func (w *DurableWriter) Serve(ctx context.Context) error {
	for {
		select {
		case job := <-w.jobs:
			w.apply(job)

		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		}
	}
}

// drain applies jobs still queued at shutdown until the queue is empty or the
// drain deadline passes.
func (w *DurableWriter) drain() {
	deadline := time.Now().Add(durableDrainTimeout)

	for time.Now().Before(deadline) {
		select {
		case job := <-w.jobs:
			w.apply(job)
		default:
			return
		}
	}

	w.logger.Warn().Int("pending", len(w.jobs)).Msg("Presence writer drain deadline passed, dropping updates")
}

// apply runs one job with its own timeout, detached from the service context so
// a write started during shutdown is not cut short.
func (w *DurableWriter) apply(job durableJob) {
	ctx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
	defer cancel()

	_, err := w.breaker.Execute(func() (struct{}, error) {
		if job.online {
			return struct{}{}, w.store.MarkOnline(ctx, job.userID)
		}
		return struct{}{}, w.store.MarkOffline(ctx, job.userID, job.lastSeen)
	})

	switch {
	case err == nil:
		metrics.DurableWrites.WithLabelValues(job.op(), "ok").Inc()

	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.DurableWrites.WithLabelValues(job.op(), "breaker_open").Inc()
		w.logger.Warn().Str("user_id", job.userID).Str("op", job.op()).Msg("Presence write skipped, store circuit open")

	default:
		metrics.DurableWrites.WithLabelValues(job.op(), "error").Inc()
		w.logger.Error().Err(err).Str("user_id", job.userID).Str("op", job.op()).Msg("Presence write failed")
	}
}

// String names the service for the supervisor.
func (w *DurableWriter) String() string {
	return "presence-writer"
}
