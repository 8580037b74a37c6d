// Package metrics provides Prometheus instrumentation for the JustChat server.
// It exposes gauges for live connections and online users, counters for
// realtime event routing and durable presence writes, and an HTTP latency
// histogram.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks the number of registered realtime connections.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "justchat_ws_connections",
		Help: "Current number of registered realtime connections",
	})

	// OnlineUsers tracks the number of users with at least one connection.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "justchat_online_users",
		Help: "Current number of users with at least one open connection",
	})

	// HandshakesTotal counts realtime handshakes by outcome.
	HandshakesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "justchat_ws_handshakes_total",
		Help: "Realtime handshakes by result",
	}, []string{"result"}) // result = "accepted", "unauthenticated", "invalid_credential", "capacity", "origin", "upgrade_failed"

	// EventsRouted counts per-connection deliveries queued by the event router.
	EventsRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "justchat_events_routed_total",
		Help: "Events queued on a connection, by event type",
	}, []string{"type"})

	// EventsDropped counts events that reached no connection or were refused by one.
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "justchat_events_dropped_total",
		Help: "Events not queued, by event type and reason",
	}, []string{"type", "reason"}) // reason = "offline", "queue_full", "closed"

	// PresenceBroadcasts counts presence snapshots pushed to all connections.
	PresenceBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "justchat_presence_broadcasts_total",
		Help: "Presence snapshots broadcast to every connection",
	})

	// DurableWrites counts durable presence writes by operation and result.
	DurableWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "justchat_presence_writes_total",
		Help: "Durable presence writes by operation and result",
	}, []string{"op", "result"}) // op = "online", "offline"; result = "ok", "error", "breaker_open", "queue_full"

	// HTTPDuration records REST request latency.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "justchat_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		ActiveConnections,
		OnlineUsers,
		HandshakesTotal,
		EventsRouted,
		EventsDropped,
		PresenceBroadcasts,
		DurableWrites,
		HTTPDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records HTTPDuration for every request, labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(started).Seconds())
	})
}
