package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.CollectAndCount(HTTPDuration)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages/abc", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := testutil.CollectAndCount(HTTPDuration); got != before+1 {
		t.Errorf("series count = %d, want %d", got, before+1)
	}

	body := scrape(t)
	if !strings.Contains(body, `route="/api/messages/{id}"`) || !strings.Contains(body, `status="418"`) {
		t.Errorf("histogram series missing from scrape output")
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ActiveConnections.Set(3)
	EventsRouted.WithLabelValues("newMessage").Add(2)

	if got := testutil.ToFloat64(ActiveConnections); got != 3 {
		t.Errorf("ActiveConnections = %v, want 3", got)
	}

	body := scrape(t)
	for _, name := range []string{"justchat_ws_connections", "justchat_events_routed_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("scrape output missing %s", name)
		}
	}
}

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}
