package realtime

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"justchat/internal/metrics"
)

type testMessage struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

func TestRouteMessageCreatedReachesBothParticipants(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	a1 := newSink("alice", "a1")
	a2 := newSink("alice", "a2")
	b1 := newSink("bob", "b1")
	c1 := newSink("carol", "c1")
	for _, s := range []*fakeSink{a1, a2, b1, c1} {
		reg.Register(s.userID, s)
	}

	msg := testMessage{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	if n := router.MessageCreated(msg, "alice", "bob"); n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}

	for _, s := range []*fakeSink{a1, a2, b1} {
		events := s.Events(t)
		if len(events) != 1 || events[0].Type != EventNewMessage {
			t.Fatalf("%s got %v, want one newMessage", s.id, events)
		}
		var got testMessage
		if err := json.Unmarshal(events[0].Payload, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got != msg {
			t.Errorf("%s payload = %+v, want %+v", s.id, got, msg)
		}
	}

	if len(c1.Frames()) != 0 {
		t.Errorf("bystander received %d frames", len(c1.Frames()))
	}
}

func TestRouteToOfflineUserDeliversNothing(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	before := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(EventMessageDeleted), "offline"))

	n, err := router.Route(MessageDeleted("m1"), "nobody")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}

	after := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(EventMessageDeleted), "offline"))
	if after != before+1 {
		t.Errorf("offline drops = %v, want %v", after, before+1)
	}
}

func TestRouteDeduplicatesTargets(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)
	a := newSink("alice", "a1")
	reg.Register("alice", a)

	if n := router.MessageDeleted("m1", "alice", "alice"); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if len(a.Frames()) != 1 {
		t.Errorf("frames = %d, want 1", len(a.Frames()))
	}
}

func TestRouteIsolatesFailingConnection(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	broken := newSink("bob", "b1")
	broken.err = ErrSendQueueFull
	healthy := newSink("bob", "b2")
	reg.Register("bob", broken)
	reg.Register("bob", healthy)

	before := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(EventMessageRead), "queue_full"))

	readAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if n := router.MessageRead("m1", readAt, "alice", "bob"); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	events := healthy.Events(t)
	if len(events) != 1 || events[0].Type != EventMessageRead {
		t.Fatalf("healthy connection got %v", events)
	}
	var payload MessageReadPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.MessageID != "m1" || !payload.ReadAt.Equal(readAt) {
		t.Errorf("payload = %+v", payload)
	}

	after := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(EventMessageRead), "queue_full"))
	if after != before+1 {
		t.Errorf("queue_full drops = %v, want %v", after, before+1)
	}
}

func TestRouteTypingTargetsReceiverOnly(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)
	a := newSink("alice", "a1")
	b := newSink("bob", "b1")
	reg.Register("alice", a)
	reg.Register("bob", b)

	if n := router.Typing("alice", "bob", true); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if len(a.Frames()) != 0 {
		t.Error("sender should not receive its own typing event")
	}

	events := b.Events(t)
	if len(events) != 1 || events[0].Type != EventUserTyping {
		t.Fatalf("receiver got %v", events)
	}
	var payload UserTypingPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload != (UserTypingPayload{SenderID: "alice", IsTyping: true}) {
		t.Errorf("payload = %+v", payload)
	}
}

func TestRouteEncodeFailure(t *testing.T) {
	router := NewRouter(NewRegistry())

	if _, err := router.Route(MessageCreated(make(chan int)), "alice"); err == nil {
		t.Error("expected an encoding error")
	}
}
