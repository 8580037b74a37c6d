package realtime

import (
	"bytes"
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"justchat/internal/metrics"
)

func TestBroadcastReachesEveryConnection(t *testing.T) {
	reg := NewRegistry()
	p := NewPresence(reg, 0)

	a := newSink("alice", "a1")
	reg.Register("alice", a)

	if n := p.Broadcast(); n != 1 {
		t.Fatalf("reached = %d, want 1", n)
	}
	if got := presenceOf(t, a.Events(t)[0]); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("snapshot = %v, want [alice]", got)
	}

	b := newSink("bob", "b1")
	reg.Register("bob", b)
	p.Broadcast()

	for _, s := range []*fakeSink{a, b} {
		events := s.Events(t)
		last := presenceOf(t, events[len(events)-1])
		if !reflect.DeepEqual(last, []string{"alice", "bob"}) {
			t.Errorf("%s last snapshot = %v", s.id, last)
		}
	}

	if got := testutil.ToFloat64(metrics.OnlineUsers); got != 2 {
		t.Errorf("online users gauge = %v, want 2", got)
	}
}

func TestBroadcastTwiceIsIdentical(t *testing.T) {
	reg := NewRegistry()
	p := NewPresence(reg, 0)

	a := newSink("alice", "a1")
	reg.Register("alice", a)
	reg.Register("bob", newSink("bob", "b1"))
	reg.Register("bob", newSink("bob", "b2"))

	p.Broadcast()
	p.Broadcast()

	frames := a.Frames()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], frames[1]) {
		t.Errorf("snapshots differ:\n%s\n%s", frames[0], frames[1])
	}
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	p := NewPresence(NewRegistry(), 0)
	if n := p.Broadcast(); n != 0 {
		t.Errorf("reached = %d, want 0", n)
	}
}

func TestNotifyCoalescesBursts(t *testing.T) {
	reg := NewRegistry()
	p := NewPresence(reg, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Serve(ctx) }()

	watcher := newSink("watcher", "w1")
	reg.Register("watcher", watcher)

	for i := 0; i < 10; i++ {
		user := string(rune('a' + i))
		reg.Register(user, newSink(user, "c-"+user))
		p.Notify()
	}

	waitFor(t, "a presence broadcast", func() bool { return len(watcher.Frames()) > 0 })
	time.Sleep(60 * time.Millisecond)

	events := watcher.Events(t)
	if len(events) > 2 {
		t.Errorf("burst of 10 changes produced %d broadcasts", len(events))
	}
	last := presenceOf(t, events[len(events)-1])
	if len(last) != 11 {
		t.Errorf("last snapshot has %d users, want 11", len(last))
	}

	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
}
