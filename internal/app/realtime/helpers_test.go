package realtime

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"justchat/internal/pkg/logx"
)

func init() {
	logx.InitGlobalLogger(logx.Options{Writer: io.Discard})
}

// fakeSink records every frame it is sent.
type fakeSink struct {
	id     string
	userID string

	mu     sync.Mutex
	frames [][]byte
	err    error
}

func newSink(userID, id string) *fakeSink {
	return &fakeSink{id: id, userID: userID}
}

func (s *fakeSink) ID() string     { return s.id }
func (s *fakeSink) UserID() string { return s.userID }

func (s *fakeSink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, msg)
	return nil
}

func (s *fakeSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSink) Events(t *testing.T) []decodedEvent {
	t.Helper()
	var out []decodedEvent
	for _, f := range s.Frames() {
		out = append(out, decode(t, f))
	}
	return out
}

type decodedEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func decode(t *testing.T, frame []byte) decodedEvent {
	t.Helper()
	var ev decodedEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		t.Fatalf("decode frame %s: %v", frame, err)
	}
	return ev
}

func presenceOf(t *testing.T, ev decodedEvent) []string {
	t.Helper()
	if ev.Type != EventPresenceSnapshot {
		t.Fatalf("event type = %s, want %s", ev.Type, EventPresenceSnapshot)
	}
	var ids []string
	if err := json.Unmarshal(ev.Payload, &ids); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	return ids
}

type presenceCall struct {
	userID   string
	online   bool
	lastSeen time.Time
}

// fakeStore records presence writes and can be told to fail.
type fakeStore struct {
	mu    sync.Mutex
	calls []presenceCall
	err   error
	wrote chan presenceCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{wrote: make(chan presenceCall, 64)}
}

func (f *fakeStore) MarkOnline(ctx context.Context, userID string) error {
	return f.record(presenceCall{userID: userID, online: true})
}

func (f *fakeStore) MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return f.record(presenceCall{userID: userID, lastSeen: lastSeen})
}

func (f *fakeStore) record(c presenceCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	err := f.err
	f.mu.Unlock()
	select {
	case f.wrote <- c:
	default:
	}
	return err
}

func (f *fakeStore) Calls() []presenceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]presenceCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// waitFor fails the test if cond does not hold within two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
