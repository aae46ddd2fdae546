package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/keshon/tunebooth/internal/music/stream"
)

type fakeConn struct {
	channel string
	finish  chan error

	mu          sync.Mutex
	handler     func(Signal)
	removed     int
	disconnects int
}

func (c *fakeConn) ChannelID() string { return c.channel }

func (c *fakeConn) OnSignal(fn func(Signal)) func() {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.handler = nil
		c.removed++
		c.mu.Unlock()
	}
}

func (c *fakeConn) emit(sig Signal) {
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	if fn != nil {
		fn(sig)
	}
}

func (c *fakeConn) Stream(ctx context.Context, pcm io.Reader, gate *stream.Gate) error {
	select {
	case err := <-c.finish:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return nil
}

func (c *fakeConn) counts() (removed, disconnects int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed, c.disconnects
}

type fakeTransport struct {
	mu      sync.Mutex
	deny    bool
	joinErr error
	boundTo string
	moveTo  string
	joins   int
	conns   []*fakeConn
}

func (f *fakeTransport) CanJoin(guildID, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.deny, nil
}

func (f *fakeTransport) Join(ctx context.Context, guildID, channelID string) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	ch := channelID
	if f.moveTo != "" {
		ch = f.moveTo
	}
	c := &fakeConn{channel: ch, finish: make(chan error)}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTransport) Bound(guildID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boundTo, f.boundTo != ""
}

func (f *fakeTransport) conn(t *testing.T) *fakeConn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		t.Fatal("no connection joined")
	}
	return f.conns[len(f.conns)-1]
}

type fakeStream struct {
	io.Reader
	mu     sync.Mutex
	closes int
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	fail    map[string]error
	streams []*fakeStream
}

func (o *fakeOpener) Open(ctx context.Context, track sources.Track) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[track.ID]; err != nil {
		return nil, err
	}
	s := &fakeStream{Reader: strings.NewReader(track.ID)}
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *fakeOpener) opened() []*fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeStream(nil), o.streams...)
}

type manualTimer struct {
	clock   *manualClock
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// manualClock hands out timers that only fire when the test says so.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
	delays []time.Duration
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

// fire runs the latest timer as if it elapsed, even if it was stopped
// too late to prevent that.
func (c *manualClock) fire(t *testing.T, force bool) {
	t.Helper()
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		t.Fatal("no timer armed")
	}
	tm := c.timers[len(c.timers)-1]
	stopped := tm.stopped
	c.mu.Unlock()
	if stopped && !force {
		return
	}
	tm.f()
}

type env struct {
	transport *fakeTransport
	opener    *fakeOpener
	clock     *manualClock
	registry  *Registry
}

func newEnv(t *testing.T) *env {
	e := &env{
		transport: &fakeTransport{},
		opener:    &fakeOpener{fail: map[string]error{}},
		clock:     &manualClock{},
	}
	e.registry = NewRegistry(Config{
		Transport: e.transport,
		Opener:    e.opener,
		AfterFunc: e.clock.AfterFunc,
	})
	t.Cleanup(e.registry.Shutdown)
	return e
}

func (e *env) joined(t *testing.T, guildID string) *Session {
	t.Helper()
	s, err := e.registry.Create(guildID, "voice-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.JoinVoiceChannel(context.Background(), "voice-1", "text-1"); err != nil {
		t.Fatalf("JoinVoiceChannel() error = %v", err)
	}
	return s
}

// settle waits until everything already queued on the session has run.
func settle(t *testing.T, s *Session) {
	t.Helper()
	if err := s.do(context.Background(), func() error { return nil }); err != nil && !errors.Is(err, ErrSessionDestroyed) {
		t.Fatalf("settle: %v", err)
	}
}

// drainEvents destroys s and waits for every queued event to be delivered.
func drainEvents(t *testing.T, s *Session) {
	t.Helper()
	s.Destroy()
	select {
	case <-s.events.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event bus did not drain")
	}
}

func recv[E any](t *testing.T, ch <-chan E) E {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero E
	return zero
}

func tr(id string) sources.Track { return sources.Track{ID: id, Title: "title " + id} }

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
