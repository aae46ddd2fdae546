package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshon/tunebooth/internal/music/player"
)

func TestJoinPermissionDenied(t *testing.T) {
	e := newEnv(t)
	e.transport.deny = true
	s, _ := e.registry.Create("g1", "voice-1")

	err := s.JoinVoiceChannel(context.Background(), "voice-1", "text-1")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("JoinVoiceChannel() = %v, want ErrPermissionDenied", err)
	}
	if e.transport.joins != 0 {
		t.Errorf("transport join attempted %d times", e.transport.joins)
	}
	if s.State() != Disconnected {
		t.Errorf("state = %v, want disconnected", s.State())
	}
}

func TestJoinFailureReturnsToDisconnected(t *testing.T) {
	e := newEnv(t)
	e.transport.joinErr = errors.New("voice handshake timed out")
	s, _ := e.registry.Create("g1", "voice-1")

	if err := s.JoinVoiceChannel(context.Background(), "voice-1", ""); err == nil {
		t.Fatal("expected join error")
	}
	if s.State() != Disconnected || s.IsConnected() {
		t.Errorf("state = %v, want disconnected", s.State())
	}
}

func TestJoinTracksReportedChannel(t *testing.T) {
	e := newEnv(t)
	e.transport.moveTo = "voice-moved"
	s := e.joined(t, "g1")

	if !s.IsReady() || !s.IsConnected() {
		t.Fatalf("state = %v, want ready", s.State())
	}
	if got := s.VoiceChannel(); got != "voice-moved" {
		t.Errorf("VoiceChannel() = %q, want voice-moved", got)
	}

	e.transport.conn(t).emit(Signal{Kind: SignalReady, ChannelID: "voice-2"})
	settle(t, s)
	if got := s.VoiceChannel(); got != "voice-2" {
		t.Errorf("VoiceChannel() after move = %q, want voice-2", got)
	}
}

func TestJoinWhenReadyIsNoop(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")

	for _, ch := range []string{"voice-1", "voice-other"} {
		if err := s.JoinVoiceChannel(context.Background(), ch, ""); err != nil {
			t.Fatalf("JoinVoiceChannel(%q) = %v", ch, err)
		}
	}
	if e.transport.joins != 1 {
		t.Errorf("joins = %d, want 1", e.transport.joins)
	}
	if got := s.VoiceChannel(); got != "voice-1" {
		t.Errorf("VoiceChannel() = %q, want voice-1", got)
	}
}

func TestConfirmedDisconnectEmitsOnce(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")
	disconnects := 0
	s.OnDisconnect(func(ev DisconnectEvent) {
		if ev.Session == s {
			disconnects++
		}
	})

	e.transport.conn(t).emit(Signal{Kind: SignalDisconnected})
	settle(t, s)
	if s.State() != PendingDisconnectConfirmation {
		t.Fatalf("state = %v, want pending", s.State())
	}
	if got := e.clock.delays[0]; got != DefaultGrace {
		t.Errorf("grace = %v, want %v", got, DefaultGrace)
	}

	e.clock.fire(t, false)
	settle(t, s)
	if s.State() != Disconnected {
		t.Fatalf("state = %v, want disconnected", s.State())
	}
	if !e.registry.Exists("g1") {
		t.Error("session must not remove itself on disconnect")
	}

	// a late duplicate fire changes nothing
	e.clock.fire(t, true)
	settle(t, s)

	drainEvents(t, s)
	if disconnects != 1 {
		t.Errorf("disconnect events = %d, want 1", disconnects)
	}
}

func TestReadyCancelsPendingDisconnect(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")
	disconnects := 0
	s.OnDisconnect(func(DisconnectEvent) { disconnects++ })
	conn := e.transport.conn(t)

	conn.emit(Signal{Kind: SignalDisconnected})
	conn.emit(Signal{Kind: SignalReady, ChannelID: "voice-1"})
	settle(t, s)
	if s.State() != Ready {
		t.Fatalf("state = %v, want ready", s.State())
	}
	if !e.clock.timers[0].stopped {
		t.Error("grace timer not cancelled")
	}

	// the timer raced the ready signal and fired anyway
	e.clock.fire(t, true)
	settle(t, s)
	if s.State() != Ready {
		t.Errorf("state = %v after stale fire, want ready", s.State())
	}

	drainEvents(t, s)
	if disconnects != 0 {
		t.Errorf("disconnect events = %d, want 0", disconnects)
	}
}

func TestStillBoundReturnsToReady(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")
	disconnects := 0
	s.OnDisconnect(func(DisconnectEvent) { disconnects++ })

	e.transport.boundTo = "voice-3"
	e.transport.conn(t).emit(Signal{Kind: SignalDisconnected})
	settle(t, s)
	e.clock.fire(t, false)
	settle(t, s)

	if s.State() != Ready || s.VoiceChannel() != "voice-3" {
		t.Errorf("state = %v channel = %q, want ready on voice-3", s.State(), s.VoiceChannel())
	}
	drainEvents(t, s)
	if disconnects != 0 {
		t.Errorf("disconnect events = %d, want 0", disconnects)
	}
}

func TestDestroyCancelsGraceTimer(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")
	disconnects := 0
	s.OnDisconnect(func(DisconnectEvent) { disconnects++ })

	e.transport.conn(t).emit(Signal{Kind: SignalDisconnected})
	settle(t, s)
	e.registry.Destroy("g1")

	if !e.clock.timers[0].stopped {
		t.Error("destroy left the grace timer armed")
	}
	e.clock.fire(t, true)

	<-s.events.done
	if disconnects != 0 {
		t.Errorf("disconnect events = %d, want 0", disconnects)
	}
}

func TestRejoinAfterConfirmedDisconnect(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")
	_ = s.AddTrack(context.Background(), tr("a"))
	first := e.transport.conn(t)

	first.emit(Signal{Kind: SignalDisconnected})
	settle(t, s)
	e.clock.fire(t, false)
	settle(t, s)

	if err := s.JoinVoiceChannel(context.Background(), "voice-1", "text-1"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if _, disconnects := first.counts(); disconnects != 1 {
		t.Errorf("old connection disconnected %d times, want 1", disconnects)
	}
	if np, ok := s.NowPlaying(); !ok || np.ID != "a" {
		t.Errorf("NowPlaying() after rejoin = %q, %v", np.ID, ok)
	}

	// signals from the old connection are ignored
	first.emit(Signal{Kind: SignalDisconnected})
	settle(t, s)
	if s.State() != Ready {
		t.Errorf("state = %v, want ready", s.State())
	}
}

func TestDisconnectedSessionHoldsQueue(t *testing.T) {
	e := newEnv(t)
	s := e.joined(t, "g1")
	conn := e.transport.conn(t)

	conn.emit(Signal{Kind: SignalDisconnected})
	settle(t, s)
	e.clock.fire(t, false)
	settle(t, s)
	if s.State() != Disconnected {
		t.Fatalf("state = %v, want disconnected", s.State())
	}

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.AddTrack(ctx, tr(id)); err != nil {
			t.Fatalf("AddTrack(%s) error = %v", id, err)
		}
	}
	if err := s.Skip(ctx); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if got := s.PlaybackState(); got != player.Idle {
		t.Errorf("playback = %v, want idle while disconnected", got)
	}
	if n := len(e.opener.opened()); n != 0 {
		t.Errorf("streams opened while disconnected = %d, want 0", n)
	}
	if q := s.Queue(); len(q) != 1 || q[0].ID != "b" {
		t.Errorf("queue = %v, want [b]", q)
	}

	conn.emit(Signal{Kind: SignalReady, ChannelID: "voice-1"})
	settle(t, s)
	if s.State() != Ready {
		t.Fatalf("state = %v, want ready", s.State())
	}
	if np, ok := s.NowPlaying(); !ok || np.ID != "b" {
		t.Errorf("NowPlaying() after ready = %q, %v", np.ID, ok)
	}
	if n := len(e.opener.opened()); n != 1 {
		t.Errorf("streams opened after ready = %d, want 1", n)
	}
}

func TestRealTimerConfirmsDisconnect(t *testing.T) {
	tp := &fakeTransport{}
	reg := NewRegistry(Config{Transport: tp, Opener: &fakeOpener{}, Grace: 20 * time.Millisecond})
	t.Cleanup(reg.Shutdown)

	s, _ := reg.Create("g1", "voice-1")
	if err := s.JoinVoiceChannel(context.Background(), "voice-1", ""); err != nil {
		t.Fatal(err)
	}
	got := make(chan DisconnectEvent, 2)
	s.OnDisconnect(func(ev DisconnectEvent) { got <- ev })

	tp.conn(t).emit(Signal{Kind: SignalDisconnected})
	recv(t, got)
	if s.State() != Disconnected {
		t.Errorf("state = %v, want disconnected", s.State())
	}
}
