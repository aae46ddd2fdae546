package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/music/player"
	"github.com/keshon/tunebooth/internal/music/sources"
)

var log = logrus.WithField("component", "session")

const DefaultGrace = 2 * time.Second

// Session is the playback state of one guild. Every mutation runs on the
// session's own goroutine, one at a time, in arrival order.
type Session struct {
	id        string
	guildID   string
	transport Transport
	engine    *player.Player
	events    *bus
	grace     time.Duration
	afterFunc AfterFunc
	logger    *logrus.Entry

	ops    chan func()
	done   chan struct{}
	cancel context.CancelFunc

	mu           sync.RWMutex
	state        ConnectionState
	voiceChannel string
	textChannel  string
	conn         Connection
	removeSignal func()
	timer        Timer
	timerGen     uint64
}

func newSession(guildID, voiceChannelID string, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           uuid.NewString(),
		guildID:      guildID,
		transport:    cfg.Transport,
		events:       newBus(),
		grace:        cfg.Grace,
		afterFunc:    cfg.AfterFunc,
		ops:          make(chan func()),
		done:         make(chan struct{}),
		cancel:       cancel,
		state:        Disconnected,
		voiceChannel: voiceChannelID,
	}
	if s.grace <= 0 {
		s.grace = DefaultGrace
	}
	if s.afterFunc == nil {
		s.afterFunc = realAfterFunc
	}
	s.logger = log.WithFields(logrus.Fields{"guild": guildID, "session": s.id})
	s.engine = player.New(ctx, cfg.Opener, player.Hooks{
		Post: s.post,
		OnStart: func(track sources.Track) {
			publish(s.events, s.events.playing, PlayingEvent{Session: s, Track: track})
		},
		OnError: func(track sources.Track, err error) {
			publish(s.events, s.events.errs, ErrorEvent{Session: s, Track: track, Err: err})
		},
	}).WithLogger(s.logger)

	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
		if s.Destroyed() {
			return
		}
	}
}

// do runs fn on the session goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	op := func() { errc <- fn() }
	select {
	case s.ops <- op:
	case <-s.done:
		return ErrSessionDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// post queues fn on the session goroutine without waiting for it. It is
// dropped once the session is destroyed.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) GuildID() string { return s.guildID }

func (s *Session) Destroyed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// VoiceChannel is the channel the session is bound to, as last reported by
// the transport.
func (s *Session) VoiceChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voiceChannel
}

func (s *Session) TextChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.textChannel
}

// IsConnected reports whether a voice connection is held, including while a
// disconnect is being confirmed.
func (s *Session) IsConnected() bool {
	st := s.State()
	return st == Ready || st == PendingDisconnectConfirmation
}

func (s *Session) IsReady() bool { return s.State() == Ready }

func (s *Session) IsPaused() bool { return s.engine.State() == player.Paused }

func (s *Session) PlaybackState() player.PlaybackState { return s.engine.State() }

func (s *Session) LoopMode() player.LoopMode { return s.engine.LoopMode() }

func (s *Session) PreviousTrack() (sources.Track, bool) { return s.engine.PreviousTrack() }

func (s *Session) NowPlaying() (sources.Track, bool) { return s.engine.NowPlaying() }

// Queue returns the queued tracks, head first.
func (s *Session) Queue() []sources.Track { return s.engine.Queue() }

func (s *Session) OnPlaying(fn func(PlayingEvent)) (unsubscribe func()) {
	return subscribe(s.events, s.events.playing, fn)
}

func (s *Session) OnError(fn func(ErrorEvent)) (unsubscribe func()) {
	return subscribe(s.events, s.events.errs, fn)
}

func (s *Session) OnDisconnect(fn func(DisconnectEvent)) (unsubscribe func()) {
	return subscribe(s.events, s.events.disconnect, fn)
}

func (s *Session) AddTrack(ctx context.Context, track sources.Track) error {
	return s.do(ctx, func() error {
		if s.conn == nil {
			return ErrNotConnected
		}
		s.engine.Add(track)
		return nil
	})
}

func (s *Session) Skip(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.engine.Skip(); err != nil {
			return err
		}
		s.logger.Info("skipped")
		return nil
	})
}

func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.engine.Pause()
		return nil
	})
}

func (s *Session) Resume(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.engine.Resume()
		return nil
	})
}

func (s *Session) SetLoopMode(ctx context.Context, mode player.LoopMode) error {
	return s.do(ctx, func() error {
		s.engine.SetLoopMode(mode)
		return nil
	})
}

// Destroy releases everything the session holds. Calling it again is a
// no-op.
func (s *Session) Destroy() {
	err := s.do(context.Background(), func() error {
		s.teardown()
		return nil
	})
	if err != nil && !errors.Is(err, ErrSessionDestroyed) {
		s.logger.WithError(err).Warn("destroy failed")
	}
}

func (s *Session) teardown() {
	s.stopTimer()
	s.engine.Clear()
	s.cancel()
	s.dropConnection()

	s.mu.Lock()
	s.state = Destroyed
	s.mu.Unlock()

	close(s.done)
	s.events.close()
	s.logger.Info("session destroyed")
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID            string
	GuildID       string
	VoiceChannel  string
	TextChannel   string
	State         ConnectionState
	Playback      player.PlaybackState
	LoopMode      player.LoopMode
	NowPlaying    *sources.Track
	PreviousTrack *sources.Track
	Queue         []sources.Track
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		ID:           s.id,
		GuildID:      s.guildID,
		VoiceChannel: s.voiceChannel,
		TextChannel:  s.textChannel,
		State:        s.state,
	}
	s.mu.RUnlock()

	snap.Playback = s.engine.State()
	snap.LoopMode = s.engine.LoopMode()
	snap.Queue = s.engine.Queue()
	if t, ok := s.engine.NowPlaying(); ok {
		snap.NowPlaying = &t
	}
	if t, ok := s.engine.PreviousTrack(); ok {
		snap.PreviousTrack = &t
	}
	return snap
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (guild %s, %s)", s.id, s.guildID, s.State())
}
