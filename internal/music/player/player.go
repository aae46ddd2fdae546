package player

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/music/queue"
	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/keshon/tunebooth/internal/music/stream"
)

var log = logrus.WithField("component", "player")

var ErrNothingPlaying = errors.New("nothing is playing")

// Opener acquires the PCM stream for a track.
type Opener interface {
	Open(ctx context.Context, track sources.Track) (io.ReadCloser, error)
}

// Sink consumes PCM until it ends, ctx is cancelled or sending fails.
type Sink interface {
	Stream(ctx context.Context, pcm io.Reader, gate *stream.Gate) error
}

// Hooks connect the player to its owner. Post must run fn on the same
// serial executor that calls the player's methods.
type Hooks struct {
	Post    func(fn func())
	OnStart func(track sources.Track)
	OnError func(track sources.Track, err error)
}

// Player is the playback engine of one session. Its mutating methods must
// be called from a single goroutine (the owner's executor); getters may be
// called from anywhere.
type Player struct {
	opener Opener
	hooks  Hooks
	ctx    context.Context
	logger *logrus.Entry

	mu       sync.RWMutex
	sink     Sink
	queue    *queue.Queue
	state    PlaybackState
	loop     LoopMode
	previous *sources.Track

	gen    uint64
	cancel context.CancelFunc
	closer io.Closer
	gate   *stream.Gate
}

// New creates a player. Streams are opened under ctx, so cancelling it
// stops any playback for good.
func New(ctx context.Context, opener Opener, hooks Hooks) *Player {
	return &Player{
		opener: opener,
		hooks:  hooks,
		ctx:    ctx,
		logger: log,
		queue:  queue.New(),
	}
}

func (p *Player) WithLogger(l *logrus.Entry) *Player {
	p.logger = l
	return p
}

func (p *Player) SetSink(s Sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

// Add appends track and starts it when the queue was empty.
func (p *Player) Add(track sources.Track) {
	p.mu.Lock()
	wasEmpty := p.queue.Len() == 0
	p.queue.Append(track)
	n := p.queue.Len()
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{"track": track.ID, "queue_len": n}).Info("track added")
	if wasEmpty {
		p.playHead()
	}
}

// Start plays the head if the player is idle with tracks waiting.
func (p *Player) Start() {
	p.mu.RLock()
	idle := p.state == Idle && p.queue.Len() > 0
	p.mu.RUnlock()
	if idle {
		p.playHead()
	}
}

// Skip drops the head and plays the next track, or goes idle.
func (p *Player) Skip() error {
	p.mu.RLock()
	empty := p.queue.Len() == 0
	p.mu.RUnlock()
	if empty {
		return ErrNothingPlaying
	}

	p.stopStream()
	p.advance()
	p.playHead()
	return nil
}

// Stop ends the current stream but keeps the queue.
func (p *Player) Stop() {
	p.stopStream()
}

// Clear stops playback and empties the queue.
func (p *Player) Clear() {
	p.stopStream()
	p.mu.Lock()
	p.queue.Clear()
	p.mu.Unlock()
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing {
		return
	}
	p.gate.Pause()
	p.state = Paused
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Paused {
		return
	}
	p.gate.Resume()
	p.state = Playing
}

func (p *Player) SetLoopMode(m LoopMode) {
	p.mu.Lock()
	p.loop = m
	p.mu.Unlock()
}

func (p *Player) LoopMode() LoopMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loop
}

func (p *Player) State() PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Player) NowPlaying() (sources.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == Idle {
		return sources.Track{}, false
	}
	return p.queue.Head()
}

func (p *Player) Queue() []sources.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.queue.Snapshot()
}

func (p *Player) PreviousTrack() (sources.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.previous == nil {
		return sources.Track{}, false
	}
	return *p.previous, true
}

// playHead opens the head and starts streaming it. Tracks that fail to
// open are reported and dropped until one opens or the queue drains.
func (p *Player) playHead() {
	for {
		p.mu.RLock()
		track, ok := p.queue.Head()
		sink := p.sink
		p.mu.RUnlock()
		if !ok {
			p.logger.Debug("queue drained, idle")
			return
		}
		if sink == nil {
			p.logger.Warn("no sink attached, holding queue")
			return
		}

		ctx, cancel := context.WithCancel(p.ctx)
		rc, err := p.opener.Open(ctx, track)
		if err != nil {
			cancel()
			p.logger.WithField("track", track.ID).WithError(err).Warn("failed to open stream, skipping")
			p.emitError(track, err)
			p.advance()
			continue
		}

		closer := &onceCloser{c: rc}
		gate := stream.NewGate()

		p.mu.Lock()
		p.gen++
		gen := p.gen
		p.cancel = cancel
		p.closer = closer
		p.gate = gate
		p.state = Playing
		p.mu.Unlock()

		p.logger.WithFields(logrus.Fields{"track": track.ID, "title": track.Title}).Info("now playing")
		if p.hooks.OnStart != nil {
			p.hooks.OnStart(track)
		}

		go p.run(ctx, gen, sink, rc, closer, gate)
		return
	}
}

func (p *Player) run(ctx context.Context, gen uint64, sink Sink, pcm io.Reader, closer io.Closer, gate *stream.Gate) {
	err := sink.Stream(ctx, pcm, gate)
	_ = closer.Close()
	p.hooks.Post(func() { p.finished(gen, err) })
}

// finished handles the end of the stream started as gen.
func (p *Player) finished(gen uint64, err error) {
	p.mu.RLock()
	stale := gen != p.gen || p.state == Idle
	loop := p.loop
	track, _ := p.queue.Head()
	p.mu.RUnlock()
	if stale {
		return
	}

	p.stopStream()

	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.WithField("track", track.ID).WithError(err).Warn("stream failed, skipping")
		p.emitError(track, err)
		p.advance()
		p.playHead()
		return
	}

	if loop == LoopCurrent {
		p.logger.WithField("track", track.ID).Debug("looping current track")
		p.playHead()
		return
	}

	p.advance()
	p.playHead()
}

// stopStream cancels the current stream, if any, and marks the player idle.
func (p *Player) stopStream() {
	p.mu.Lock()
	cancel, closer := p.cancel, p.closer
	p.gen++
	p.cancel = nil
	p.closer = nil
	p.gate = nil
	p.state = Idle
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
}

func (p *Player) advance() {
	p.mu.Lock()
	prev := p.queue.Pop()
	p.previous = &prev
	p.mu.Unlock()
}

func (p *Player) emitError(track sources.Track, err error) {
	if p.hooks.OnError != nil {
		p.hooks.OnError(track, err)
	}
}

type onceCloser struct {
	once sync.Once
	c    io.Closer
	err  error
}

func (o *onceCloser) Close() error {
	o.once.Do(func() { o.err = o.c.Close() })
	return o.err
}
