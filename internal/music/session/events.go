package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/keshon/tunebooth/internal/music/sources"
)

type PlayingEvent struct {
	Session *Session
	Track   sources.Track
}

type ErrorEvent struct {
	Session *Session
	Track   sources.Track
	Err     error
}

type DisconnectEvent struct {
	Session *Session
}

// bus delivers events to subscribers from a single goroutine, in publish
// order. Publishing never blocks.
type bus struct {
	mu         sync.Mutex
	playing    map[uuid.UUID]func(PlayingEvent)
	errs       map[uuid.UUID]func(ErrorEvent)
	disconnect map[uuid.UUID]func(DisconnectEvent)

	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newBus() *bus {
	b := &bus{
		playing:    make(map[uuid.UUID]func(PlayingEvent)),
		errs:       make(map[uuid.UUID]func(ErrorEvent)),
		disconnect: make(map[uuid.UUID]func(DisconnectEvent)),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.run()
	return b
}

func subscribe[E any](b *bus, m map[uuid.UUID]func(E), fn func(E)) func() {
	id := uuid.New()
	b.mu.Lock()
	m[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(m, id)
		b.mu.Unlock()
	}
}

func publish[E any](b *bus, m map[uuid.UUID]func(E), ev E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, fn := range m {
		b.pending = append(b.pending, func() { fn(ev) })
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *bus) run() {
	defer close(b.done)
	for {
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		closed := b.closed
		b.mu.Unlock()

		for _, fn := range batch {
			deliver(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-b.wake
	}
}

func deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("event subscriber panicked")
		}
	}()
	fn()
}

// close stops accepting events; queued ones are still delivered.
func (b *bus) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}
