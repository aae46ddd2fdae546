package session

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/keshon/tunebooth/internal/music/player"
	"github.com/keshon/tunebooth/pkg/util"
)

// shutdownWorkers bounds how many sessions are torn down at once.
const shutdownWorkers = 8

// Config is shared by every session a registry creates.
type Config struct {
	Transport Transport
	Opener    player.Opener
	Grace     time.Duration
	AfterFunc AfterFunc
}

// Registry holds at most one live session per guild.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new, not yet joined session for guildID.
func (r *Registry) Create(guildID, voiceChannelID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok && !s.Destroyed() {
		return nil, ErrAlreadyExists
	}
	s := newSession(guildID, voiceChannelID, r.cfg)
	r.sessions[guildID] = s
	s.logger.Info("session created")
	return s, nil
}

func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	if !ok || s.Destroyed() {
		return nil, false
	}
	return s, true
}

func (r *Registry) Exists(guildID string) bool {
	_, ok := r.Get(guildID)
	return ok
}

// Destroy tears down the guild's session, if any, and forgets it. The
// entry stays registered until teardown finishes so no second session can
// be created alongside the one being released.
func (r *Registry) Destroy(guildID string) {
	r.mu.RLock()
	s, ok := r.sessions[guildID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	s.Destroy()

	r.mu.Lock()
	if r.sessions[guildID] == s {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()
}

// List returns the live sessions ordered by guild id.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if !s.Destroyed() {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].guildID < out[j].guildID })
	return out
}

// Shutdown destroys every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	_ = util.Parallel(context.Background(), slices.Collect(maps.Values(all)), shutdownWorkers,
		func(_ context.Context, s *Session) error {
			s.Destroy()
			return nil
		})
	log.WithField("count", len(all)).Info("all sessions destroyed")
}
