package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/music/player"
	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/sources"
)

var log = logrus.WithField("component", "discord")

var (
	ErrNotInVoice     = errors.New("you are not in a voice channel")
	ErrNoSession      = errors.New("nothing is playing in this server")
	ErrNoResults      = errors.New("nothing found")
	ErrBusyElsewhere  = errors.New("already playing in another voice channel")
	ErrUnknownLoopArg = errors.New("unknown loop mode")
)

// Resolver turns user input into tracks.
type Resolver interface {
	Resolve(ctx context.Context, input string) ([]sources.Track, error)
}

// Notifier shows session events to users.
type Notifier interface {
	NowPlaying(channelID string, track sources.Track)
	PlaybackFailed(channelID string, track sources.Track, err error)
}

// Controller carries out music commands against the session registry.
type Controller struct {
	registry *session.Registry
	resolver Resolver
	notifier Notifier
}

func NewController(registry *session.Registry, resolver Resolver, notifier Notifier) *Controller {
	return &Controller{registry: registry, resolver: resolver, notifier: notifier}
}

// Play resolves input and queues the result in the guild's session,
// joining voiceChannelID first when needed. When queueing stops partway,
// the tracks already queued are returned along with the error.
func (c *Controller) Play(ctx context.Context, guildID, voiceChannelID, textChannelID, input string) ([]sources.Track, error) {
	if voiceChannelID == "" {
		return nil, ErrNotInVoice
	}

	tracks, err := c.resolver.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNoResults
	}

	s, created, err := c.session(guildID, voiceChannelID)
	if err != nil {
		return nil, err
	}
	if err := s.JoinVoiceChannel(ctx, voiceChannelID, textChannelID); err != nil {
		if created {
			c.registry.Destroy(guildID)
		}
		return nil, err
	}
	if s.VoiceChannel() != voiceChannelID {
		return nil, ErrBusyElsewhere
	}

	queued, err := queueTracks(ctx, s, tracks)
	if err != nil {
		if len(queued) > 0 {
			log.WithFields(logrus.Fields{"guild": guildID, "input": input}).WithError(err).
				Warnf("queued %d of %d tracks", len(queued), len(tracks))
		}
		return queued, err
	}

	log.WithFields(logrus.Fields{"guild": guildID, "input": input, "tracks": len(tracks)}).Info("queued")
	return tracks, nil
}

type trackAdder interface {
	AddTrack(ctx context.Context, track sources.Track) error
}

// queueTracks adds tracks in order and returns the ones queued before the
// first failure.
func queueTracks(ctx context.Context, s trackAdder, tracks []sources.Track) ([]sources.Track, error) {
	for i, t := range tracks {
		if err := s.AddTrack(ctx, t); err != nil {
			return tracks[:i], fmt.Errorf("queue %s: %w", t.ID, err)
		}
	}
	return tracks, nil
}

func (c *Controller) session(guildID, voiceChannelID string) (*session.Session, bool, error) {
	if s, ok := c.registry.Get(guildID); ok {
		return s, false, nil
	}
	s, err := c.registry.Create(guildID, voiceChannelID)
	if errors.Is(err, session.ErrAlreadyExists) {
		if s, ok := c.registry.Get(guildID); ok {
			return s, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	c.attach(s)
	return s, true, nil
}

// attach wires a new session's events to the notifier and removes the
// session once its disconnect is confirmed.
func (c *Controller) attach(s *session.Session) {
	s.OnPlaying(func(ev session.PlayingEvent) {
		if c.notifier != nil {
			c.notifier.NowPlaying(ev.Session.TextChannel(), ev.Track)
		}
	})
	s.OnError(func(ev session.ErrorEvent) {
		if c.notifier != nil {
			c.notifier.PlaybackFailed(ev.Session.TextChannel(), ev.Track, ev.Err)
		}
	})
	s.OnDisconnect(func(ev session.DisconnectEvent) {
		log.WithField("guild", ev.Session.GuildID()).Info("voice connection lost, cleaning up")
		c.registry.Destroy(ev.Session.GuildID())
	})
}

func (c *Controller) live(guildID string) (*session.Session, error) {
	s, ok := c.registry.Get(guildID)
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Skip returns the track that was skipped.
func (c *Controller) Skip(ctx context.Context, guildID string) (sources.Track, error) {
	s, err := c.live(guildID)
	if err != nil {
		return sources.Track{}, err
	}
	current, _ := s.NowPlaying()
	if err := s.Skip(ctx); err != nil {
		return sources.Track{}, err
	}
	return current, nil
}

func (c *Controller) Pause(ctx context.Context, guildID string) error {
	s, err := c.live(guildID)
	if err != nil {
		return err
	}
	if s.PlaybackState() == player.Idle {
		return session.ErrNothingPlaying
	}
	return s.Pause(ctx)
}

func (c *Controller) Resume(ctx context.Context, guildID string) error {
	s, err := c.live(guildID)
	if err != nil {
		return err
	}
	return s.Resume(ctx)
}

func (c *Controller) Loop(ctx context.Context, guildID, mode string) (player.LoopMode, error) {
	s, err := c.live(guildID)
	if err != nil {
		return player.LoopNone, err
	}
	var m player.LoopMode
	switch mode {
	case "current":
		m = player.LoopCurrent
	case "none", "":
		m = player.LoopNone
	default:
		return player.LoopNone, fmt.Errorf("%w: %q", ErrUnknownLoopArg, mode)
	}
	return m, s.SetLoopMode(ctx, m)
}

func (c *Controller) Status(guildID string) (session.Snapshot, error) {
	s, err := c.live(guildID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (c *Controller) Leave(guildID string) error {
	if !c.registry.Exists(guildID) {
		return ErrNoSession
	}
	c.registry.Destroy(guildID)
	return nil
}

// ListenerCheck destroys the guild's session when nobody but the bot is left
// in its voice channel.
func (c *Controller) ListenerCheck(guildID string, listeners func(channelID string) int) {
	s, ok := c.registry.Get(guildID)
	if !ok || !s.IsConnected() {
		return
	}
	if listeners(s.VoiceChannel()) > 0 {
		return
	}
	log.WithField("guild", guildID).Info("last listener left, leaving")
	c.registry.Destroy(guildID)
}
