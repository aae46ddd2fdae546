package discord

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/stream"
)

// Transport joins voice channels through discordgo and turns the bot's own
// voice state updates into session signals.
type Transport struct {
	dg *discordgo.Session

	mu    sync.Mutex
	conns map[string]*voiceConn
}

func NewTransport(dg *discordgo.Session) *Transport {
	return &Transport{
		dg:    dg,
		conns: make(map[string]*voiceConn),
	}
}

// CanJoin checks the bot's cached permissions on channelID.
func (t *Transport) CanJoin(guildID, channelID string) (bool, error) {
	perms, err := t.dg.State.UserChannelPermissions(t.dg.State.User.ID, channelID)
	if err != nil {
		return false, fmt.Errorf("permissions for channel %s: %w", channelID, err)
	}
	return canJoin(perms), nil
}

func canJoin(perms int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&discordgo.PermissionVoiceConnect != 0 && perms&discordgo.PermissionVoiceSpeak != 0
}

func (t *Transport) Join(ctx context.Context, guildID, channelID string) (session.Connection, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	done := make(chan result, 1)
	go func() {
		vc, err := t.dg.ChannelVoiceJoin(guildID, channelID, false, true)
		done <- result{vc, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	c := &voiceConn{
		transport: t,
		guildID:   guildID,
		vc:        res.vc,
		handlers:  make(map[uuid.UUID]func(session.Signal)),
	}
	t.mu.Lock()
	t.conns[guildID] = c
	t.mu.Unlock()

	log.WithField("guild", guildID).WithField("channel", res.vc.ChannelID).Info("joined voice channel")
	return c, nil
}

func (t *Transport) Bound(guildID string) (string, bool) {
	vs, err := t.dg.State.VoiceState(guildID, t.dg.State.User.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// onVoiceStateUpdate forwards the bot's own voice state changes to the
// connection of that guild.
func (t *Transport) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	sig, ok := signalFor(s.State.User.ID, v.VoiceState)
	if !ok {
		return
	}
	t.mu.Lock()
	c := t.conns[v.GuildID]
	t.mu.Unlock()
	if c != nil {
		c.dispatch(sig)
	}
}

func signalFor(botID string, v *discordgo.VoiceState) (session.Signal, bool) {
	if v == nil || v.UserID != botID {
		return session.Signal{}, false
	}
	if v.ChannelID == "" {
		return session.Signal{Kind: session.SignalDisconnected}, true
	}
	return session.Signal{Kind: session.SignalReady, ChannelID: v.ChannelID}, true
}

type voiceConn struct {
	transport *Transport
	guildID   string
	vc        *discordgo.VoiceConnection

	mu       sync.Mutex
	handlers map[uuid.UUID]func(session.Signal)
}

func (c *voiceConn) ChannelID() string { return c.vc.ChannelID }

func (c *voiceConn) OnSignal(fn func(session.Signal)) func() {
	id := uuid.New()
	c.mu.Lock()
	c.handlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *voiceConn) dispatch(sig session.Signal) {
	c.mu.Lock()
	fns := make([]func(session.Signal), 0, len(c.handlers))
	for _, fn := range c.handlers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(sig)
	}
}

func (c *voiceConn) Stream(ctx context.Context, pcm io.Reader, gate *stream.Gate) error {
	return stream.StreamToDiscord(ctx, pcm, gate, c.vc)
}

func (c *voiceConn) Disconnect() error {
	c.transport.mu.Lock()
	if c.transport.conns[c.guildID] == c {
		delete(c.transport.conns, c.guildID)
	}
	c.transport.mu.Unlock()
	return c.vc.Disconnect()
}
