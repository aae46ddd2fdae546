package session

import (
	"context"
	"io"
	"time"

	"github.com/keshon/tunebooth/internal/music/stream"
)

type SignalKind int

const (
	SignalReady SignalKind = iota
	SignalDisconnected
)

func (k SignalKind) String() string {
	if k == SignalDisconnected {
		return "disconnected"
	}
	return "ready"
}

// Signal is a voice connection status change reported by the transport.
// ChannelID is the channel the bot is in when Kind is SignalReady.
type Signal struct {
	Kind      SignalKind
	ChannelID string
}

// Transport is the voice platform as seen by a session.
type Transport interface {
	// CanJoin is a local permission check; it must not hit the network.
	CanJoin(guildID, channelID string) (bool, error)
	// Join returns once the connection is live.
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
	// Bound reports the voice channel the bot currently sits in.
	Bound(guildID string) (channelID string, ok bool)
}

// Connection is one live voice connection.
type Connection interface {
	ChannelID() string
	OnSignal(fn func(Signal)) (remove func())
	Stream(ctx context.Context, pcm io.Reader, gate *stream.Gate) error
	Disconnect() error
}

// Timer is a pending timer callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
