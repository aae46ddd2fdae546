package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunebooth/internal/music/player"
	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/source_resolver"
	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/keshon/tunebooth/pkg/cmd"
)

func TestSignalFor(t *testing.T) {
	tests := []struct {
		name   string
		state  *discordgo.VoiceState
		want   session.Signal
		wantOK bool
	}{
		{"other user", &discordgo.VoiceState{UserID: "u1", ChannelID: "c1"}, session.Signal{}, false},
		{"bot joined", &discordgo.VoiceState{UserID: "bot", ChannelID: "c1"}, session.Signal{Kind: session.SignalReady, ChannelID: "c1"}, true},
		{"bot left", &discordgo.VoiceState{UserID: "bot"}, session.Signal{Kind: session.SignalDisconnected}, true},
		{"nil", nil, session.Signal{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := signalFor("bot", tt.state)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("signalFor() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCanJoin(t *testing.T) {
	tests := []struct {
		perms int64
		want  bool
	}{
		{0, false},
		{discordgo.PermissionVoiceConnect, false},
		{discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak, true},
		{discordgo.PermissionAdministrator, true},
	}
	for _, tt := range tests {
		if got := canJoin(tt.perms); got != tt.want {
			t.Errorf("canJoin(%b) = %v, want %v", tt.perms, got, tt.want)
		}
	}
}

func TestCountListeners(t *testing.T) {
	states := []*discordgo.VoiceState{
		{UserID: "bot", ChannelID: "c1"},
		{UserID: "u1", ChannelID: "c1"},
		{UserID: "u2", ChannelID: "c2"},
		{UserID: "other-bot", ChannelID: "c1", Member: &discordgo.Member{User: &discordgo.User{ID: "other-bot", Bot: true}}},
	}
	if got := countListeners(states, "c1", "bot"); got != 1 {
		t.Errorf("countListeners(c1) = %d, want 1", got)
	}
	if got := countListeners(states[:1], "c1", "bot"); got != 0 {
		t.Errorf("countListeners(bot only) = %d, want 0", got)
	}
}

func TestTrackLine(t *testing.T) {
	tests := []struct {
		track sources.Track
		want  string
	}{
		{sources.Track{Title: "Song", URL: "https://youtu.be/x"}, "[Song](https://youtu.be/x)"},
		{sources.Track{Title: "Song"}, "Song"},
		{sources.Track{URL: "https://youtu.be/x"}, "https://youtu.be/x"},
		{sources.Track{}, "Unknown track"},
	}
	for _, tt := range tests {
		if got := trackLine(tt.track); got != tt.want {
			t.Errorf("trackLine() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNowPlayingEmbed(t *testing.T) {
	track := sources.Track{
		Title:      "Song",
		URL:        "https://youtu.be/x",
		Duration:   3 * time.Minute,
		Thumbnails: []sources.Thumbnail{{URL: "small", Width: 120, Height: 90}, {URL: "big", Width: 480, Height: 360}},
	}
	e := nowPlayingEmbed(track)
	if !strings.Contains(e.Description, "[Song](https://youtu.be/x)") {
		t.Errorf("description = %q", e.Description)
	}
	if e.Thumbnail == nil || e.Thumbnail.URL != "big" {
		t.Errorf("thumbnail = %+v, want the largest", e.Thumbnail)
	}
	if e.Footer == nil || e.Footer.Text != "3:00" {
		t.Errorf("footer = %+v", e.Footer)
	}
}

func TestQueueEmbed(t *testing.T) {
	var queue []sources.Track
	for i := range 14 {
		queue = append(queue, sources.Track{Title: fmt.Sprintf("t%d", i)})
	}
	snap := session.Snapshot{
		NowPlaying: &queue[0],
		Queue:      queue,
		Playback:   player.Playing,
		LoopMode:   player.LoopCurrent,
	}
	e := queueEmbed(snap)
	if !strings.HasPrefix(e.Description, "playing t0") {
		t.Errorf("description starts %q", e.Description)
	}
	if !strings.Contains(e.Description, "1. t1") || !strings.Contains(e.Description, "and 3 more") {
		t.Errorf("description = %q", e.Description)
	}
	if e.Footer.Text != "loop: current" {
		t.Errorf("footer = %q", e.Footer.Text)
	}

	if got := queueEmbed(session.Snapshot{}).Description; got != "The queue is empty." {
		t.Errorf("empty queue description = %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNotInVoice, "You are not in a voice channel."},
		{fmt.Errorf("wrap: %w", source_resolver.ErrTrackNotFound), "That video could not be found."},
		{source_resolver.ErrUnsupportedURL, "Only YouTube links are supported."},
		{session.ErrNothingPlaying, "Nothing is playing."},
		{session.ErrPermissionDenied, "I am not allowed to join or speak in your voice channel."},
		{errors.New("boom"), "Something went wrong, try again later."},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); got != tt.want {
			t.Errorf("userMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMusicCommandDefinition(t *testing.T) {
	def := musicCommand(musicCommands(nil))
	var names []string
	for _, o := range def.Options {
		if o.Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("option %q is not a subcommand", o.Name)
		}
		names = append(names, o.Name)
	}
	if got := strings.Join(names, ","); got != "leave,loop,pause,play,queue,resume,skip" {
		t.Errorf("subcommands = %q", got)
	}
}

func TestCommandHash(t *testing.T) {
	reg := musicCommands(nil)
	h := hashCommand(musicCommand(reg))
	if h != hashCommand(musicCommand(musicCommands(nil))) {
		t.Fatal("hash is not stable")
	}

	changed := musicCommand(reg)
	changed.Description = "different"
	if hashCommand(changed) == h {
		t.Error("hash ignored a description change")
	}

	reordered := musicCommand(reg)
	reordered.Options[0], reordered.Options[1] = reordered.Options[1], reordered.Options[0]
	if hashCommand(reordered) != h {
		t.Error("hash depends on option order")
	}
}

func TestWithRecover(t *testing.T) {
	wrapped := withRecover()(panicky{})
	err := wrapped.Run(context.Background(), &cmd.Invocation{})
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("err = %v, want recovered panic", err)
	}
}

type panicky struct{}

func (panicky) Name() string        { return "panicky" }
func (panicky) Description() string { return "always panics" }
func (panicky) Run(context.Context, *cmd.Invocation) error {
	panic("kaboom")
}

func TestInteractionOption(t *testing.T) {
	in := &interaction{options: []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "input", Type: discordgo.ApplicationCommandOptionString, Value: "lofi beats"},
	}}
	if got := in.option("input"); got != "lofi beats" {
		t.Errorf("option(input) = %q", got)
	}
	if got := in.option("mode"); got != "" {
		t.Errorf("option(mode) = %q, want empty", got)
	}
}
