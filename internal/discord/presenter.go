package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/sources"
)

const EmbedColor = 0xb01e66

type status string

const (
	statusPlaying status = "Now Playing"
	statusAdded   status = "Track(s) Added"
	statusSkipped status = "Skipped"
	statusStopped status = "Playback Stopped"
	statusPaused  status = "Playback Paused"
	statusResumed status = "Playback Resumed"
	statusLoop    status = "Loop Mode"
	statusQueue   status = "Queue"
	statusError   status = "Error"
)

func (s status) emoji() string {
	m := map[status]string{
		statusPlaying: "▶️",
		statusAdded:   "🎶",
		statusSkipped: "⏭",
		statusStopped: "⏹",
		statusPaused:  "⏸",
		statusResumed: "▶️",
		statusLoop:    "🔁",
		statusQueue:   "📜",
		statusError:   "❌",
	}
	return m[s]
}

func (s status) title() string { return s.emoji() + " " + string(s) }

// Presenter posts session events to the session's text channel.
type Presenter struct {
	dg *discordgo.Session
}

func NewPresenter(dg *discordgo.Session) *Presenter {
	return &Presenter{dg: dg}
}

func (p *Presenter) NowPlaying(channelID string, track sources.Track) {
	p.send(channelID, nowPlayingEmbed(track))
}

func (p *Presenter) PlaybackFailed(channelID string, track sources.Track, err error) {
	p.send(channelID, &discordgo.MessageEmbed{
		Title:       statusError.title(),
		Description: fmt.Sprintf("Could not play %s, skipping.\n`%v`", trackLine(track), err),
		Color:       EmbedColor,
	})
}

func (p *Presenter) send(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	if _, err := p.dg.ChannelMessageSendEmbed(channelID, embed); err != nil {
		log.WithField("channel", channelID).WithError(err).Warn("failed to post message")
	}
}

func trackLine(t sources.Track) string {
	switch {
	case t.Title != "" && t.URL != "":
		return fmt.Sprintf("[%s](%s)", t.Title, t.URL)
	case t.Title != "":
		return t.Title
	case t.URL != "":
		return t.URL
	default:
		return "Unknown track"
	}
}

func nowPlayingEmbed(t sources.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       statusPlaying.title(),
		Description: "🎶 " + trackLine(t),
		Color:       EmbedColor,
	}
	if thumb, ok := t.Thumbnail(); ok {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumb.URL, Width: thumb.Width, Height: thumb.Height}
	}
	if t.Duration > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: formatDuration(t.Duration)}
	}
	return embed
}

func addedEmbed(tracks []sources.Track) *discordgo.MessageEmbed {
	desc := "Added " + trackLine(tracks[0])
	if len(tracks) > 1 {
		desc = fmt.Sprintf("Added %d tracks, starting with %s", len(tracks), trackLine(tracks[0]))
	}
	return &discordgo.MessageEmbed{Title: statusAdded.title(), Description: desc, Color: EmbedColor}
}

const queuePageSize = 10

func queueEmbed(snap session.Snapshot) *discordgo.MessageEmbed {
	var b strings.Builder
	if snap.NowPlaying != nil {
		fmt.Fprintf(&b, "%s %s\n\n", snap.Playback, trackLine(*snap.NowPlaying))
	}

	waiting := snap.Queue
	if snap.NowPlaying != nil && len(waiting) > 0 {
		waiting = waiting[1:]
	}
	for i, t := range waiting {
		if i == queuePageSize {
			fmt.Fprintf(&b, "…and %d more", len(waiting)-queuePageSize)
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, trackLine(t))
	}
	if b.Len() == 0 {
		b.WriteString("The queue is empty.")
	}

	return &discordgo.MessageEmbed{
		Title:       statusQueue.title(),
		Description: b.String(),
		Color:       EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "loop: " + snap.LoopMode.String()},
	}
}

func statusEmbed(s status, desc string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: s.title(), Description: desc, Color: EmbedColor}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// partialEmbed reports a playlist that was only partly queued.
func partialEmbed(queued []sources.Track, err error) *discordgo.MessageEmbed {
	noun := "tracks"
	if len(queued) == 1 {
		noun = "track"
	}
	return statusEmbed(statusError, fmt.Sprintf("Queued %d %s, then stopped. %s", len(queued), noun, userMessage(err)))
}
