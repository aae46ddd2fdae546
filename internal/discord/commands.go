package discord

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/source_resolver"
	"github.com/keshon/tunebooth/internal/music/sources/youtube"
	"github.com/keshon/tunebooth/pkg/cmd"
)

const commandTimeout = 30 * time.Second

var errGuildOnly = errors.New("music commands only work inside a server")

// interaction is the Invocation payload of a /music subcommand.
type interaction struct {
	s       *discordgo.Session
	event   *discordgo.InteractionCreate
	userID  string
	options []*discordgo.ApplicationCommandInteractionDataOption
	logger  *logrus.Entry
}

func (in *interaction) option(name string) string {
	for _, o := range in.options {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

// subcommand is one /music subcommand. run returns the embed to answer with.
// deferred commands acknowledge first and answer through a followup.
type subcommand struct {
	name        string
	description string
	options     []*discordgo.ApplicationCommandOption
	deferred    bool
	run         func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error)
}

func (c *subcommand) Name() string        { return c.name }
func (c *subcommand) Description() string { return c.description }

func (c *subcommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	in := inv.Data.(*interaction)
	if c.deferred {
		if err := in.s.InteractionRespond(in.event.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		}); err != nil {
			return fmt.Errorf("defer response: %w", err)
		}
	}

	embed, err := c.run(ctx, in)
	if err != nil {
		embed = statusEmbed(statusError, userMessage(err))
	}

	var rerr error
	if c.deferred {
		_, rerr = in.s.FollowupMessageCreate(in.event.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		})
	} else {
		rerr = respondEmbed(in.s, in.event, embed, err != nil)
	}
	if rerr != nil {
		in.logger.WithError(rerr).Warn("failed to respond")
	}
	return err
}

func (c *subcommand) option() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        c.name,
		Description: c.description,
		Options:     c.options,
	}
}

// musicCommands builds the /music subcommands on top of ctl, wrapped in the
// standard middleware chain.
func musicCommands(ctl *Controller) *cmd.Registry {
	all := []*subcommand{
		{
			name:        "play",
			description: "Play a YouTube link, playlist or search",
			deferred:    true,
			options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "input",
				Description: "Link or song name",
				Required:    true,
			}},
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				tracks, err := ctl.Play(ctx, in.event.GuildID, userVoiceChannel(in.s, in.event.GuildID, in.userID), in.event.ChannelID, in.option("input"))
				if err != nil && len(tracks) > 0 {
					return partialEmbed(tracks, err), nil
				}
				if err != nil {
					return nil, err
				}
				return addedEmbed(tracks), nil
			},
		},
		{
			name:        "skip",
			description: "Skip the current track",
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				skipped, err := ctl.Skip(ctx, in.event.GuildID)
				if err != nil {
					return nil, err
				}
				return statusEmbed(statusSkipped, trackLine(skipped)), nil
			},
		},
		{
			name:        "pause",
			description: "Pause playback",
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				return statusEmbed(statusPaused, ""), ctl.Pause(ctx, in.event.GuildID)
			},
		},
		{
			name:        "resume",
			description: "Resume playback",
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				return statusEmbed(statusResumed, ""), ctl.Resume(ctx, in.event.GuildID)
			},
		},
		{
			name:        "loop",
			description: "Loop the current track",
			options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "Loop mode",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "off", Value: "none"},
					{Name: "current track", Value: "current"},
				},
			}},
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				m, err := ctl.Loop(ctx, in.event.GuildID, in.option("mode"))
				if err != nil {
					return nil, err
				}
				return statusEmbed(statusLoop, "Loop: **"+m.String()+"**"), nil
			},
		},
		{
			name:        "queue",
			description: "Show the queue",
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				snap, err := ctl.Status(in.event.GuildID)
				if err != nil {
					return nil, err
				}
				return queueEmbed(snap), nil
			},
		},
		{
			name:        "leave",
			description: "Stop and leave the voice channel",
			run: func(ctx context.Context, in *interaction) (*discordgo.MessageEmbed, error) {
				return statusEmbed(statusStopped, "Left the voice channel."), ctl.Leave(in.event.GuildID)
			},
		},
	}

	reg := cmd.NewRegistry()
	for _, c := range all {
		if err := reg.Register(cmd.Apply(c, withCommandLog(), withRecover(), withGuildOnly())); err != nil {
			panic(err)
		}
	}
	return reg
}

// musicCommand is the slash command definition built from reg.
func musicCommand(reg *cmd.Registry) *discordgo.ApplicationCommand {
	var opts []*discordgo.ApplicationCommandOption
	for _, c := range reg.GetAll() {
		if sc, ok := cmd.Root(c).(*subcommand); ok {
			opts = append(opts, sc.option())
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        "music",
		Description: "Play music in your voice channel",
		Type:        discordgo.ChatApplicationCommand,
		Options:     opts,
	}
}

func withCommandLog() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			in := inv.Data.(*interaction)
			start := time.Now()
			err := c.Run(ctx, inv)
			entry := in.logger.WithField("took", time.Since(start).Round(time.Millisecond))
			if err != nil {
				entry.WithError(err).Info("command failed")
			} else {
				entry.Debug("command done")
			}
			return err
		})
	}
}

func withRecover() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logrus.Errorf("command %s panicked: %v\n%s", c.Name(), r, debug.Stack())
					err = fmt.Errorf("command %s panicked: %v", c.Name(), r)
				}
			}()
			return c.Run(ctx, inv)
		})
	}
}

func withGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			in := inv.Data.(*interaction)
			if in.event.GuildID == "" {
				if err := respondEmbed(in.s, in.event, statusEmbed(statusError, userMessage(errGuildOnly)), true); err != nil {
					in.logger.WithError(err).Warn("failed to respond")
				}
				return errGuildOnly
			}
			return c.Run(ctx, inv)
		})
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "music" || len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	c := b.subcommands.Get(sub.Name)
	if c == nil {
		return
	}

	var userID string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	}
	in := &interaction{
		s:       s,
		event:   i,
		userID:  userID,
		options: sub.Options,
		logger:  log.WithFields(logrus.Fields{"guild": i.GuildID, "user": userID, "command": "music " + sub.Name}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	_ = c.Run(ctx, &cmd.Invocation{Data: in})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// userMessage maps known failures to text fit for chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, youtube.ErrUnrecognizedLink), errors.Is(err, source_resolver.ErrUnsupportedURL):
		return "Only YouTube links are supported."
	case errors.Is(err, source_resolver.ErrTrackNotFound):
		return "That video could not be found."
	case errors.Is(err, ErrNotInVoice), errors.Is(err, ErrNoSession), errors.Is(err, ErrNoResults),
		errors.Is(err, ErrBusyElsewhere), errors.Is(err, ErrUnknownLoopArg), errors.Is(err, errGuildOnly):
		return capitalize(err.Error()) + "."
	case errors.Is(err, session.ErrNothingPlaying):
		return "Nothing is playing."
	case errors.Is(err, session.ErrPermissionDenied):
		return "I am not allowed to join or speak in your voice channel."
	default:
		return "Something went wrong, try again later."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func userVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// countListeners counts members other than the bot in channelID.
func countListeners(states []*discordgo.VoiceState, channelID, botID string) int {
	n := 0
	for _, vs := range states {
		if vs.ChannelID != channelID || vs.UserID == botID {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
			continue
		}
		n++
	}
	return n
}
