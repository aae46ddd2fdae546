package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunebooth/datastore"
	"github.com/keshon/tunebooth/internal/config"
	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/pkg/cmd"
)

// Bot wires the music controller to a Discord gateway session.
type Bot struct {
	cfg         *config.Config
	dg          *discordgo.Session
	transport   *Transport
	registry    *session.Registry
	controller  *Controller
	hashes      *commandHashes
	subcommands *cmd.Registry
}

func NewBot(cfg *config.Config, dg *discordgo.Session, transport *Transport, registry *session.Registry, resolver Resolver) (*Bot, error) {
	hashes, err := datastore.Open[map[string]string](cfg.CommandCachePath)
	if err != nil {
		return nil, fmt.Errorf("open command cache: %w", err)
	}
	controller := NewController(registry, resolver, NewPresenter(dg))
	return &Bot{
		cfg:         cfg,
		dg:          dg,
		transport:   transport,
		registry:    registry,
		controller:  controller,
		hashes:      hashes,
		subcommands: musicCommands(controller),
	}, nil
}

// Run connects to Discord and blocks until ctx is done. Every session is
// torn down before it returns.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	b.registry.Shutdown()
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.WithField("user", r.User.Username).WithField("guilds", len(r.Guilds)).Info("discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if !b.cfg.InitSlashCommands {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		log.WithField("guild", g.ID).WithError(err).Error("failed to register commands")
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	b.transport.onVoiceStateUpdate(s, v)

	if v.UserID == s.State.User.ID {
		return
	}
	b.controller.ListenerCheck(v.GuildID, func(channelID string) int {
		guild, err := s.State.Guild(v.GuildID)
		if err != nil {
			return 1
		}
		return countListeners(guild.VoiceStates, channelID, s.State.User.ID)
	})
}
