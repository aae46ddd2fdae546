// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/config"
	"github.com/keshon/tunebooth/internal/discord"
	"github.com/keshon/tunebooth/internal/music/session"
	"github.com/keshon/tunebooth/internal/music/source_resolver"
	"github.com/keshon/tunebooth/internal/music/sources/youtube"
	"github.com/keshon/tunebooth/internal/music/stream"
	"github.com/keshon/tunebooth/internal/status"
	v "github.com/keshon/tunebooth/internal/version"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.Warnf("unknown LOG_LEVEL %q, keeping %s", cfg.LogLevel, logrus.GetLevel())
	}

	logrus.Infof("Starting %v bot...", v.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("bot exited")
	}
	logrus.Info("Discord bot exited cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	httpClient, err := youtube.NewHTTPClient(cfg.YouTubeProxy)
	if err != nil {
		return err
	}
	searcher, err := youtube.NewSearcher(cfg.SearchBackend)
	if err != nil {
		return err
	}
	catalog := youtube.NewCatalog(youtube.CatalogConfig{
		Searcher:   searcher,
		Limit:      cfg.SearchLimit,
		HTTPClient: httpClient,
		Proxy:      cfg.YouTubeProxy,
	})
	resolver := source_resolver.New(catalog)

	parsers := stream.NewRegistry(stream.RegistryConfig{
		Client: catalog.Client(),
		FFmpeg: cfg.FFmpegPath,
		Proxy:  cfg.YouTubeProxy,
	})
	opener, err := stream.NewAutoOpener(cfg.StreamParsers, parsers)
	if err != nil {
		return err
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return err
	}
	transport := discord.NewTransport(dg)
	registry := session.NewRegistry(session.Config{
		Transport: transport,
		Opener:    opener,
		Grace:     cfg.DisconnectGrace,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.StatusAddr != "" {
		srv := status.New(cfg.StatusAddr, registry)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logrus.WithError(err).Error("status endpoint stopped")
				cancel()
			}
		}()
	}

	bot, err := discord.NewBot(cfg, dg, transport, registry, resolver)
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}
