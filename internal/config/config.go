package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "config")

var ErrInvalid = errors.New("invalid config")

type Config struct {
	DiscordToken      string        `env:"DISCORD_TOKEN,required,notEmpty"`
	InitSlashCommands bool          `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	CommandCachePath  string        `env:"COMMAND_CACHE_PATH" envDefault:"data/commands.json"`
	DisconnectGrace   time.Duration `env:"DISCONNECT_GRACE" envDefault:"2s"`
	SearchBackend     string        `env:"SEARCH_BACKEND" envDefault:"youtube"`
	SearchLimit       int           `env:"SEARCH_LIMIT" envDefault:"10"`
	StreamParsers     []string      `env:"STREAM_PARSERS" envSeparator:"," envDefault:"kkdai-pipe,ytdlp-pipe"`
	FFmpegPath        string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	YouTubeProxy      string        `env:"YOUTUBE_PROXY"`
	StatusAddr        string        `env:"STATUS_ADDR"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using process environment")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.SearchBackend {
	case "youtube", "ytmusic":
	default:
		return fmt.Errorf("%w: SEARCH_BACKEND %q (want youtube or ytmusic)", ErrInvalid, c.SearchBackend)
	}
	if c.SearchLimit < 1 {
		return fmt.Errorf("%w: SEARCH_LIMIT must be positive", ErrInvalid)
	}
	if c.DisconnectGrace <= 0 {
		return fmt.Errorf("%w: DISCONNECT_GRACE must be positive", ErrInvalid)
	}
	if len(c.StreamParsers) == 0 {
		return fmt.Errorf("%w: STREAM_PARSERS is empty", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalid, err)
	}
	return nil
}
