package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	kkdaiyt "github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"

	"github.com/keshon/tunebooth/internal/music/parsers"
	"github.com/keshon/tunebooth/internal/music/parsers/ffmpeg"
	"github.com/keshon/tunebooth/internal/music/parsers/kkdai"
	"github.com/keshon/tunebooth/internal/music/parsers/ytdlp"
	"github.com/keshon/tunebooth/internal/music/sources"
)

var log = logrus.WithField("component", "stream")

var (
	ErrUnknownParser = errors.New("unknown parser")
	ErrNoParsers     = errors.New("no parsers configured")
	ErrAllFailed     = errors.New("all parsers failed")
)

// RegistryConfig holds what the built-in streamers need.
type RegistryConfig struct {
	Client *kkdaiyt.Client
	FFmpeg string
	Proxy  string
}

// NewRegistry returns every built-in streamer keyed by name.
func NewRegistry(cfg RegistryConfig) map[string]parsers.Streamer {
	dec := ffmpeg.Decoder{Binary: cfg.FFmpeg}
	all := []parsers.Streamer{
		&kkdai.Streamer{Client: cfg.Client, Decoder: dec, Pipe: true},
		&kkdai.Streamer{Client: cfg.Client, Decoder: dec},
		&ytdlp.Streamer{Decoder: dec, Proxy: cfg.Proxy},
		&ytdlp.Streamer{Decoder: dec, Proxy: cfg.Proxy, Link: true},
	}
	reg := make(map[string]parsers.Streamer, len(all))
	for _, s := range all {
		reg[s.Name()] = s
	}
	return reg
}

// AutoOpener tries each streamer in order until one opens the track.
type AutoOpener struct {
	streamers []parsers.Streamer
}

func NewAutoOpener(order []string, registry map[string]parsers.Streamer) (*AutoOpener, error) {
	if len(order) == 0 {
		return nil, ErrNoParsers
	}
	o := &AutoOpener{}
	for _, name := range order {
		s, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
		}
		o.streamers = append(o.streamers, s)
	}
	return o, nil
}

func (o *AutoOpener) Open(ctx context.Context, track sources.Track) (io.ReadCloser, error) {
	var errs []error
	for _, s := range o.streamers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := s.Open(ctx, track)
		if err == nil {
			log.WithFields(logrus.Fields{"parser": s.Name(), "track": track.ID}).Debug("stream opened")
			return rc, nil
		}
		log.WithFields(logrus.Fields{"parser": s.Name(), "track": track.ID}).WithError(err).Warn("parser failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrAllFailed, track.ID, errors.Join(errs...))
}
