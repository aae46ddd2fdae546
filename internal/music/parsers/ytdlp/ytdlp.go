package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/keshon/tunebooth/internal/music/parsers"
	"github.com/keshon/tunebooth/internal/music/parsers/ffmpeg"
	"github.com/keshon/tunebooth/internal/music/sources"
)

var ErrNoMediaURL = errors.New("yt-dlp returned no media url")

// Streamer decodes a track through yt-dlp. In pipe mode yt-dlp downloads
// into ffmpeg's stdin; otherwise only the resolved media URL is handed over.
type Streamer struct {
	Decoder ffmpeg.Decoder
	Proxy   string
	Link    bool
}

func (s *Streamer) Name() string {
	if s.Link {
		return "ytdlp-link"
	}
	return "ytdlp-pipe"
}

func (s *Streamer) base() *goytdlp.Command {
	dl := goytdlp.New().
		Format("bestaudio").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Quiet()
	if s.Proxy != "" {
		dl.Proxy(s.Proxy)
	}
	return dl
}

func (s *Streamer) command(ctx context.Context, url string) *exec.Cmd {
	return s.base().Output("-").BuildCommand(ctx, url)
}

func (s *Streamer) Open(ctx context.Context, track sources.Track) (io.ReadCloser, error) {
	if s.Link {
		return s.openLink(ctx, track)
	}

	cmd := s.command(ctx, track.URL)

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("yt-dlp start: %w", err)
	}

	return s.Decoder.Decode(ctx, "pipe:0", out, parsers.KillCmd(cmd))
}

func (s *Streamer) openLink(ctx context.Context, track sources.Track) (io.ReadCloser, error) {
	res, err := s.base().Print("%(url)s").Run(ctx, "--skip-download", track.URL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp resolve %s: %w", track.ID, err)
	}
	link := firstLine(res.Stdout)
	if link == "" {
		return nil, fmt.Errorf("%s: %w", track.ID, ErrNoMediaURL)
	}
	return s.Decoder.Decode(ctx, link, nil)
}

func firstLine(out string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(line)
}
