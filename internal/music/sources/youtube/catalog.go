package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/keshon/tunebooth/pkg/retrylimit"
	kkdai "github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "youtube")

var ErrNoMetadata = errors.New("no metadata returned")

type CatalogConfig struct {
	Searcher   Searcher
	Limit      int
	HTTPClient *http.Client
	// Proxy is passed to yt-dlp; the HTTP client carries its own.
	Proxy string
}

// Catalog is the YouTube-backed search and metadata provider.
type Catalog struct {
	searcher Searcher
	limit    int
	client   *kkdai.Client
	limiter  *retrylimit.Limiter
	proxy    string
}

func NewCatalog(cfg CatalogConfig) *Catalog {
	if cfg.Searcher == nil {
		cfg.Searcher = VideoSearcher{}
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	return &Catalog{
		searcher: cfg.Searcher,
		limit:    cfg.Limit,
		client:   &kkdai.Client{HTTPClient: cfg.HTTPClient},
		limiter:  retrylimit.NewLimiter(5, 1, 10),
		proxy:    cfg.Proxy,
	}
}

// Client exposes the underlying kkdai client so stream parsers share its transport.
func (c *Catalog) Client() *kkdai.Client {
	return c.client
}

// Search returns up to the configured number of candidates in provider order.
func (c *Catalog) Search(ctx context.Context, query string) ([]sources.Track, error) {
	var tracks []sources.Track
	err := retrylimit.Do(ctx, c.limiter, retrylimit.Policy{Attempts: 3}, func(ctx context.Context) error {
		var err error
		tracks, err = c.searcher.Search(ctx, query, c.limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.WithField("query", query).Debugf("Search returned %d candidates", len(tracks))
	return tracks, nil
}

func (c *Catalog) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if c.proxy != "" {
		cmd.Proxy(c.proxy)
	}
	return cmd
}

// Title fetches just the title of a video through yt-dlp without touching media.
func (c *Catalog) Title(ctx context.Context, id string) (string, error) {
	res, err := c.command().
		Print("%(title)s").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", sources.WatchURL(id))
	if err != nil {
		return "", fmt.Errorf("yt-dlp title %s: %w", id, err)
	}
	title := strings.TrimSpace(res.Stdout)
	if title == "" {
		return "", fmt.Errorf("%w for %s", ErrNoMetadata, id)
	}
	title, _, _ = strings.Cut(title, "\n")
	return title, nil
}

// Video fetches full metadata for a video id straight from the player API.
func (c *Catalog) Video(ctx context.Context, id string) (sources.Track, error) {
	video, err := c.client.GetVideoContext(ctx, id)
	if err != nil {
		return sources.Track{}, fmt.Errorf("fetch video %s: %w", id, err)
	}
	if video.ID == "" {
		return sources.Track{}, fmt.Errorf("%w for %s", ErrNoMetadata, id)
	}

	thumbs := make([]sources.Thumbnail, 0, len(video.Thumbnails))
	for _, th := range video.Thumbnails {
		thumbs = append(thumbs, sources.Thumbnail{URL: th.URL, Width: int(th.Width), Height: int(th.Height)})
	}
	return sources.NewTrack(sources.SourceMetadata, video.ID, video.Title, video.Duration, thumbs, video), nil
}

// Playlist lists the entries of a playlist without resolving their media.
func (c *Catalog) Playlist(ctx context.Context, listID string) ([]sources.Track, error) {
	res, err := c.command().
		FlatPlaylist().
		Print("%(id)s\t%(title)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", c.limit)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "https://www.youtube.com/playlist?list="+listID)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist %s: %w", listID, err)
	}
	return parsePlaylistLines(res.Stdout), nil
}

// parsePlaylistLines reads "id<TAB>title<TAB>duration" lines, skipping
// malformed ones. Unknown durations ("NA") become zero.
func parsePlaylistLines(out string) []sources.Track {
	var tracks []sources.Track
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 || !idPattern.MatchString(parts[0]) {
			continue
		}
		var d time.Duration
		if secs, err := strconv.ParseFloat(parts[2], 64); err == nil {
			d = time.Duration(secs * float64(time.Second))
		}
		tracks = append(tracks, sources.NewTrack(sources.SourceYouTube, parts[0], parts[1], d, nil, nil))
	}
	return tracks
}
