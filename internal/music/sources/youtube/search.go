package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/raitonoberu/ytmusic"
	"github.com/raitonoberu/ytsearch"
)

// Searcher returns candidates for a free-text query in provider order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]sources.Track, error)
}

// NewSearcher picks the search backend by name ("youtube" or "ytmusic").
func NewSearcher(backend string) (Searcher, error) {
	switch backend {
	case "", sources.SourceYouTube:
		return VideoSearcher{}, nil
	case sources.SourceYouTubeMusic:
		return MusicSearcher{}, nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", backend)
	}
}

// VideoSearcher searches regular YouTube videos.
type VideoSearcher struct{}

func (VideoSearcher) Search(ctx context.Context, query string, limit int) ([]sources.Track, error) {
	res, err := callContext(ctx, func() (*ytsearch.SearchResult, error) {
		return ytsearch.VideoSearch(query).Next()
	})
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	tracks := make([]sources.Track, 0, len(res.Videos))
	for _, v := range res.Videos {
		if v.ID == "" {
			continue
		}
		thumbs := make([]sources.Thumbnail, 0, len(v.Thumbnails))
		for _, th := range v.Thumbnails {
			thumbs = append(thumbs, sources.Thumbnail{URL: th.URL, Width: int(th.Width), Height: int(th.Height)})
		}
		tracks = append(tracks, sources.NewTrack(sources.SourceYouTube, v.ID, v.Title,
			time.Duration(v.Duration)*time.Second, thumbs, v))
		if limit > 0 && len(tracks) == limit {
			break
		}
	}
	return tracks, nil
}

// MusicSearcher searches the YouTube Music song catalog.
type MusicSearcher struct{}

func (MusicSearcher) Search(ctx context.Context, query string, limit int) ([]sources.Track, error) {
	res, err := callContext(ctx, func() (*ytmusic.SearchResult, error) {
		return ytmusic.TrackSearch(query).Next()
	})
	if err != nil {
		return nil, fmt.Errorf("ytmusic search: %w", err)
	}

	tracks := make([]sources.Track, 0, len(res.Tracks))
	for _, v := range res.Tracks {
		if v.VideoID == "" {
			continue
		}
		title := v.Title
		if len(v.Artists) > 0 {
			title = v.Artists[0].Name + " - " + title
		}
		thumbs := make([]sources.Thumbnail, 0, len(v.Thumbnails))
		for _, th := range v.Thumbnails {
			thumbs = append(thumbs, sources.Thumbnail{URL: th.URL, Width: int(th.Width), Height: int(th.Height)})
		}
		tracks = append(tracks, sources.NewTrack(sources.SourceYouTubeMusic, v.VideoID, title,
			time.Duration(v.Duration)*time.Second, thumbs, v))
		if limit > 0 && len(tracks) == limit {
			break
		}
	}
	return tracks, nil
}

// callContext runs fn, which takes no context, and gives up once ctx is done.
// An abandoned call keeps running in the background until it returns.
func callContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
