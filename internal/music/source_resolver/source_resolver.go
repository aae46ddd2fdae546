package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/tunebooth/internal/music/sources"
	"github.com/keshon/tunebooth/internal/music/sources/youtube"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "resolver")

var (
	ErrTrackNotFound  = errors.New("track not found")
	ErrNotAPlaylist   = errors.New("link has no playlist")
	ErrUnsupportedURL = errors.New("unsupported URL")

	errNoExactMatch = errors.New("no exact id match")
)

// Catalog is the search and metadata provider behind the resolver.
type Catalog interface {
	// Search returns candidates in provider order; no match is an empty slice.
	Search(ctx context.Context, query string) ([]sources.Track, error)
	// Title fetches lightweight metadata: just the title of a video.
	Title(ctx context.Context, id string) (string, error)
	// Video fetches full metadata for a video.
	Video(ctx context.Context, id string) (sources.Track, error)
	// Playlist lists the entries of a playlist.
	Playlist(ctx context.Context, listID string) ([]sources.Track, error)
}

// SourceResolver turns links and free text into Tracks. It holds no state
// besides its catalog and is safe for concurrent use.
type SourceResolver struct {
	catalog Catalog
}

func New(catalog Catalog) *SourceResolver {
	return &SourceResolver{catalog: catalog}
}

// ParseLink parses a supported URL; see youtube.ParseLink.
func (r *SourceResolver) ParseLink(input string) (youtube.Link, error) {
	return youtube.ParseLink(input)
}

// ResolveByQuery returns search candidates in provider order. An empty
// result is a normal outcome, not an error.
func (r *SourceResolver) ResolveByQuery(ctx context.Context, text string) ([]sources.Track, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []sources.Track{}, nil
	}
	tracks, err := r.catalog.Search(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	if tracks == nil {
		tracks = []sources.Track{}
	}
	return tracks, nil
}

type rung struct {
	name    string
	resolve func(ctx context.Context, link youtube.Link) (sources.Track, error)
}

// ResolveByLink finds the exact video a link points at. The search index is
// sometimes stale, so each rung trades specificity for availability:
// watch URL search, raw id search, title search, then direct metadata.
func (r *SourceResolver) ResolveByLink(ctx context.Context, link youtube.Link) (sources.Track, error) {
	if link.VideoID == "" {
		return sources.Track{}, fmt.Errorf("%w: link has no video id", ErrTrackNotFound)
	}

	rungs := []rung{
		{"watch url search", func(ctx context.Context, l youtube.Link) (sources.Track, error) {
			return r.searchExact(ctx, l.WatchURL(), l.VideoID)
		}},
		{"id search", func(ctx context.Context, l youtube.Link) (sources.Track, error) {
			return r.searchExact(ctx, l.VideoID, l.VideoID)
		}},
		{"title search", func(ctx context.Context, l youtube.Link) (sources.Track, error) {
			title, err := r.catalog.Title(ctx, l.VideoID)
			if err != nil {
				return sources.Track{}, err
			}
			return r.searchExact(ctx, title, l.VideoID)
		}},
		{"direct metadata", func(ctx context.Context, l youtube.Link) (sources.Track, error) {
			t, err := r.catalog.Video(ctx, l.VideoID)
			if err != nil {
				return sources.Track{}, err
			}
			if t.ID != l.VideoID {
				return sources.Track{}, fmt.Errorf("metadata returned id %q", t.ID)
			}
			return t, nil
		}},
	}

	var errs []error
	for _, rg := range rungs {
		if err := ctx.Err(); err != nil {
			return sources.Track{}, err
		}
		t, err := rg.resolve(ctx, link)
		if err == nil {
			log.WithField("id", link.VideoID).Debugf("Resolved via %s", rg.name)
			return t, nil
		}
		log.WithField("id", link.VideoID).Debugf("Rung %q missed: %v", rg.name, err)
		errs = append(errs, fmt.Errorf("%s: %w", rg.name, err))
	}

	return sources.Track{}, fmt.Errorf("%w: %s: %w", ErrTrackNotFound, link.VideoID, errors.Join(errs...))
}

func (r *SourceResolver) searchExact(ctx context.Context, query, id string) (sources.Track, error) {
	candidates, err := r.catalog.Search(ctx, query)
	if err != nil {
		return sources.Track{}, err
	}
	if t, ok := FirstMatch(candidates, id); ok {
		return t, nil
	}
	return sources.Track{}, errNoExactMatch
}

// FirstMatch returns the first candidate with the given id. Provider order
// is the only tie-break.
func FirstMatch(candidates []sources.Track, id string) (sources.Track, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}
	return sources.Track{}, false
}

// ResolvePlaylist expands a playlist link into its entries.
func (r *SourceResolver) ResolvePlaylist(ctx context.Context, link youtube.Link) ([]sources.Track, error) {
	if link.ListID == "" {
		return nil, ErrNotAPlaylist
	}
	tracks, err := r.catalog.Playlist(ctx, link.ListID)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", link.ListID, err)
	}
	return tracks, nil
}

// Resolve is the "link or search text" path used by commands. Video links
// resolve to one track, playlist links to their entries, and text to the
// first search candidate (or nothing).
func (r *SourceResolver) Resolve(ctx context.Context, input string) ([]sources.Track, error) {
	link, err := r.ParseLink(input)
	switch {
	case err == nil && link.Kind() == youtube.LinkPlaylist:
		return r.ResolvePlaylist(ctx, link)
	case err == nil:
		t, err := r.ResolveByLink(ctx, link)
		if err != nil {
			return nil, err
		}
		return []sources.Track{t}, nil
	case !errors.Is(err, youtube.ErrUnrecognizedLink):
		return nil, err
	case isURL(input):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, strings.TrimSpace(input))
	}

	candidates, err := r.ResolveByQuery(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}
	return candidates[:1], nil
}
