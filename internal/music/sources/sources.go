package sources

import (
	"fmt"
	"time"
)

const (
	SourceYouTube      = "youtube"
	SourceYouTubeMusic = "ytmusic"
	SourceMetadata     = "metadata"
)

// Thumbnail is one preview image of a track, ordered as the catalog returned them.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// Track is a resolved, playable unit of audio. Values are immutable once built;
// use NewTrack so every catalog path normalizes the same way.
type Track struct {
	ID         string
	URL        string
	Title      string
	Duration   time.Duration
	Thumbnails []Thumbnail
	Source     string
	Raw        any
}

// NewTrack builds a Track, rounding the duration to whole seconds and
// copying the thumbnail slice so the caller cannot mutate it later.
func NewTrack(source, id, title string, duration time.Duration, thumbs []Thumbnail, raw any) Track {
	t := Track{
		ID:       id,
		URL:      WatchURL(id),
		Title:    title,
		Duration: duration.Round(time.Second),
		Source:   source,
		Raw:      raw,
	}
	if len(thumbs) > 0 {
		t.Thumbnails = append([]Thumbnail(nil), thumbs...)
	}
	return t
}

// DurationSeconds returns the track length in whole seconds.
func (t Track) DurationSeconds() int {
	return int(t.Duration / time.Second)
}

// Thumbnail returns the largest thumbnail, if any.
func (t Track) Thumbnail() (Thumbnail, bool) {
	if len(t.Thumbnails) == 0 {
		return Thumbnail{}, false
	}
	best := t.Thumbnails[0]
	for _, th := range t.Thumbnails[1:] {
		if th.Width*th.Height > best.Width*best.Height {
			best = th
		}
	}
	return best, true
}

func (t Track) String() string {
	if t.Title == "" {
		return t.URL
	}
	return fmt.Sprintf("%s (%s)", t.Title, t.ID)
}

// WatchURL is the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
