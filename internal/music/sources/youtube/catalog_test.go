package youtube

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshon/tunebooth/internal/music/sources"
)

type fakeSearcher struct {
	calls   int
	fails   int
	results []sources.Track
}

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]sources.Track, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errors.New("transient")
	}
	if limit > 0 && len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func TestCatalogSearchRetries(t *testing.T) {
	s := &fakeSearcher{
		fails:   1,
		results: []sources.Track{sources.NewTrack(sources.SourceYouTube, "a1", "A", time.Minute, nil, nil)},
	}
	c := NewCatalog(CatalogConfig{Searcher: s, Limit: 5})

	got, err := c.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("Search() = %+v, want one track a1", got)
	}
	if s.calls != 2 {
		t.Errorf("searcher calls = %d, want 2", s.calls)
	}
}

func TestCatalogSearchEmptyIsNotError(t *testing.T) {
	c := NewCatalog(CatalogConfig{Searcher: &fakeSearcher{}})
	got, err := c.Search(context.Background(), "nothing matches")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() = %d tracks, want 0", len(got))
	}
}

func TestParsePlaylistLines(t *testing.T) {
	out := "aaa111\tFirst\t61\nbad line\nbbb222\tSecond\tNA\n\n"
	got := parsePlaylistLines(out)
	if len(got) != 2 {
		t.Fatalf("got %d tracks, want 2", len(got))
	}
	if got[0].ID != "aaa111" || got[0].Title != "First" || got[0].DurationSeconds() != 61 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Duration != 0 {
		t.Errorf("second duration = %v, want 0", got[1].Duration)
	}
	if got[1].URL != "https://www.youtube.com/watch?v=bbb222" {
		t.Errorf("second url = %q", got[1].URL)
	}
}
