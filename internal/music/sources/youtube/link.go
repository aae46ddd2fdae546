package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/keshon/tunebooth/internal/music/sources"
)

// ErrUnrecognizedLink means the input is not one of the supported link shapes.
// Callers treat it as "search for this text instead".
var ErrUnrecognizedLink = errors.New("unrecognized link")

var (
	watchPrefixes = []string{
		"https://www.youtube.com/watch?",
		"https://youtube.com/watch?",
		"https://m.youtube.com/watch?",
		"https://music.youtube.com/watch?",
		"http://www.youtube.com/watch?",
		"http://youtube.com/watch?",
		"http://m.youtube.com/watch?",
		"http://music.youtube.com/watch?",
	}
	shortPrefixes = []string{
		"https://youtu.be/",
		"http://youtu.be/",
	}
	playlistPrefixes = []string{
		"https://www.youtube.com/playlist?",
		"https://youtube.com/playlist?",
		"https://m.youtube.com/playlist?",
		"https://music.youtube.com/playlist?",
		"http://www.youtube.com/playlist?",
		"http://youtube.com/playlist?",
		"http://m.youtube.com/playlist?",
		"http://music.youtube.com/playlist?",
	}

	idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type LinkKind int

const (
	LinkVideo LinkKind = iota + 1
	LinkPlaylist
)

// Link is the parsed form of a supported URL. VideoID is empty for
// playlist-only links. A watch URL that also names a list keeps ListID,
// but Kind reports it as a video and it resolves to that one video.
type Link struct {
	VideoID string
	ListID  string
}

func (l Link) Kind() LinkKind {
	if l.VideoID != "" {
		return LinkVideo
	}
	return LinkPlaylist
}

// WatchURL is the canonical watch URL of the linked video.
func (l Link) WatchURL() string {
	return sources.WatchURL(l.VideoID)
}

// ParseLink recognizes watch, short and playlist URLs by exact prefix.
// Auto-generated radio lists (ids starting with "RD") are dropped.
func ParseLink(input string) (Link, error) {
	input = strings.TrimSpace(input)
	input, _, _ = strings.Cut(input, "#")

	for _, p := range shortPrefixes {
		if rest, ok := strings.CutPrefix(input, p); ok {
			id, rawQuery, _ := strings.Cut(rest, "?")
			q, err := url.ParseQuery(rawQuery)
			if err != nil {
				return Link{}, fmt.Errorf("%w: %v", ErrUnrecognizedLink, err)
			}
			if id == "" {
				return Link{}, ErrUnrecognizedLink
			}
			return newLink(id, q.Get("list"))
		}
	}

	for _, p := range watchPrefixes {
		if rest, ok := strings.CutPrefix(input, p); ok {
			q, err := url.ParseQuery(rest)
			if err != nil {
				return Link{}, fmt.Errorf("%w: %v", ErrUnrecognizedLink, err)
			}
			if q.Get("v") == "" {
				return Link{}, ErrUnrecognizedLink
			}
			return newLink(q.Get("v"), q.Get("list"))
		}
	}

	for _, p := range playlistPrefixes {
		if rest, ok := strings.CutPrefix(input, p); ok {
			q, err := url.ParseQuery(rest)
			if err != nil {
				return Link{}, fmt.Errorf("%w: %v", ErrUnrecognizedLink, err)
			}
			return newLink("", q.Get("list"))
		}
	}

	return Link{}, ErrUnrecognizedLink
}

func newLink(videoID, listID string) (Link, error) {
	if videoID != "" && !idPattern.MatchString(videoID) {
		return Link{}, fmt.Errorf("%w: bad video id %q", ErrUnrecognizedLink, videoID)
	}
	if isRadioList(listID) {
		listID = ""
	}
	if listID != "" && !idPattern.MatchString(listID) {
		return Link{}, fmt.Errorf("%w: bad list id %q", ErrUnrecognizedLink, listID)
	}
	if videoID == "" && listID == "" {
		return Link{}, ErrUnrecognizedLink
	}
	return Link{VideoID: videoID, ListID: listID}, nil
}

// isRadioList reports auto-generated mixes (RD, RDMM, RDAMVM, ...), which
// are endless and personal, so they are never expanded.
func isRadioList(listID string) bool {
	return strings.HasPrefix(listID, "RD")
}
