package queue

import (
	"errors"
	"fmt"
	"slices"

	"github.com/keshon/tunebooth/internal/music/sources"
)

var ErrEmpty = errors.New("queue is empty")

// Queue is an ordered list of tracks. The head is the track now playing.
// It is not safe for concurrent use.
type Queue struct {
	tracks []sources.Track
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Append(tracks ...sources.Track) {
	q.tracks = append(q.tracks, tracks...)
}

func (q *Queue) Head() (sources.Track, bool) {
	if len(q.tracks) == 0 {
		return sources.Track{}, false
	}
	return q.tracks[0], true
}

// Pop removes and returns the head. Popping an empty queue is a bug in the
// caller and panics.
func (q *Queue) Pop() sources.Track {
	if len(q.tracks) == 0 {
		panic(fmt.Errorf("pop: %w", ErrEmpty))
	}
	head := q.tracks[0]
	q.tracks[0] = sources.Track{}
	q.tracks = q.tracks[1:]
	return head
}

func (q *Queue) Len() int { return len(q.tracks) }

func (q *Queue) Snapshot() []sources.Track {
	return slices.Clone(q.tracks)
}

func (q *Queue) Clear() {
	q.tracks = nil
}
