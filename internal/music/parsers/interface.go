package parsers

import (
	"context"
	"io"

	"github.com/keshon/tunebooth/internal/music/sources"
)

// Streamer opens a track as raw PCM (s16le, 48 kHz, stereo). The returned
// reader owns every process and connection behind it; Close releases them.
type Streamer interface {
	Name() string
	Open(ctx context.Context, track sources.Track) (io.ReadCloser, error)
}
