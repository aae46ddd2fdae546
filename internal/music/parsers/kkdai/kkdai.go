package kkdai

import (
	"context"
	"errors"
	"fmt"
	"io"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/keshon/tunebooth/internal/music/parsers/ffmpeg"
	"github.com/keshon/tunebooth/internal/music/sources"
)

var ErrNoAudioFormat = errors.New("no audio format available")

// Streamer resolves a YouTube video with kkdai and decodes it with ffmpeg.
// In pipe mode kkdai downloads the stream itself; otherwise ffmpeg is
// handed the signed media URL.
type Streamer struct {
	Client  *kkdai.Client
	Decoder ffmpeg.Decoder
	Pipe    bool
}

func (s *Streamer) Name() string {
	if s.Pipe {
		return "kkdai-pipe"
	}
	return "kkdai-link"
}

func (s *Streamer) Open(ctx context.Context, track sources.Track) (io.ReadCloser, error) {
	video, err := s.Client.GetVideoContext(ctx, track.ID)
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", track.ID, err)
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", track.ID, err)
	}

	if !s.Pipe {
		link, err := s.Client.GetStreamURLContext(ctx, video, format)
		if err != nil {
			return nil, fmt.Errorf("get stream url: %w", err)
		}
		return s.Decoder.Decode(ctx, link, nil)
	}

	body, _, err := s.Client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return s.Decoder.Decode(ctx, "pipe:0", body, body)
}

func pickFormat(formats kkdai.FormatList) (*kkdai.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, ErrNoAudioFormat
	}
	if audioOnly := withAudio.Type("audio"); len(audioOnly) > 0 {
		withAudio = audioOnly
	}
	withAudio.Sort()
	return &withAudio[0], nil
}
