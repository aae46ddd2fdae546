package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/keshon/tunebooth/internal/music/parsers"
)

// Frames reads pcm one 20ms frame at a time and hands each to fn, waiting
// on gate before every read. It returns nil at end of input.
func Frames(ctx context.Context, pcm io.Reader, gate *Gate, fn func(frame []int16) error) error {
	pcmBuf := make([]byte, parsers.FrameBytes)
	intBuf := make([]int16, parsers.FrameSize*parsers.Channels)

	for {
		if err := gate.Wait(ctx); err != nil {
			return err
		}

		_, err := io.ReadFull(pcm, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		if err := fn(intBuf); err != nil {
			return err
		}
	}
}

// StreamToDiscord encodes pcm to opus and sends it over vc until the input
// ends or ctx is cancelled.
func StreamToDiscord(ctx context.Context, pcm io.Reader, gate *Gate, vc *discordgo.VoiceConnection) error {
	encoder, err := gopus.NewEncoder(parsers.SampleRate, parsers.Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	if err := vc.Speaking(true); err != nil {
		log.WithError(err).Debug("speaking on failed")
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			log.WithError(err).Debug("speaking off failed")
		}
	}()

	return Frames(ctx, pcm, gate, func(frame []int16) error {
		opus, err := encoder.Encode(frame, parsers.FrameSize, parsers.FrameBytes)
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}
		select {
		case vc.OpusSend <- opus:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
