package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/keshon/tunebooth/internal/music/parsers"
)

// Decoder turns any ffmpeg-readable input into raw PCM.
type Decoder struct {
	Binary string
}

// Args builds the ffmpeg argument list for input ("pipe:0" for stdin).
func (d Decoder) Args(input string) []string {
	args := []string{"-hide_banner"}
	if input != "pipe:0" {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(parsers.SampleRate),
		"-ac", strconv.Itoa(parsers.Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

// Decode starts ffmpeg reading input (or stdin when input is "pipe:0").
// Closing the result kills ffmpeg and then the upstream closers.
func (d Decoder) Decode(ctx context.Context, input string, stdin io.Reader, upstream ...io.Closer) (io.ReadCloser, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, d.Args(input)...)
	cmd.Stdin = stdin

	out, err := cmd.StdoutPipe()
	if err != nil {
		closeAll(upstream)
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		closeAll(upstream)
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	return parsers.NewPipeline(out, []*exec.Cmd{cmd}, upstream...), nil
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
