package parsers

import (
	"errors"
	"io"
	"os/exec"
	"sync"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz
)

// FrameBytes is the size of one PCM frame in bytes.
const FrameBytes = FrameSize * Channels * 2

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// Pipeline is PCM output of one or more external processes.
type Pipeline struct {
	io.Reader
	once    sync.Once
	cmds    []*exec.Cmd
	closers []io.Closer
	err     error
}

// NewPipeline wraps r; Close kills cmds and closes upstream closers once.
func NewPipeline(r io.Reader, cmds []*exec.Cmd, upstream ...io.Closer) *Pipeline {
	return &Pipeline{Reader: r, cmds: cmds, closers: upstream}
}

func (p *Pipeline) Close() error {
	p.once.Do(func() {
		var errs []error
		for _, c := range p.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, cmd := range p.cmds {
			if cmd.Process == nil {
				continue
			}
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
		p.err = errors.Join(errs...)
	})
	return p.err
}

// KillCmd returns a closer that stops a started command.
func KillCmd(cmd *exec.Cmd) io.Closer {
	return CloserFunc(func() error {
		if cmd.Process == nil {
			return nil
		}
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil
	})
}
