package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// FFmpegAudio decodes any container ffmpeg understands into PCM at a fixed
// rate and channel count.
type FFmpegAudio struct {
	Path     string
	Rate     int
	Channels int
}

func (f FFmpegAudio) DecodeAudio(ctx context.Context, r io.Reader) (*PCM, error) {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}
	rate, channels := f.Rate, f.Channels
	if rate <= 0 {
		rate = 44100
	}
	if channels <= 0 {
		channels = 2
	}

	cmd := exec.CommandContext(ctx, path,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
	var out bytes.Buffer
	tail := NewStderrTail(20)
	cmd.Stdin = r
	cmd.Stdout = &out
	cmd.Stderr = tail

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg audio decode: %w: %s", err, tail.String())
	}
	pcm := FromS16LE(out.Bytes(), rate, channels)
	if pcm.Frames() == 0 {
		return nil, fmt.Errorf("ffmpeg audio decode: no samples in input")
	}
	return pcm, nil
}
