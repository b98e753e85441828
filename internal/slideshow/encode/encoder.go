// Package encode muxes the frame stream and the audio track into a video file.
package encode

import (
	"context"
	"image"
	"io"
	"strings"
	"syscall"

	"montage/internal/pkg/errors"
)

// Format describes the streams handed to an Encoder.
type Format struct {
	Width, Height int
	FPS           int
	AudioRate     int
	AudioChannels int
}

// Encoder consumes frames in presentation order. Begin starts a session
// writing to dst; audio, when not nil, is read concurrently with the frames
// and must hold interleaved s16le PCM. End finalizes the file. Abort stops
// the session without finalizing and is safe to call at any point, including
// after End.
type Encoder interface {
	Begin(ctx context.Context, f Format, audio io.Reader, dst string) error
	EncodeFrame(img *image.RGBA) error
	End() error
	Abort()
}

// Factory returns a fresh Encoder for one render.
type Factory func() Encoder

var exhaustedMarkers = []string{
	"cannot allocate memory",
	"no space left",
	"out of memory",
	"enomem",
	"enospc",
	"disk quota exceeded",
}

// Classify maps a failed encoder session to a coded error. output is the
// tail of the encoder's diagnostics.
func Classify(ctx context.Context, err error, output string) error {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		return errors.Canceled("render.encode", ctx.Err())
	}
	if errors.Is(err, syscall.ENOMEM) || errors.Is(err, syscall.ENOSPC) {
		return errors.ResourceExhausted(err, output)
	}
	lower := strings.ToLower(output)
	for _, m := range exhaustedMarkers {
		if strings.Contains(lower, m) {
			return errors.ResourceExhausted(err, output)
		}
	}
	return errors.Encoder(err, output)
}
