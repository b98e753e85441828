// Package audio fits background music to the length of a render.
package audio

import (
	"encoding/binary"
	"io"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/slideshow/codec"
)

const (
	DefaultRate      = 44100
	DefaultChannels  = 2
	DefaultCrossfade = 500 * time.Millisecond
	DefaultFadeOut   = time.Second
)

type Options struct {
	Rate     int
	Channels int
	// Crossfade at each loop point of a source shorter than the track.
	// Zero means the default; negative disables it.
	Crossfade time.Duration
	// FadeOut applied to the end of the track, with the same zero rule.
	FadeOut time.Duration
}

func (o Options) withDefaults() Options {
	if o.Rate <= 0 {
		o.Rate = DefaultRate
	}
	if o.Channels <= 0 {
		o.Channels = DefaultChannels
	}
	switch {
	case o.Crossfade == 0:
		o.Crossfade = DefaultCrossfade
	case o.Crossfade < 0:
		o.Crossfade = 0
	}
	switch {
	case o.FadeOut == 0:
		o.FadeOut = DefaultFadeOut
	case o.FadeOut < 0:
		o.FadeOut = 0
	}
	return o
}

// Track is an io.Reader of interleaved s16le PCM holding exactly
// floor(duration*rate) sample frames. Samples are computed as they are read.
type Track struct {
	src      *codec.PCM
	channels int
	rate     int
	frames   int
	size     int64
	off      int64

	loop   bool
	xfade  int
	period int
	fade   int
}

// NewTrack trims or loops src to duration. A nil or empty src gives silence
// of the same length.
func NewTrack(src *codec.PCM, duration time.Duration, opts Options) (*Track, error) {
	opts = opts.withDefaults()
	if duration < 0 {
		return nil, errors.Validation("audio duration must not be negative")
	}
	if src != nil && src.Frames() > 0 && src.Rate != opts.Rate {
		return nil, errors.FailedPrecondition("audio source rate does not match track rate").
			WithFields(map[string]any{"source_rate": src.Rate, "track_rate": opts.Rate})
	}

	frames := int(codec.Ticks(duration, opts.Rate))
	t := &Track{
		channels: opts.Channels,
		rate:     opts.Rate,
		frames:   frames,
		size:     int64(frames) * int64(opts.Channels) * 2,
	}
	if src == nil || src.Frames() == 0 {
		return t, nil
	}

	t.src = src
	n := src.Frames()
	if n < frames {
		t.loop = true
		t.xfade = min(samplesOf(opts.Crossfade, opts.Rate), n/2)
		t.period = n - t.xfade
	}
	t.fade = min(samplesOf(opts.FadeOut, opts.Rate), frames)
	return t, nil
}

func samplesOf(d time.Duration, rate int) int {
	return int(codec.Ticks(d, rate))
}

// Frames is the number of sample frames in the track.
func (t *Track) Frames() int { return t.frames }

// Size is the track length in bytes.
func (t *Track) Size() int64 { return t.size }

func (t *Track) Rate() int     { return t.rate }
func (t *Track) Channels() int { return t.channels }

func (t *Track) Duration() time.Duration {
	return codec.Elapsed(int64(t.frames), t.rate)
}

// Silent reports whether the track carries no source audio.
func (t *Track) Silent() bool { return t.src == nil }

func (t *Track) Read(p []byte) (int, error) {
	if t.off >= t.size {
		return 0, io.EOF
	}
	n := 0
	var b [2]byte
	for n < len(p) && t.off < t.size {
		i := int(t.off / 2)
		binary.LittleEndian.PutUint16(b[:], uint16(t.sample(i/t.channels, i%t.channels)))
		c := copy(p[n:], b[t.off%2:])
		n += c
		t.off += int64(c)
	}
	return n, nil
}

// sample computes output channel c of frame f.
func (t *Track) sample(f, c int) int16 {
	if t.src == nil {
		return 0
	}
	var v float64
	switch {
	case !t.loop:
		v = t.at(f, c)
	default:
		k, p := f/t.period, f%t.period
		v = t.at(p, c)
		if k > 0 && p < t.xfade {
			g := (float64(p) + 0.5) / float64(t.xfade)
			v = v*g + t.at(t.period+p, c)*(1-g)
		}
	}
	if t.fade > 0 && f >= t.frames-t.fade {
		v *= float64(t.frames-1-f) / float64(t.fade)
	}
	return clamp16(v)
}

// at reads the source, mapping output channels onto source channels.
func (t *Track) at(f, c int) float64 {
	return float64(t.src.Samples[f*t.src.Channels+c%t.src.Channels])
}

func clamp16(v float64) int16 {
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	case v >= 0:
		return int16(v + 0.5)
	default:
		return int16(v - 0.5)
	}
}
