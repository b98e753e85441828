package slideshow

import (
	"runtime"
	"time"

	"montage/internal/pkg/env"
	"montage/internal/slideshow/audio"
	"montage/internal/slideshow/codec"
	"montage/internal/slideshow/encode"
	"montage/internal/slideshow/overlay"
)

// Config holds the render settings shared by every job an Engine runs.
type Config struct {
	Width  int
	Height int
	FPS    int

	// Workers computing frames and the number of frames allowed between
	// computation and the encoder.
	Workers  int
	InFlight int

	// TempDir is where private render directories are created. Empty means
	// the system default.
	TempDir string

	AudioRate     int
	AudioChannels int
	LoopCrossfade time.Duration
	FadeOut       time.Duration

	FontSize float64

	FFmpegPath   string
	Preset       string
	CRF          int
	AudioBitrate string

	// MaxImagePixels bounds decoded slide images.
	MaxImagePixels int
}

func DefaultConfig() Config {
	return Config{
		Width:          720,
		Height:         1280,
		FPS:            24,
		Workers:        runtime.NumCPU(),
		AudioRate:      audio.DefaultRate,
		AudioChannels:  audio.DefaultChannels,
		LoopCrossfade:  audio.DefaultCrossfade,
		FadeOut:        audio.DefaultFadeOut,
		FontSize:       overlay.DefaultFontSize,
		FFmpegPath:     "ffmpeg",
		Preset:         encode.DefaultPreset,
		CRF:            encode.DefaultCRF,
		AudioBitrate:   encode.DefaultAudioBitrate,
		MaxImagePixels: codec.DefaultMaxPixels,
	}
}

// ConfigFromEnv overlays RENDER_*, FFMPEG_*, VIDEO_* and AUDIO_* variables on
// DefaultConfig.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	c.Width = env.Int("RENDER_WIDTH", c.Width)
	c.Height = env.Int("RENDER_HEIGHT", c.Height)
	c.FPS = env.Int("RENDER_FPS", c.FPS)
	c.Workers = env.Int("RENDER_WORKERS", c.Workers)
	c.InFlight = env.Int("RENDER_INFLIGHT_FRAMES", c.InFlight)
	c.TempDir = env.Str("RENDER_TMP_DIR", c.TempDir)
	c.FontSize = float64(env.Int("RENDER_FONT_SIZE", int(c.FontSize)))
	c.MaxImagePixels = env.Int("RENDER_MAX_IMAGE_PIXELS", c.MaxImagePixels)
	c.FFmpegPath = env.Str("FFMPEG_PATH", c.FFmpegPath)
	c.Preset = env.Str("FFMPEG_PRESET", c.Preset)
	c.CRF = env.Int("VIDEO_CRF", c.CRF)
	c.AudioBitrate = env.Str("AUDIO_BITRATE", c.AudioBitrate)
	c.AudioRate = env.Int("AUDIO_SAMPLE_RATE", c.AudioRate)
	c.LoopCrossfade = env.Duration("AUDIO_LOOP_CROSSFADE", c.LoopCrossfade)
	c.FadeOut = env.Duration("AUDIO_FADE_OUT", c.FadeOut)
	return c
}

// normalize fills zero values from DefaultConfig. H.264 with yuv420p needs
// even dimensions, so odd sizes are rounded down.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	c.Width &^= 1
	c.Height &^= 1
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.InFlight <= 0 {
		c.InFlight = 2 * c.Workers
	}
	if c.AudioRate <= 0 {
		c.AudioRate = d.AudioRate
	}
	if c.AudioChannels <= 0 {
		c.AudioChannels = d.AudioChannels
	}
	if c.FontSize <= 0 {
		c.FontSize = d.FontSize
	}
	if c.MaxImagePixels <= 0 {
		c.MaxImagePixels = d.MaxImagePixels
	}
	return c
}
