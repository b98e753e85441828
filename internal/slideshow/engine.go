// Package slideshow renders validated slideshow jobs into MP4 files.
//
// The engine wires the pipeline together: the timeline builder composes
// frames on a worker pool, the audio builder fits the background track to the
// video length and an encoder muxes both into a file that only becomes
// visible once it is complete.
package slideshow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/slideshow/audio"
	"montage/internal/slideshow/codec"
	"montage/internal/slideshow/encode"
	"montage/internal/slideshow/job"
	"montage/internal/slideshow/overlay"
	"montage/internal/slideshow/timeline"
)

// ProgressFunc receives the number of frames handed to the encoder so far.
type ProgressFunc func(done, total int)

type Engine struct {
	cfg       Config
	encoders  encode.Factory
	log       *logger.Logger
	progress  ProgressFunc
	captioner *overlay.Captioner
	picker    *job.Picker
}

type Option func(*Engine)

func WithEncoder(f encode.Factory) Option {
	return func(e *Engine) { e.encoders = f }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithProgress sets the default progress callback for Render.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg.normalize()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	e.log = e.log.WithComponent("engine")
	if e.encoders == nil {
		e.encoders = encode.NewFFmpeg(e.cfg.FFmpegPath, e.cfg.Preset, e.cfg.CRF, e.cfg.AudioBitrate, e.log)
	}
	e.captioner = overlay.NewCaptioner(e.cfg.Width, e.cfg.Height, e.cfg.FontSize)
	e.picker = job.NewPicker(uint64(time.Now().UnixNano()))
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Intake returns a job intake decoding with the engine's settings. Random
// transitions are drawn from a pool shared by every job of this engine
// unless the input carries its own seed.
func (e *Engine) Intake() *job.Intake {
	return &job.Intake{
		Images: codec.Images{MaxPixels: e.cfg.MaxImagePixels},
		Audio: codec.FFmpegAudio{
			Path:     e.cfg.FFmpegPath,
			Rate:     e.cfg.AudioRate,
			Channels: e.cfg.AudioChannels,
		},
		Picker: e.picker,
	}
}

// Render encodes j into a temporary file and returns it opened for reading.
// Nothing is left on disk when Render fails.
func (e *Engine) Render(ctx context.Context, j *job.RenderJob) (*Video, error) {
	return e.RenderWithProgress(ctx, j, e.progress)
}

// RenderWithProgress is Render with a per-call progress callback.
func (e *Engine) RenderWithProgress(ctx context.Context, j *job.RenderJob, progress ProgressFunc) (*Video, error) {
	if j == nil {
		return nil, errors.Validation("render job is required")
	}
	if err := j.Claim(); err != nil {
		return nil, err
	}
	log := e.log.FromContext(ctx).WithRender(e.cfg.Width, e.cfg.Height, e.cfg.FPS)

	b := timeline.NewBuilder(j, timeline.Options{
		Width:     e.cfg.Width,
		Height:    e.cfg.Height,
		FPS:       e.cfg.FPS,
		Workers:   e.cfg.Workers,
		InFlight:  e.cfg.InFlight,
		Captioner: e.captioner,
		Log:       log,
		Progress:  progress,
	})
	plan := b.Plan()
	if plan.Total == 0 {
		return nil, errors.ValidationField("slides",
			fmt.Sprintf("slideshow is shorter than one frame at %d fps", e.cfg.FPS))
	}

	dir, err := os.MkdirTemp(e.cfg.TempDir, "render-*")
	if err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return nil, errors.ResourceExhausted(err, err.Error())
		}
		return nil, errors.Wrap(err, "engine.render", "create render directory")
	}
	ok := false
	defer func() {
		if !ok {
			_ = os.RemoveAll(dir)
		}
	}()

	track, err := audio.NewTrack(j.Audio(), plan.Duration(), audio.Options{
		Rate:      e.cfg.AudioRate,
		Channels:  e.cfg.AudioChannels,
		Crossfade: e.cfg.LoopCrossfade,
		FadeOut:   e.cfg.FadeOut,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log.Info("render started",
		"slides", j.Len(),
		"frames", plan.Total,
		"duration", plan.Duration().String(),
		"audio", !track.Silent(),
	)

	partial := filepath.Join(dir, "slideshow.partial.mp4")
	enc := e.encoders()
	format := encode.Format{
		Width:         e.cfg.Width,
		Height:        e.cfg.Height,
		FPS:           e.cfg.FPS,
		AudioRate:     track.Rate(),
		AudioChannels: track.Channels(),
	}
	if err := enc.Begin(ctx, format, track, partial); err != nil {
		enc.Abort()
		return nil, e.fail(ctx, log, err)
	}

	err = b.Run(ctx, func(f timeline.Frame) error {
		return enc.EncodeFrame(f.Image)
	})
	if err == nil {
		err = enc.End()
	}
	if err != nil {
		enc.Abort()
		return nil, e.fail(ctx, log, err)
	}

	final := filepath.Join(dir, "slideshow.mp4")
	if err := os.Rename(partial, final); err != nil {
		return nil, e.fail(ctx, log, errors.Wrap(err, "engine.render", "finalize output"))
	}
	f, err := os.Open(final)
	if err != nil {
		return nil, e.fail(ctx, log, errors.Wrap(err, "engine.render", "open output"))
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, e.fail(ctx, log, errors.Wrap(err, "engine.render", "stat output"))
	}

	ok = true
	log.Info("render finished",
		"frames", plan.Total,
		"bytes", st.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Video{
		File:     f,
		dir:      dir,
		size:     st.Size(),
		frames:   plan.Total,
		duration: plan.Duration(),
	}, nil
}

func (e *Engine) fail(ctx context.Context, log *logger.Logger, err error) error {
	if ctx.Err() != nil && !errors.IsCode(err, errors.CodeCanceled) {
		err = errors.Canceled("engine.render", ctx.Err())
	}
	var ce *errors.Error
	if !errors.As(err, &ce) {
		err = errors.Wrap(err, "engine.render", "render failed")
	}
	log.WithError(err).Warn("render failed")
	return err
}

// Video is a finished render. Closing it deletes the file.
type Video struct {
	*os.File
	dir      string
	size     int64
	frames   int
	duration time.Duration
	once     sync.Once
}

func (v *Video) Size() int64             { return v.size }
func (v *Video) Frames() int             { return v.frames }
func (v *Video) Duration() time.Duration { return v.duration }

func (v *Video) Close() error {
	var err error
	v.once.Do(func() {
		err = v.File.Close()
		if rerr := os.RemoveAll(v.dir); err == nil {
			err = rerr
		}
	})
	return err
}
