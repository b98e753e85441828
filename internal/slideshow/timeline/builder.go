package timeline

import (
	"context"
	"image"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"montage/internal/pkg/logger"
	"montage/internal/slideshow/effect"
	"montage/internal/slideshow/job"
	"montage/internal/slideshow/overlay"
	"montage/internal/slideshow/transition"
)

// Frame is one composited output frame. The receiver owns Image.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     *image.RGBA
}

type Options struct {
	Width, Height int
	FPS           int
	// Workers computing frames; defaults to GOMAXPROCS.
	Workers int
	// InFlight bounds frames computed but not yet emitted; defaults to 2*Workers.
	InFlight  int
	Captioner *overlay.Captioner
	Log       *logger.Logger
	// Progress is called from the emitting goroutine after each frame.
	Progress func(done, total int)
}

// Builder computes frames on a worker pool and hands them to emit strictly
// in index order. Per-slide plates and captions are prepared on first use
// and dropped once the slide's last frame has been emitted.
type Builder struct {
	job    *job.RenderJob
	plan   Plan
	opts   Options
	log    *logger.Logger
	slides []*slideState
}

type slideState struct {
	mu      sync.Mutex
	plate   *effect.Plate
	caption *overlay.Caption
	ready   bool
}

func NewBuilder(j *job.RenderJob, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.InFlight <= 0 {
		opts.InFlight = 2 * opts.Workers
	}
	if opts.Captioner == nil {
		opts.Captioner = overlay.NewCaptioner(opts.Width, opts.Height, overlay.DefaultFontSize)
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}

	slides := j.Slides()
	durations := make([]time.Duration, len(slides))
	kinds := make([]job.TransitionKind, len(slides))
	for i, s := range slides {
		durations[i] = s.Duration
		kinds[i] = s.Transition
	}
	b := &Builder{
		job:    j,
		plan:   NewPlan(durations, kinds, j.TransitionWindow(), opts.FPS),
		opts:   opts,
		log:    log.WithComponent("timeline"),
		slides: make([]*slideState, len(slides)),
	}
	for i := range b.slides {
		b.slides[i] = &slideState{}
	}
	return b
}

func (b *Builder) Plan() Plan { return b.plan }

// Run emits every frame of the plan in order. It stops at the first emit
// error or when ctx is canceled; frames not yet emitted are dropped.
func (b *Builder) Run(ctx context.Context, emit func(Frame) error) error {
	total := b.plan.Total
	b.log.Debug("timeline planned",
		"frames", total,
		"transition_frames", b.plan.TransitionFrames(),
		"workers", b.opts.Workers,
		"in_flight", b.opts.InFlight,
	)

	g, gctx := errgroup.WithContext(ctx)
	indexes := make(chan int)
	results := make(chan Frame, b.opts.InFlight)
	tokens := make(chan struct{}, b.opts.InFlight)

	g.Go(func() error {
		defer close(indexes)
		for f := 0; f < total; f++ {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case indexes <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	for w := 0; w < b.opts.Workers; w++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for f := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				fr := Frame{Index: f, Timestamp: b.plan.Timestamp(f), Image: b.compose(f)}
				select {
				case results <- fr:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	g.Go(func() error {
		pending := make(map[int]Frame, b.opts.InFlight)
		next := 0
		for fr := range results {
			pending[fr.Index] = fr
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := emit(ready); err != nil {
					return err
				}
				<-tokens
				b.releaseAfter(next)
				next++
				if b.opts.Progress != nil {
					b.opts.Progress(next, total)
				}
			}
		}
		if next < total {
			if err := gctx.Err(); err != nil {
				return err
			}
			return context.Canceled
		}
		return nil
	})

	err := g.Wait()
	for _, s := range b.slides {
		s.release()
	}
	return err
}

// compose builds frame f from one slide or the blend of two.
func (b *Builder) compose(f int) *image.RGBA {
	ref := b.plan.At(f)
	a := b.slideFrame(ref.Slide, ref.T, 1)
	if ref.Next < 0 {
		return a
	}
	reveal := 1.0
	if ref.Kind == job.TransitionTypewriter {
		reveal = ref.U
	}
	in := b.slideFrame(ref.Next, ref.TNext, reveal)
	dst := image.NewRGBA(a.Rect)
	transition.Blend(dst, a, in, ref.Kind, ref.U)
	return dst
}

func (b *Builder) slideFrame(i int, t, reveal float64) *image.RGBA {
	s := b.job.Slide(i)
	plate, caption := b.prepare(i)
	frame := effect.Render(plate, s.Effect, t)
	return overlay.Apply(frame, s.Darkening, caption, reveal)
}

func (b *Builder) prepare(i int) (*effect.Plate, *overlay.Caption) {
	st := b.slides[i]
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.ready {
		start := time.Now()
		s := b.job.Slide(i)
		st.plate = effect.Prepare(s.Image, b.opts.Width, b.opts.Height)
		st.caption = b.opts.Captioner.Layout(s.Text, s.Anchor())
		st.ready = true
		b.log.Debug("slide prepared",
			"slide", i,
			"effect", string(s.Effect),
			"captioned", st.caption != nil,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return st.plate, st.caption
}

// releaseAfter drops slides whose last frame is f.
func (b *Builder) releaseAfter(f int) {
	for i, sp := range b.plan.Spans {
		if sp.End-1 == f {
			b.slides[i].release()
		}
	}
}

func (s *slideState) release() {
	s.mu.Lock()
	s.plate, s.caption, s.ready = nil, nil, false
	s.mu.Unlock()
}
