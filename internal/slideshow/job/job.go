// Package job holds the validated, immutable description of one slideshow
// render and the intake that builds it from raw uploads.
package job

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/slideshow/codec"
)

const (
	DefaultSlideDuration    = 4 * time.Second
	DefaultTransitionWindow = 300 * time.Millisecond
	// MaxTotalDuration caps the summed slide durations of one render.
	MaxTotalDuration = 24 * time.Hour
	// DefaultPosition anchors captions in the bottom third.
	DefaultPosition = 66.7
)

// Slide is one resolved slide. Image is shared and must not be modified.
type Slide struct {
	Image       image.Image
	Text        string
	Position    float64
	HasPosition bool
	Darkening   float64
	Duration    time.Duration
	// Transition is the blend into the next slide; empty on the last slide.
	Transition TransitionKind
	Effect     EffectKind
}

// Anchor returns the caption anchor in percent of canvas height.
func (s Slide) Anchor() float64 {
	if s.HasPosition {
		return s.Position
	}
	return DefaultPosition
}

// RenderJob is immutable once built and may be rendered exactly once.
type RenderJob struct {
	slides   []Slide
	audio    *codec.PCM
	window   time.Duration
	consumed atomic.Bool
}

// New checks resolved slides and builds a job. Intake.Accept is the usual
// entry point; New serves callers that already hold decoded images.
func New(slides []Slide, audio *codec.PCM, window time.Duration) (*RenderJob, error) {
	if len(slides) == 0 {
		return nil, errors.ValidationField("slides", "at least one slide is required")
	}
	if window < 0 {
		return nil, errors.ValidationField("transition_window", "transition window must not be negative")
	}
	out := make([]Slide, len(slides))
	var total time.Duration
	for i, s := range slides {
		field := fmt.Sprintf("slides[%d]", i)
		if s.Image == nil {
			return nil, errors.ValidationField(field+".image", "image is required")
		}
		if b := s.Image.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
			return nil, errors.ValidationField(field+".image", "image must have positive width and height")
		}
		if s.Duration <= 0 {
			return nil, errors.ValidationField(field+".duration", "duration must be positive")
		}
		if total > MaxTotalDuration-s.Duration {
			return nil, errors.ValidationField("slides", tooLong)
		}
		total += s.Duration
		if err := checkDarkening(field, s.Darkening); err != nil {
			return nil, err
		}
		if s.HasPosition {
			if err := checkPosition(field, s.Position); err != nil {
				return nil, err
			}
		}
		if s.Effect == "" {
			s.Effect = EffectNone
		}
		if _, err := ParseEffect(string(s.Effect)); err != nil {
			return nil, refield(err, field+".effect")
		}
		if i == len(slides)-1 {
			s.Transition = ""
		} else if _, err := ParseTransition(string(s.Transition)); err != nil {
			return nil, refield(err, field+".transition")
		}
		out[i] = s
	}
	if audio != nil && audio.Frames() == 0 {
		audio = nil
	}
	return &RenderJob{slides: out, audio: audio, window: window}, nil
}

func (j *RenderJob) Len() int { return len(j.slides) }

func (j *RenderJob) Slide(i int) Slide { return j.slides[i] }

// Slides returns a copy of the slide list.
func (j *RenderJob) Slides() []Slide { return append([]Slide(nil), j.slides...) }

// Audio is nil when the job has no background track.
func (j *RenderJob) Audio() *codec.PCM { return j.audio }

// TransitionWindow is the requested window before per-pair clamping.
func (j *RenderJob) TransitionWindow() time.Duration { return j.window }

// Duration is the sum of slide durations.
func (j *RenderJob) Duration() time.Duration {
	var total time.Duration
	for _, s := range j.slides {
		total += s.Duration
	}
	return total
}

// Claim marks the job as consumed. Only the first call succeeds.
func (j *RenderJob) Claim() error {
	if !j.consumed.CompareAndSwap(false, true) {
		return errors.FailedPrecondition("render job was already consumed")
	}
	return nil
}

func checkDarkening(field string, v float64) error {
	if v != v || v < 0 || v > 1 {
		return errors.ValidationField(field+".darkening", "darkening must be within [0,1]").
			WithField("value", v)
	}
	return nil
}

func checkPosition(field string, v float64) error {
	if v != v || v < 0 || v > 100 {
		return errors.ValidationField(field+".position", "position must be within [0,100]").
			WithField("value", v)
	}
	return nil
}
