package job

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"io"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/slideshow/codec"
)

// SlideInput is one slide as received from a caller. Nil pointers and empty
// names fall back to defaults.
type SlideInput struct {
	Image      []byte
	Text       string
	Position   *float64
	Darkening  *float64
	Duration   *time.Duration
	Transition string
	Effect     string
}

// Input is a render request before decoding.
type Input struct {
	Slides []SlideInput
	// Audio is an encoded background track; empty means none.
	Audio []byte
	// DefaultDuration applies to slides without their own duration.
	// Zero selects DefaultSlideDuration.
	DefaultDuration time.Duration
	// TransitionWindow nil selects DefaultTransitionWindow.
	TransitionWindow *time.Duration
	// Seed, when set, makes random transition picks reproducible for this job.
	Seed *uint64
}

var tooLong = fmt.Sprintf("slideshow must not be longer than %s", MaxTotalDuration)

// Validate reports the first field-level problem without decoding anything.
func Validate(in Input) error {
	if len(in.Slides) == 0 {
		return errors.ValidationField("slides", "at least one slide is required")
	}
	if in.DefaultDuration < 0 {
		return errors.ValidationField("duration", "default duration must be positive")
	}
	if in.DefaultDuration > MaxTotalDuration {
		return errors.ValidationField("duration", tooLong)
	}
	if in.TransitionWindow != nil && *in.TransitionWindow < 0 {
		return errors.ValidationField("transition_window", "transition window must not be negative")
	}
	def := in.DefaultDuration
	if def == 0 {
		def = DefaultSlideDuration
	}
	var total time.Duration
	for i, s := range in.Slides {
		field := fmt.Sprintf("slides[%d]", i)
		if len(s.Image) == 0 {
			return errors.ValidationField(field+".image", "image is required")
		}
		d := def
		if s.Duration != nil {
			if *s.Duration <= 0 {
				return errors.ValidationField(field+".duration", "duration must be positive")
			}
			if *s.Duration > MaxTotalDuration {
				return errors.ValidationField(field+".duration", tooLong)
			}
			d = *s.Duration
		}
		if total > MaxTotalDuration-d {
			return errors.ValidationField("slides", tooLong)
		}
		total += d
		if s.Darkening != nil {
			if err := checkDarkening(field, *s.Darkening); err != nil {
				return err
			}
		}
		if s.Position != nil {
			if err := checkPosition(field, *s.Position); err != nil {
				return err
			}
		}
		if _, err := ParseEffect(s.Effect); err != nil {
			return refield(err, field+".effect")
		}
		if _, err := ParseChoice(s.Transition); err != nil {
			return refield(err, field+".transition")
		}
	}
	return nil
}

// ImageDecoder turns encoded bytes into a bitmap.
type ImageDecoder interface {
	DecodeImage(r io.Reader) (image.Image, error)
}

// AudioDecoder turns an encoded track into PCM.
type AudioDecoder interface {
	DecodeAudio(ctx context.Context, r io.Reader) (*codec.PCM, error)
}

// Intake validates and decodes inputs into RenderJobs.
type Intake struct {
	Images ImageDecoder
	Audio  AudioDecoder
	// Picker resolves random transitions when the input carries no seed.
	Picker *Picker
}

// Accept validates in, decodes its assets and resolves random transitions.
// Decode failures are attributed to the asset that caused them.
func (in *Intake) Accept(ctx context.Context, req Input) (*RenderJob, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	picker := in.Picker
	if req.Seed != nil {
		picker = NewPicker(*req.Seed)
	}
	if picker == nil {
		picker = NewPicker(uint64(time.Now().UnixNano()))
	}

	def := req.DefaultDuration
	if def == 0 {
		def = DefaultSlideDuration
	}
	window := DefaultTransitionWindow
	if req.TransitionWindow != nil {
		window = *req.TransitionWindow
	}

	images := in.Images
	if images == nil {
		images = codec.Images{}
	}

	slides := make([]Slide, len(req.Slides))
	for i, s := range req.Slides {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled("job.accept", err)
		}
		field := fmt.Sprintf("slides[%d].image", i)
		img, err := images.DecodeImage(bytes.NewReader(s.Image))
		if err != nil {
			if stderrors.Is(err, codec.ErrEmptyImage) {
				return nil, errors.ValidationField(field, "image must have positive width and height")
			}
			if stderrors.Is(err, codec.ErrImageTooLarge) {
				return nil, errors.ResourceExhausted(err, err.Error()).WithField("asset", field)
			}
			return nil, errors.Decode(field, err)
		}

		slide := Slide{
			Image:    img,
			Text:     s.Text,
			Duration: def,
		}
		if s.Duration != nil {
			slide.Duration = *s.Duration
		}
		if s.Darkening != nil {
			slide.Darkening = *s.Darkening
		}
		if s.Position != nil {
			slide.Position = *s.Position
			slide.HasPosition = true
		}
		slide.Effect, _ = ParseEffect(s.Effect)
		if i < len(req.Slides)-1 {
			choice, _ := ParseChoice(s.Transition)
			if choice.IsRandom() {
				slide.Transition = picker.Next()
			} else {
				slide.Transition = choice.Kind()
			}
		}
		slides[i] = slide
	}

	var pcm *codec.PCM
	if len(req.Audio) > 0 {
		if in.Audio == nil {
			return nil, errors.Decode("audio", stderrors.New("no audio decoder configured"))
		}
		p, err := in.Audio.DecodeAudio(ctx, bytes.NewReader(req.Audio))
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Canceled("job.accept", ctx.Err())
			}
			return nil, errors.Decode("audio", err)
		}
		pcm = p
	}

	return New(slides, pcm, window)
}
