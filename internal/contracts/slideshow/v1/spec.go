// Package v1 is the JSON contract for asynchronous slideshow jobs. A JobSpec
// references uploaded assets by id; the worker materializes them before
// handing the job to the render engine.
package v1

import (
	"fmt"
	"strings"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/slideshow/job"
)

type Slide struct {
	ImageAssetID string   `json:"image_asset_id"`
	Text         string   `json:"text,omitempty"`
	Position     *float64 `json:"position,omitempty"`
	Darkening    *float64 `json:"darkening,omitempty"`
	DurationMs   *int64   `json:"duration_ms,omitempty"`
	Transition   string   `json:"transition,omitempty"`
	Effect       string   `json:"effect,omitempty"`
}

type JobSpec struct {
	Name               string  `json:"name,omitempty"`
	PresetID           string  `json:"preset_id,omitempty"`
	Slides             []Slide `json:"slides"`
	AudioAssetID       string  `json:"audio_asset_id,omitempty"`
	DefaultDurationMs  *int64  `json:"default_duration_ms,omitempty"`
	TransitionWindowMs *int64  `json:"transition_window_ms,omitempty"`
	Seed               *uint64 `json:"seed,omitempty"`
}

// Defaults are the preset values applied to fields a job leaves unset.
type Defaults struct {
	DefaultDurationMs  *int64   `json:"default_duration_ms,omitempty"`
	TransitionWindowMs *int64   `json:"transition_window_ms,omitempty"`
	Effect             string   `json:"effect,omitempty"`
	Transition         string   `json:"transition,omitempty"`
	Darkening          *float64 `json:"darkening,omitempty"`
}

// Validate checks d the same way job intake checks the fields it fills.
func (d Defaults) Validate() error {
	if err := checkMillis(d.DefaultDurationMs, d.TransitionWindowMs); err != nil {
		return err
	}
	if _, err := job.ParseEffect(d.Effect); err != nil {
		return errors.ValidationField("effect", errors.GetMessage(err))
	}
	if _, err := job.ParseChoice(d.Transition); err != nil {
		return errors.ValidationField("transition", errors.GetMessage(err))
	}
	if d.Darkening != nil && (*d.Darkening < 0 || *d.Darkening > 1) {
		return errors.ValidationField("darkening", "darkening must be within [0,1]")
	}
	return nil
}

// Apply returns a copy of s with d filling every field s leaves unset.
func (s JobSpec) Apply(d Defaults) JobSpec {
	out := s
	out.Slides = append([]Slide(nil), s.Slides...)
	if out.DefaultDurationMs == nil {
		out.DefaultDurationMs = d.DefaultDurationMs
	}
	if out.TransitionWindowMs == nil {
		out.TransitionWindowMs = d.TransitionWindowMs
	}
	for i := range out.Slides {
		sl := &out.Slides[i]
		if strings.TrimSpace(sl.Effect) == "" {
			sl.Effect = d.Effect
		}
		if strings.TrimSpace(sl.Transition) == "" {
			sl.Transition = d.Transition
		}
		if sl.Darkening == nil {
			sl.Darkening = d.Darkening
		}
	}
	return out
}

// AssetIDs lists every asset the job needs, images first.
func (s JobSpec) AssetIDs() []string {
	ids := make([]string, 0, len(s.Slides)+1)
	for _, sl := range s.Slides {
		ids = append(ids, sl.ImageAssetID)
	}
	if s.AudioAssetID != "" {
		ids = append(ids, s.AudioAssetID)
	}
	return ids
}

// Validate reports the first field problem. It runs the same checks as job
// intake, so a spec accepted here only fails later on asset content.
func (s JobSpec) Validate() error {
	if len(s.Slides) == 0 {
		return errors.ValidationField("slides", "at least one slide is required")
	}
	if err := checkMillis(s.DefaultDurationMs, s.TransitionWindowMs); err != nil {
		return err
	}
	for i, sl := range s.Slides {
		field := fmt.Sprintf("slides[%d]", i)
		if strings.TrimSpace(sl.ImageAssetID) == "" {
			return errors.ValidationField(field+".image_asset_id", "image asset is required")
		}
		if sl.DurationMs != nil {
			if *sl.DurationMs <= 0 {
				return errors.ValidationField(field+".duration_ms", "duration must be positive")
			}
			if *sl.DurationMs > maxMillis {
				return errors.ValidationField(field+".duration_ms", "duration exceeds the maximum slideshow length")
			}
		}
	}
	placeholder := make([][]byte, len(s.Slides))
	for i := range placeholder {
		placeholder[i] = []byte{0}
	}
	return job.Validate(s.Input(placeholder, nil))
}

// Input builds the intake request from materialized asset bytes. images is
// indexed like Slides.
func (s JobSpec) Input(images [][]byte, audio []byte) job.Input {
	in := job.Input{
		Slides: make([]job.SlideInput, len(s.Slides)),
		Audio:  audio,
		Seed:   s.Seed,
	}
	if s.DefaultDurationMs != nil {
		in.DefaultDuration = millis(*s.DefaultDurationMs)
	}
	if s.TransitionWindowMs != nil {
		w := millis(*s.TransitionWindowMs)
		in.TransitionWindow = &w
	}
	for i, sl := range s.Slides {
		si := job.SlideInput{
			Text:       sl.Text,
			Position:   sl.Position,
			Darkening:  sl.Darkening,
			Transition: sl.Transition,
			Effect:     sl.Effect,
		}
		if i < len(images) {
			si.Image = images[i]
		}
		if sl.DurationMs != nil {
			d := millis(*sl.DurationMs)
			si.Duration = &d
		}
		in.Slides[i] = si
	}
	return in
}

// maxMillis keeps every millisecond field convertible to a time.Duration.
var maxMillis = job.MaxTotalDuration.Milliseconds()

func checkMillis(duration, window *int64) error {
	if duration != nil {
		if *duration <= 0 {
			return errors.ValidationField("default_duration_ms", "default duration must be positive")
		}
		if *duration > maxMillis {
			return errors.ValidationField("default_duration_ms", "default duration exceeds the maximum slideshow length")
		}
	}
	if window != nil {
		if *window < 0 {
			return errors.ValidationField("transition_window_ms", "transition window must not be negative")
		}
		if *window > maxMillis {
			return errors.ValidationField("transition_window_ms", "transition window exceeds the maximum slideshow length")
		}
	}
	return nil
}

func millis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
