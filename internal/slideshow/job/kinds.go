package job

import (
	"strings"

	"montage/internal/pkg/errors"
)

// EffectKind names a procedural animation applied over a slide's duration.
type EffectKind string

const (
	EffectNone           EffectKind = "none"
	EffectKenBurns       EffectKind = "ken_burns"
	EffectDepthZoom      EffectKind = "depth_zoom"
	EffectParallaxPan    EffectKind = "parallax_pan"
	EffectParallaxRise   EffectKind = "parallax_rise"
	EffectDepthSwing     EffectKind = "depth_swing"
	EffectLightPulse     EffectKind = "light_pulse"
	EffectFilmGrain      EffectKind = "film_grain"
	EffectColorTintShift EffectKind = "color_tint_shift"
	EffectWaveScan       EffectKind = "wave_scan"
	EffectRipple         EffectKind = "ripple"
)

var effects = []EffectKind{
	EffectNone, EffectKenBurns, EffectDepthZoom, EffectParallaxPan, EffectParallaxRise,
	EffectDepthSwing, EffectLightPulse, EffectFilmGrain, EffectColorTintShift,
	EffectWaveScan, EffectRipple,
}

// TransitionKind names the blend between a slide and its successor.
type TransitionKind string

const (
	TransitionFade        TransitionKind = "fade"
	TransitionSlideLeft   TransitionKind = "slide_left"
	TransitionSlideRight  TransitionKind = "slide_right"
	TransitionSlideTop    TransitionKind = "slide_top"
	TransitionSlideBottom TransitionKind = "slide_bottom"
	TransitionZoom        TransitionKind = "zoom"
	TransitionTypewriter  TransitionKind = "typewriter"
	TransitionGlitch      TransitionKind = "glitch"
	TransitionRotate      TransitionKind = "rotate"
)

var transitions = []TransitionKind{
	TransitionFade, TransitionSlideLeft, TransitionSlideRight, TransitionSlideTop,
	TransitionSlideBottom, TransitionZoom, TransitionTypewriter, TransitionGlitch,
	TransitionRotate,
}

// Effects lists every known effect in a stable order.
func Effects() []EffectKind { return append([]EffectKind(nil), effects...) }

// Transitions lists every known transition in a stable order.
func Transitions() []TransitionKind { return append([]TransitionKind(nil), transitions...) }

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseEffect maps a user supplied name to an EffectKind. An empty name and
// "static" both mean no motion.
func ParseEffect(name string) (EffectKind, error) {
	n := normalize(name)
	switch n {
	case "", "static":
		return EffectNone, nil
	}
	for _, k := range effects {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Validation("unknown effect: " + name)
}

func ParseTransition(name string) (TransitionKind, error) {
	n := normalize(name)
	for _, k := range transitions {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Validation("unknown transition: " + name)
}

// TransitionChoice is either a fixed kind or a request for the engine to pick
// one. It is resolved once, when the job is accepted.
type TransitionChoice struct {
	kind   TransitionKind
	random bool
}

func Fixed(k TransitionKind) TransitionChoice { return TransitionChoice{kind: k} }

func Random() TransitionChoice { return TransitionChoice{random: true} }

func (c TransitionChoice) IsRandom() bool { return c.random }

// Kind is empty for a random choice.
func (c TransitionChoice) Kind() TransitionKind { return c.kind }

// ParseChoice accepts a transition name, or "" / "random" for Random.
func ParseChoice(name string) (TransitionChoice, error) {
	switch normalize(name) {
	case "", "random":
		return Random(), nil
	}
	k, err := ParseTransition(name)
	if err != nil {
		return TransitionChoice{}, err
	}
	return Fixed(k), nil
}

// refield re-attributes a parse error to the field it came from.
func refield(err error, field string) error {
	return errors.ValidationField(field, errors.GetMessage(err))
}
