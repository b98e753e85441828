package effect

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"montage/internal/slideshow/job"
)

// Render produces the frame for kind at progress t. t is clamped to [0,1].
func Render(p *Plate, kind job.EffectKind, t float64) *image.RGBA {
	t = clamp(t, 0, 1)
	dst := image.NewRGBA(p.Canvas())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	switch kind {
	case job.EffectKenBurns:
		p.project(dst, p.zoomView(lerp(1, 1.1, t), 0.02*t, 0.02*t), 0, draw.Src)
	case job.EffectDepthZoom:
		p.project(dst, p.zoomView(lerp(1, 1.3, t), 0.05*t, 0), 0, draw.Src)
	case job.EffectParallaxPan:
		pw, ph := p.size()
		v := p.zoomView(Overscan, 0, 0)
		v.x = lerp(0, pw-v.w, t)
		v.y = (ph - v.h) / 2
		p.project(dst, v, 0, draw.Src)
	case job.EffectParallaxRise:
		pw, ph := p.size()
		v := p.zoomView(Overscan, 0, 0)
		v.x = (pw - v.w) / 2
		v.y = lerp(ph-v.h, 0, t)
		p.project(dst, v, 0, draw.Src)
	case job.EffectDepthSwing:
		s := math.Sin(math.Pi * t)
		s *= s
		v := p.zoomView(1+0.04*s, 0, 0)
		p.project(dst, v, 0, draw.Src)
		if s > 0 {
			p.project(dst, v, s*3*math.Pi/180, draw.Over)
		}
	case job.EffectLightPulse:
		p.project(dst, p.fullView(), 0, draw.Src)
		lightPulse(dst, 0.12*(1-math.Cos(4*math.Pi*t))/2)
	case job.EffectFilmGrain:
		p.project(dst, p.fullView(), 0, draw.Src)
		filmGrain(dst, math.Float64bits(t))
	case job.EffectColorTintShift:
		p.project(dst, p.fullView(), 0, draw.Src)
		tint(dst, color.RGBA{100, 150, 255, 255}, 0.3*(1-math.Cos(2*math.Pi*t))/2)
	case job.EffectWaveScan:
		p.project(dst, p.fullView(), 0, draw.Src)
		waveScan(dst, t)
	case job.EffectRipple:
		p.project(dst, p.fullView(), 0, draw.Src)
		ripple(dst, math.Sin(math.Pi*t)*0.015*float64(dst.Rect.Dx()))
	default:
		p.project(dst, p.fullView(), 0, draw.Src)
	}
	return dst
}
