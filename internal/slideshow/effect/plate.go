// Package effect renders the per-slide procedural animations. Every frame is
// a pure function of (plate, effect, t), exactly canvas sized and opaque.
package effect

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Overscan is how much larger than the canvas a plate is, giving pans and
// zooms room to move without exposing an edge.
const Overscan = 1.2

// Plate is a source image cover-fitted to the canvas aspect at Overscan.
// It is read-only after Prepare and safe to share between goroutines.
type Plate struct {
	img    *image.RGBA
	width  int
	height int
}

// Prepare crops src to the canvas aspect ratio around its centre and
// resamples it to Overscan times the canvas size. Transparent areas end up
// black.
func Prepare(src image.Image, width, height int) *Plate {
	pw := int(math.Ceil(float64(width) * Overscan))
	ph := int(math.Ceil(float64(height) * Overscan))
	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	target := float64(width) / float64(height)
	crop := sb
	if sw/sh > target {
		cw := int(math.Round(sh * target))
		x0 := sb.Min.X + (sb.Dx()-cw)/2
		crop = image.Rect(x0, sb.Min.Y, x0+cw, sb.Max.Y)
	} else {
		ch := int(math.Round(sw / target))
		y0 := sb.Min.Y + (sb.Dy()-ch)/2
		crop = image.Rect(sb.Min.X, y0, sb.Max.X, y0+ch)
	}
	if crop.Empty() {
		crop = sb
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Over, nil)
	return &Plate{img: dst, width: width, height: height}
}

// Canvas is the output frame size.
func (p *Plate) Canvas() image.Rectangle { return image.Rect(0, 0, p.width, p.height) }

func (p *Plate) size() (float64, float64) {
	b := p.img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// view is a rectangle in plate coordinates that is stretched onto the canvas.
type view struct {
	x, y, w, h float64
}

func (p *Plate) fullView() view {
	pw, ph := p.size()
	return view{0, 0, pw, ph}
}

// zoomView narrows the plate by zoom around its centre shifted by (dx, dy),
// fractions of the plate size, then clamps the view inside the plate.
func (p *Plate) zoomView(zoom, dx, dy float64) view {
	pw, ph := p.size()
	if zoom < 1 {
		zoom = 1
	}
	w, h := pw/zoom, ph/zoom
	cx := pw/2 + dx*pw
	cy := ph/2 + dy*ph
	return view{
		x: clamp(cx-w/2, 0, pw-w),
		y: clamp(cy-h/2, 0, ph-h),
		w: w,
		h: h,
	}
}

// project draws the view onto dst, optionally rotated by angle radians about
// the canvas centre.
func (p *Plate) project(dst *image.RGBA, v view, angle float64, op draw.Op) {
	cw, ch := float64(p.width), float64(p.height)
	sx, sy := cw/v.w, ch/v.h
	cos, sin := math.Cos(angle), math.Sin(angle)
	vcx, vcy := v.x+v.w/2, v.y+v.h/2

	// dst = C + R * S * (src - Vc)
	a, b := sx*cos, -sy*sin
	c, d := sx*sin, sy*cos
	m := f64.Aff3{
		a, b, cw/2 - (a*vcx + b*vcy),
		c, d, ch/2 - (c*vcx + d*vcy),
	}
	draw.BiLinear.Transform(dst, m, p.img, p.img.Bounds(), op, nil)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
