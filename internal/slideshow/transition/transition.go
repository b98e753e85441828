// Package transition blends the tail of one slide into the head of the next.
package transition

import (
	"image"
	"image/color"
	"math"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"montage/internal/slideshow/job"
)

// ClampWindow limits a requested window so neither neighbour loses more than
// half of its own duration to the blend.
func ClampWindow(req, a, b time.Duration) time.Duration {
	w := min(req, a/2, b/2)
	if w < 0 {
		return 0
	}
	return w
}

// Blend writes the transition of kind at progress u (0 shows a, 1 shows b)
// into dst. a, b and dst must share bounds and dst must not alias a or b.
// The typewriter caption reveal is handled by the timeline; the images
// themselves cross-dissolve.
func Blend(dst, a, b *image.RGBA, kind job.TransitionKind, u float64) {
	u = math.Max(0, math.Min(1, u))
	switch kind {
	case job.TransitionSlideLeft, job.TransitionSlideRight, job.TransitionSlideTop, job.TransitionSlideBottom:
		slide(dst, a, b, kind, smoothstep(u))
	case job.TransitionZoom:
		zoom(dst, a, b, u)
	case job.TransitionRotate:
		rotate(dst, a, b, u)
	case job.TransitionGlitch:
		mix(dst, a, b, u)
		glitch(dst, u)
	default:
		mix(dst, a, b, u)
	}
}

func smoothstep(u float64) float64 { return u * u * (3 - 2*u) }

// mix is a linear cross-dissolve in 8-bit fixed point.
func mix(dst, a, b *image.RGBA, u float64) {
	w := uint32(math.Round(u * 256))
	iw := 256 - w
	for i := range dst.Pix {
		dst.Pix[i] = uint8((uint32(a.Pix[i])*iw + uint32(b.Pix[i])*w + 128) >> 8)
	}
}

// slide moves b in from the edge the kind names and pushes a out the
// opposite side; the two images always touch.
func slide(dst, a, b *image.RGBA, kind job.TransitionKind, e float64) {
	r := dst.Rect
	w, h := r.Dx(), r.Dy()
	switch kind {
	case job.TransitionSlideLeft:
		off := int(math.Round(e * float64(w)))
		copyRect(dst, image.Rect(0, 0, off, h), b, image.Pt(w-off, 0))
		copyRect(dst, image.Rect(off, 0, w, h), a, image.Pt(0, 0))
	case job.TransitionSlideRight:
		off := int(math.Round(e * float64(w)))
		copyRect(dst, image.Rect(0, 0, w-off, h), a, image.Pt(off, 0))
		copyRect(dst, image.Rect(w-off, 0, w, h), b, image.Pt(0, 0))
	case job.TransitionSlideTop:
		off := int(math.Round(e * float64(h)))
		copyRect(dst, image.Rect(0, 0, w, off), b, image.Pt(0, h-off))
		copyRect(dst, image.Rect(0, off, w, h), a, image.Pt(0, 0))
	case job.TransitionSlideBottom:
		off := int(math.Round(e * float64(h)))
		copyRect(dst, image.Rect(0, 0, w, h-off), a, image.Pt(0, off))
		copyRect(dst, image.Rect(0, h-off, w, h), b, image.Pt(0, 0))
	}
}

func copyRect(dst *image.RGBA, r image.Rectangle, src *image.RGBA, sp image.Point) {
	if r.Empty() {
		return
	}
	draw.Draw(dst, r.Add(dst.Rect.Min), src, sp.Add(src.Rect.Min), draw.Src)
}

// zoom scales b from 30% to full size about the centre while fading it in.
func zoom(dst, a, b *image.RGBA, u float64) {
	copy(dst.Pix, a.Pix)
	s := 0.3 + 0.7*u
	r := dst.Rect
	w := int(math.Round(float64(r.Dx()) * s))
	h := int(math.Round(float64(r.Dy()) * s))
	if w <= 0 || h <= 0 {
		return
	}
	x0 := r.Min.X + (r.Dx()-w)/2
	y0 := r.Min.Y + (r.Dy()-h)/2
	target := image.Rect(x0, y0, x0+w, y0+h)

	scratch := image.NewRGBA(target)
	draw.BiLinear.Scale(scratch, target, b, b.Rect, draw.Src, nil)
	draw.DrawMask(dst, target, scratch, target.Min, alpha(u), image.Point{}, draw.Over)
}

// rotate turns b in from -15 degrees while fading it in over a.
func rotate(dst, a, b *image.RGBA, u float64) {
	copy(dst.Pix, a.Pix)
	angle := -15 * math.Pi / 180 * (1 - u)
	r := dst.Rect
	cx := float64(r.Min.X) + float64(r.Dx())/2
	cy := float64(r.Min.Y) + float64(r.Dy())/2
	cos, sin := math.Cos(angle), math.Sin(angle)
	m := f64.Aff3{
		cos, -sin, cx - (cos*cx - sin*cy),
		sin, cos, cy - (sin*cx + cos*cy),
	}
	scratch := image.NewRGBA(r)
	draw.BiLinear.Transform(scratch, m, b, b.Rect, draw.Src, nil)
	draw.DrawMask(dst, r, scratch, r.Min, alpha(u), image.Point{}, draw.Over)
}

func alpha(u float64) *image.Uniform {
	return image.NewUniform(color.Alpha{uint8(math.Round(u * 255))})
}

// glitchAmplitude is the largest slice displacement in pixels at u. It
// decreases monotonically to zero.
func glitchAmplitude(u float64, width int) int {
	return int(math.Round((1 - u) * 0.08 * float64(width)))
}

// glitch displaces horizontal slices with wrap-around. Slice offsets come
// from a fixed hash so identical inputs give identical frames.
func glitch(img *image.RGBA, u float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	amp := glitchAmplitude(u, w)
	if amp == 0 || w == 0 {
		return
	}
	sliceH := max(2, h/24)
	tmp := make([]uint8, w*4)
	for y0, k := 0, uint64(0); y0 < h; y0, k = y0+sliceH, k+1 {
		hv := mixHash(k)
		if hv&3 != 0 {
			continue
		}
		shift := int((hv>>8)%uint64(2*amp+1)) - amp
		if shift == 0 {
			continue
		}
		for y := y0; y < min(y0+sliceH, h); y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+w*4]
			copy(tmp, row)
			s := ((shift % w) + w) % w
			copy(row[s*4:], tmp[:(w-s)*4])
			copy(row[:s*4], tmp[(w-s)*4:])
		}
	}
}

func mixHash(k uint64) uint64 {
	z := k*0x9e3779b97f4a7c15 + 0x632be59bd9b4e019
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
