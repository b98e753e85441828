// Package overlay composites the darkening layer and caption text over an
// effect frame.
package overlay

import (
	"image"
	"math"
)

// Darken lays a uniform black layer of opacity a over img in place. a is
// expected in [0,1]; a <= 0 leaves img untouched.
func Darken(img *image.RGBA, a float64) {
	if a <= 0 {
		return
	}
	if a >= 1 {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 0, 0, 0
		}
		return
	}
	keep := 1 - a
	var lut [256]uint8
	for v := range lut {
		lut[v] = uint8(math.Round(float64(v) * keep))
	}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = lut[img.Pix[i]]
		img.Pix[i+1] = lut[img.Pix[i+1]]
		img.Pix[i+2] = lut[img.Pix[i+2]]
	}
}

// Apply darkens frame, then draws the caption revealed up to reveal in
// [0,1]. A nil caption draws nothing. The frame is modified and returned.
func Apply(frame *image.RGBA, darkening float64, caption *Caption, reveal float64) *image.RGBA {
	Darken(frame, darkening)
	if caption != nil {
		caption.Draw(frame, reveal)
	}
	return frame
}
