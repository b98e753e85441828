package effect

import (
	"image"
	"image/color"
	"math"
)

// The helpers below work on opaque RGBA frames, where premultiplied and
// straight values coincide, and never touch alpha.

func toward(v uint8, target, k float64) uint8 {
	return uint8(math.Round(float64(v) + (target-float64(v))*k))
}

func lightPulse(img *image.RGBA, intensity float64) {
	if intensity <= 0 {
		return
	}
	b := img.Rect
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	rmax := math.Hypot(cx, cy)
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			g := intensity * (1 - math.Hypot(float64(x)-cx, float64(y)-cy)/rmax)
			if g <= 0 {
				continue
			}
			i := x * 4
			row[i] = toward(row[i], 255, g)
			row[i+1] = toward(row[i+1], 255, g)
			row[i+2] = toward(row[i+2], 255, g)
		}
	}
}

func tint(img *image.RGBA, c color.RGBA, k float64) {
	if k <= 0 {
		return
	}
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < img.Rect.Dx(); x++ {
			i := x * 4
			row[i] = toward(row[i], float64(c.R), k)
			row[i+1] = toward(row[i+1], float64(c.G), k)
			row[i+2] = toward(row[i+2], float64(c.B), k)
		}
	}
}

func waveScan(img *image.RGBA, t float64) {
	h := float64(img.Rect.Dy())
	for y := 0; y < img.Rect.Dy(); y++ {
		d := float64(y)/h - t
		k := 0.25 * math.Exp(-d*d/0.01)
		if k < 1.0/512 {
			continue
		}
		row := img.Pix[y*img.Stride:]
		for x := 0; x < img.Rect.Dx(); x++ {
			i := x * 4
			row[i] = toward(row[i], 255, k)
			row[i+1] = toward(row[i+1], 255, k)
			row[i+2] = toward(row[i+2], 255, k)
		}
	}
}

// filmGrain adds monochrome noise in [-13, 13] seeded per frame.
func filmGrain(img *image.RGBA, seed uint64) {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < img.Rect.Dx(); x++ {
			n := int(hash(seed, uint64(x), uint64(y))%27) - 13
			i := x * 4
			row[i] = addClamp(row[i], n)
			row[i+1] = addClamp(row[i+1], n)
			row[i+2] = addClamp(row[i+2], n)
		}
	}
}

// ripple shifts each row horizontally by amp·sin(πy/H), clamping at the edges.
func ripple(img *image.RGBA, amp float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if amp == 0 || w == 0 {
		return
	}
	tmp := make([]uint8, w*4)
	for y := 0; y < h; y++ {
		shift := int(math.Round(amp * math.Sin(math.Pi*float64(y)/float64(h))))
		if shift == 0 {
			continue
		}
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(tmp, row)
		for x := 0; x < w; x++ {
			sx := x - shift
			if sx < 0 {
				sx = 0
			} else if sx >= w {
				sx = w - 1
			}
			copy(row[x*4:x*4+4], tmp[sx*4:sx*4+4])
		}
	}
}

func addClamp(v uint8, n int) uint8 {
	r := int(v) + n
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}

// hash is a splitmix64 style mixer; stable across runs and platforms.
func hash(seed, x, y uint64) uint64 {
	z := seed ^ (x * 0x9e3779b97f4a7c15) ^ (y * 0xc2b2ae3d27d4eb4f)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
