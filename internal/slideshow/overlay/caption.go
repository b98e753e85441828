package overlay

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultFontSize = 40
	sideMargin      = 50
	topLimit        = 40
	bottomLimit     = 100
	shadowOffset    = 2
)

var shadow = image.NewUniform(color.NRGBA{0, 0, 0, 160})

// Captioner lays out and rasterizes caption text for one canvas size.
// Font faces are not safe for concurrent use, so Layout serializes on mu;
// the Captions it returns are immutable.
type Captioner struct {
	mu       sync.Mutex
	face     font.Face
	ellipsis string
	width    int
	height   int
	margin   int
}

// NewCaptioner uses the Go Regular face at size points, falling back to the
// fixed 7x13 bitmap face if the font cannot be loaded.
func NewCaptioner(width, height int, size float64) *Captioner {
	if size <= 0 {
		size = DefaultFontSize
	}
	c := &Captioner{width: width, height: height, margin: sideMargin, ellipsis: "…"}
	if width-2*sideMargin < width/2 {
		c.margin = width / 10
	}
	f, err := opentype.Parse(goregular.TTF)
	if err == nil {
		c.face, err = opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	if err != nil || c.face == nil {
		c.face = basicfont.Face7x13
		c.ellipsis = "..."
	}
	return c
}

type captionLine struct {
	text   string
	top    int
	bottom int
	// xs[i] is the right edge of rune i.
	xs    []int
	first int
}

// Caption is a pre-rasterized text block in canvas coordinates.
type Caption struct {
	mask  *image.Alpha
	lines []captionLine
	runes int
}

// Lines returns the wrapped (and possibly truncated) text lines.
func (c *Caption) Lines() []string {
	out := make([]string, len(c.lines))
	for i, l := range c.lines {
		out[i] = l.text
	}
	return out
}

// Bounds is the block rectangle on the canvas, including the shadow.
func (c *Caption) Bounds() image.Rectangle { return c.mask.Rect }

// Layout wraps text to the safe width, anchors the block top at pos percent
// of the canvas height and rasterizes it. Text that does not fit vertically
// is truncated with an ellipsis. Blank text yields nil.
func (c *Captioner) Layout(text string, pos float64) *Caption {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.face.Metrics()
	lineH := m.Height.Ceil()
	if lineH <= 0 {
		lineH = 1
	}
	maxW := c.width - 2*c.margin
	maxLines := (c.height - topLimit - bottomLimit) / lineH
	if maxLines < 1 {
		maxLines = 1
	}

	lines := c.wrap(text, maxW)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = c.truncate(lines[maxLines-1]+" "+c.ellipsis, maxW)
	}

	blockH := len(lines) * lineH
	top := int(math.Round(pos / 100 * float64(c.height)))
	if hi := c.height - bottomLimit - blockH; top > hi {
		top = hi
	}
	if top < topLimit {
		top = topLimit
	}

	rect := image.Rect(0, top, c.width, top+blockH+shadowOffset).Intersect(image.Rect(0, 0, c.width, c.height))
	out := &Caption{mask: image.NewAlpha(rect)}
	d := &font.Drawer{Dst: out.mask, Src: image.Opaque, Face: c.face}
	for i, s := range lines {
		x0 := (c.width - c.measure(s)) / 2
		lt := top + i*lineH
		base := lt + m.Ascent.Ceil()
		d.Dot = fixed.P(x0, base)
		d.DrawString(s)

		l := captionLine{text: s, top: lt, bottom: lt + lineH, first: out.runes}
		x := fixed.I(x0)
		prev := rune(-1)
		for _, r := range s {
			if prev >= 0 {
				x += c.face.Kern(prev, r)
			}
			adv, ok := c.face.GlyphAdvance(r)
			if !ok {
				adv, _ = c.face.GlyphAdvance('?')
			}
			x += adv
			l.xs = append(l.xs, x.Ceil())
			prev = r
		}
		out.runes += utf8.RuneCountInString(s)
		out.lines = append(out.lines, l)
	}
	return out
}

func (c *Captioner) measure(s string) int { return font.MeasureString(c.face, s).Ceil() }

// wrap splits on explicit newlines, then greedily packs words. Words wider
// than maxW are broken between runes.
func (c *Captioner) wrap(text string, maxW int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		var cur string
		for _, word := range strings.Fields(para) {
			for _, piece := range c.breakWord(word, maxW) {
				cand := piece
				if cur != "" {
					cand = cur + " " + piece
				}
				if c.measure(cand) <= maxW || cur == "" {
					cur = cand
					continue
				}
				out = append(out, cur)
				cur = piece
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

func (c *Captioner) breakWord(word string, maxW int) []string {
	if c.measure(word) <= maxW {
		return []string{word}
	}
	var out []string
	var cur []rune
	for _, r := range word {
		if len(cur) > 0 && c.measure(string(append(cur, r))) > maxW {
			out = append(out, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// truncate trims runes before the trailing ellipsis until s fits.
func (c *Captioner) truncate(s string, maxW int) string {
	body := []rune(strings.TrimSuffix(s, c.ellipsis))
	for len(body) > 0 && c.measure(strings.TrimRight(string(body), " ")+c.ellipsis) > maxW {
		body = body[:len(body)-1]
	}
	return strings.TrimRight(string(body), " ") + c.ellipsis
}

// Draw composites the caption onto dst with a soft drop shadow. Only the
// first reveal fraction of runes is shown. Safe for concurrent use.
func (c *Caption) Draw(dst *image.RGBA, reveal float64) {
	if c == nil || c.runes == 0 || reveal <= 0 {
		return
	}
	if reveal >= 1 {
		c.drawClip(dst, c.mask.Rect)
		return
	}
	n := int(math.Floor(reveal * float64(c.runes)))
	for _, l := range c.lines {
		v := n - l.first
		if v <= 0 {
			break
		}
		if v > len(l.xs) {
			v = len(l.xs)
		}
		c.drawClip(dst, image.Rect(0, l.top, l.xs[v-1], l.bottom+shadowOffset))
	}
}

func (c *Caption) drawClip(dst *image.RGBA, clip image.Rectangle) {
	r := clip.Intersect(c.mask.Rect)
	if r.Empty() {
		return
	}
	sr := r.Add(image.Pt(shadowOffset, shadowOffset)).Intersect(dst.Rect)
	draw.DrawMask(dst, sr, shadow, image.Point{}, c.mask, sr.Min.Sub(image.Pt(shadowOffset, shadowOffset)), draw.Over)
	draw.DrawMask(dst, r.Intersect(dst.Rect), image.White, image.Point{}, c.mask, r.Intersect(dst.Rect).Min, draw.Over)
}
