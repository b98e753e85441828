// Package timeline turns a RenderJob into the ordered stream of composited
// output frames.
//
// Frame rounding is done once, on cumulative time: slide i ends at frame
// floor(C_i * fps) where C_i is the summed duration of slides 0..i, in
// integer nanoseconds. Rounding errors therefore never accumulate and the
// total frame count is floor(sum(d) * fps) whatever transitions are chosen.
// A transition window straddles the boundary between two slides and borrows
// half of its length from each of them.
package timeline

import (
	"sort"
	"time"

	"montage/internal/slideshow/codec"
	"montage/internal/slideshow/job"
	"montage/internal/slideshow/transition"
)

// Span is the half-open frame range a slide is visible in, including the
// frames it shares with its neighbours' transitions.
type Span struct {
	Start, End int
}

func (s Span) Len() int { return s.End - s.Start }

// Window is the blend between slide From and From+1. Start == End means a
// hard cut.
type Window struct {
	From       int
	Start, End int
	Kind       job.TransitionKind
}

func (w Window) Len() int { return w.End - w.Start }

// Plan is the frame layout of a job.
type Plan struct {
	FPS   int
	Total int
	// Ends[i] is the boundary frame after slide i.
	Ends    []int
	Spans   []Span
	Windows []Window
}

// NewPlan lays out slides of the given durations. kinds[i] is the
// transition out of slide i; it needs len(durations)-1 entries.
func NewPlan(durations []time.Duration, kinds []job.TransitionKind, window time.Duration, fps int) Plan {
	n := len(durations)
	p := Plan{FPS: fps, Ends: make([]int, n), Spans: make([]Span, n)}
	if n == 0 || fps <= 0 {
		return p
	}

	var cum int64
	frames := make([]int, n)
	prev := 0
	for i, d := range durations {
		cum += int64(d)
		p.Ends[i] = int(codec.Ticks(time.Duration(cum), fps))
		frames[i] = p.Ends[i] - prev
		prev = p.Ends[i]
	}
	p.Total = p.Ends[n-1]

	half := make([]int, max(n-1, 0))
	for i := range half {
		w := transition.ClampWindow(window, durations[i], durations[i+1])
		h := int(codec.Ticks(w, fps) / 2)
		before := 0
		if i > 0 {
			before = half[i-1]
		}
		h = min(h, frames[i]-before, frames[i+1])
		half[i] = max(h, 0)

		kind := job.TransitionFade
		if i < len(kinds) && kinds[i] != "" {
			kind = kinds[i]
		}
		p.Windows = append(p.Windows, Window{
			From:  i,
			Start: p.Ends[i] - half[i],
			End:   p.Ends[i] + half[i],
			Kind:  kind,
		})
	}

	for i := range p.Spans {
		start, end := 0, p.Total
		if i > 0 {
			start = p.Ends[i-1] - half[i-1]
		}
		if i < n-1 {
			end = p.Ends[i] + half[i]
		}
		p.Spans[i] = Span{Start: start, End: end}
	}
	return p
}

// Duration is the exact video length implied by Total.
func (p Plan) Duration() time.Duration { return p.Timestamp(p.Total) }

// Timestamp is the presentation time of frame f.
func (p Plan) Timestamp(f int) time.Duration {
	if p.FPS <= 0 {
		return 0
	}
	return codec.Elapsed(int64(f), p.FPS)
}

// TransitionFrames counts frames that blend two slides.
func (p Plan) TransitionFrames() int {
	n := 0
	for _, w := range p.Windows {
		n += w.Len()
	}
	return n
}

// Ref says what frame f is made of.
type Ref struct {
	Index int
	Slide int
	// T is the effect progress of Slide over its span.
	T float64
	// Next is -1 outside transitions.
	Next  int
	TNext float64
	Kind  job.TransitionKind
	// U is the transition progress in (0,1).
	U float64
}

// At resolves frame f, which must be in [0, Total).
func (p Plan) At(f int) Ref {
	s := sort.Search(len(p.Ends), func(i int) bool { return p.Ends[i] > f })
	if s >= len(p.Ends) {
		s = len(p.Ends) - 1
	}
	ref := Ref{Index: f, Slide: s, Next: -1}

	if s < len(p.Windows) && f >= p.Windows[s].Start && p.Windows[s].Len() > 0 {
		p.fill(&ref, p.Windows[s], f)
	} else if s > 0 && f < p.Windows[s-1].End && p.Windows[s-1].Len() > 0 {
		p.fill(&ref, p.Windows[s-1], f)
	}
	ref.T = p.progress(ref.Slide, f)
	if ref.Next >= 0 {
		ref.TNext = p.progress(ref.Next, f)
	}
	return ref
}

func (p Plan) fill(ref *Ref, w Window, f int) {
	ref.Slide = w.From
	ref.Next = w.From + 1
	ref.Kind = w.Kind
	ref.U = (float64(f-w.Start) + 0.5) / float64(w.Len())
}

func (p Plan) progress(slide, f int) float64 {
	sp := p.Spans[slide]
	if sp.Len() <= 1 {
		return 0
	}
	t := float64(f-sp.Start) / float64(sp.Len()-1)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
