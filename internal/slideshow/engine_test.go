package slideshow

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/slideshow/codec"
	"montage/internal/slideshow/encode"
	"montage/internal/slideshow/job"
)

// recorder is an Encoder that keeps one probe pixel per frame.
type recorder struct {
	mu      sync.Mutex
	probe   image.Point
	pixels  []color.RGBA
	audio   []byte
	format  encode.Format
	dst     string
	failAt  int
	began   bool
	ended   bool
	aborted bool
	src     io.Reader
}

func (r *recorder) Begin(ctx context.Context, f encode.Format, audio io.Reader, dst string) error {
	r.format, r.dst, r.src, r.began = f, dst, audio, true
	return nil
}

func (r *recorder) EncodeFrame(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt > 0 && len(r.pixels) == r.failAt {
		return errors.Encoder(nil, "Conversion failed!")
	}
	r.pixels = append(r.pixels, img.RGBAAt(r.probe.X, r.probe.Y))
	return nil
}

func (r *recorder) End() error {
	if r.src != nil {
		b, err := io.ReadAll(r.src)
		if err != nil {
			return err
		}
		r.audio = b
	}
	r.ended = true
	return os.WriteFile(r.dst, []byte("fake mp4"), 0o644)
}

func (r *recorder) Abort() { r.aborted = true }

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 90, 160))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var (
	red  = color.RGBA{255, 0, 0, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

func testEngine(t *testing.T, rec *recorder, opts ...Option) (*Engine, string) {
	t.Helper()
	tmp := t.TempDir()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 72, 128
	cfg.Workers = 4
	cfg.TempDir = tmp
	var buf bytes.Buffer
	opts = append([]Option{
		WithEncoder(func() encode.Encoder { return rec }),
		WithLogger(logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})),
	}, opts...)
	return New(cfg, opts...), tmp
}

func scenarioJob(t *testing.T, pcm *codec.PCM) *job.RenderJob {
	t.Helper()
	j, err := job.New([]job.Slide{
		{Image: solid(red), Duration: 3 * time.Second, Effect: job.EffectKenBurns, Transition: job.TransitionFade},
		{Image: solid(blue), Duration: 2 * time.Second, Text: "Hello", Darkening: 0.3},
	}, pcm, job.DefaultTransitionWindow)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func assertClean(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no render leftovers, found %d entries", len(entries))
	}
}

func TestRenderTwoSlideScenario(t *testing.T) {
	defer leaktest.Check(t)()

	rec := &recorder{probe: image.Pt(36, 10)}
	var last [2]int
	eng, tmp := testEngine(t, rec, WithProgress(func(done, total int) { last = [2]int{done, total} }))

	video, err := eng.Render(context.Background(), scenarioJob(t, nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if video.Frames() != 120 || video.Duration() != 5*time.Second {
		t.Errorf("expected 120 frames over 5s, got %d over %v", video.Frames(), video.Duration())
	}
	if len(rec.pixels) != 120 || last != [2]int{120, 120} {
		t.Fatalf("encoder got %d frames, progress %v", len(rec.pixels), last)
	}

	// Run-length encode the probe: A for the first slide, B for the
	// darkened second slide, x for anything in between.
	var runs []string
	var counts []int
	for _, px := range rec.pixels {
		class := "x"
		switch {
		case px.R > 240 && px.B < 15:
			class = "A"
		case px.B > 160 && px.B < 190 && px.R < 15:
			class = "B"
		}
		if n := len(runs); n > 0 && runs[n-1] == class {
			counts[n-1]++
			continue
		}
		runs = append(runs, class)
		counts = append(counts, 1)
	}
	if len(runs) != 3 || runs[0] != "A" || runs[1] != "x" || runs[2] != "B" {
		t.Fatalf("expected two segments around one blend, got %v %v", runs, counts)
	}
	if counts[0] != 69 || counts[1] != 6 || counts[2] != 45 {
		t.Errorf("expected 69/6/45 frames, got %v", counts)
	}

	silent := 5 * 44100 * 2 * 2
	if len(rec.audio) != silent {
		t.Fatalf("expected %d bytes of audio, got %d", silent, len(rec.audio))
	}
	for _, b := range rec.audio {
		if b != 0 {
			t.Fatal("expected a silent track")
		}
	}

	body, _ := io.ReadAll(video)
	if string(body) != "fake mp4" || video.Size() != int64(len(body)) {
		t.Errorf("unexpected output %q (size %d)", body, video.Size())
	}
	if filepath.Base(video.Name()) != "slideshow.mp4" {
		t.Errorf("output should be renamed from its partial name, got %s", video.Name())
	}
	if err := video.Close(); err != nil {
		t.Fatal(err)
	}
	_ = video.Close()
	assertClean(t, tmp)
}

func TestRenderLoopsShortAudio(t *testing.T) {
	rec := &recorder{}
	eng, _ := testEngine(t, rec)

	pcm := &codec.PCM{Samples: make([]int16, 44100*2), Rate: 44100, Channels: 2}
	for i := range pcm.Samples {
		pcm.Samples[i] = 1000
	}
	video, err := eng.Render(context.Background(), scenarioJob(t, pcm))
	if err != nil {
		t.Fatal(err)
	}
	defer video.Close()

	if want := 5 * 44100 * 4; len(rec.audio) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(rec.audio))
	}
	if rec.format.AudioRate != 44100 || rec.format.AudioChannels != 2 {
		t.Errorf("unexpected audio format %+v", rec.format)
	}
}

func TestRenderEncoderFailure(t *testing.T) {
	defer leaktest.Check(t)()

	rec := &recorder{failAt: 10}
	eng, tmp := testEngine(t, rec)

	_, err := eng.Render(context.Background(), scenarioJob(t, nil))
	if !errors.IsCode(err, errors.CodeEncoder) {
		t.Fatalf("expected ENCODER_ERROR, got %v", err)
	}
	if !rec.aborted || rec.ended {
		t.Error("encoder should be aborted, not finalized")
	}
	assertClean(t, tmp)
}

func TestRenderCanceled(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{}
	eng, tmp := testEngine(t, rec, WithProgress(func(done, total int) {
		if done == 5 {
			cancel()
		}
	}))

	_, err := eng.Render(ctx, scenarioJob(t, nil))
	if !errors.IsCode(err, errors.CodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if !rec.aborted {
		t.Error("expected encoder abort")
	}
	assertClean(t, tmp)
}

func TestRenderRejectsSubFrameSlideshow(t *testing.T) {
	rec := &recorder{}
	eng, tmp := testEngine(t, rec)
	j, err := job.New([]job.Slide{{Image: solid(red), Duration: 10 * time.Millisecond}}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	_, err = eng.Render(context.Background(), j)
	if !errors.IsValidation(err) || errors.GetFields(err)["field"] != "slides" {
		t.Fatalf("expected VALIDATION_ERROR on slides, got %v", err)
	}
	if rec.began {
		t.Error("encoder should not start for an empty timeline")
	}
	assertClean(t, tmp)
}

func TestRenderClaimsJobOnce(t *testing.T) {
	rec := &recorder{}
	eng, _ := testEngine(t, rec)
	j := scenarioJob(t, nil)

	video, err := eng.Render(context.Background(), j)
	if err != nil {
		t.Fatal(err)
	}
	video.Close()

	if _, err := eng.Render(context.Background(), j); !errors.IsCode(err, errors.CodeFailedPrecond) {
		t.Errorf("expected second render to be refused, got %v", err)
	}
}

func TestIntakeFeedsRender(t *testing.T) {
	rec := &recorder{probe: image.Pt(1, 1)}
	eng, _ := testEngine(t, rec)

	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(red)); err != nil {
		t.Fatal(err)
	}
	d := 500 * time.Millisecond
	j, err := eng.Intake().Accept(context.Background(), job.Input{
		Slides: []job.SlideInput{
			{Image: buf.Bytes(), Duration: &d, Transition: "random"},
			{Image: buf.Bytes(), Duration: &d},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	video, err := eng.Render(context.Background(), j)
	if err != nil {
		t.Fatal(err)
	}
	defer video.Close()
	if video.Frames() != 24 {
		t.Errorf("expected 24 frames, got %d", video.Frames())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("RENDER_WIDTH", "1081")
	t.Setenv("RENDER_HEIGHT", "1920")
	t.Setenv("RENDER_FPS", "30")
	t.Setenv("FFMPEG_PRESET", "slow")
	t.Setenv("AUDIO_FADE_OUT", "2s")

	cfg := ConfigFromEnv()
	if cfg.FPS != 30 || cfg.Preset != "slow" || cfg.FadeOut != 2*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	n := cfg.normalize()
	if n.Width != 1080 || n.Height != 1920 {
		t.Errorf("expected even canvas, got %dx%d", n.Width, n.Height)
	}
	if n.InFlight != 2*n.Workers {
		t.Errorf("expected default in-flight window, got %d", n.InFlight)
	}
}
