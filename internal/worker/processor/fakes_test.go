package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"
	"testing"

	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/slideshow"
	"montage/internal/slideshow/encode"
)

type failure struct {
	code errors.Code
	msg  string
}

type memJobs struct {
	mu       sync.Mutex
	jobs     map[string]*models.Job
	outputs  []models.JobOutput
	failures map[string]failure
}

func newMemJobs(jobs ...*models.Job) *memJobs {
	m := &memJobs{jobs: map[string]*models.Job{}, failures: map[string]failure{}}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memJobs) Get(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) set(id string, s models.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	j.Status = s
	return nil
}

func (m *memJobs) MarkRunning(ctx context.Context, id string) error { return m.set(id, models.JobRunning) }
func (m *memJobs) MarkDone(ctx context.Context, id string) error    { return m.set(id, models.JobDone) }

func (m *memJobs) MarkFailed(ctx context.Context, id string, code errors.Code, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.failures[id] = failure{code, msg}
	m.mu.Unlock()
	return m.set(id, models.JobFailed)
}

func (m *memJobs) AddOutput(ctx context.Context, o *models.JobOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append(m.outputs, *o)
	return nil
}

func (m *memJobs) status(id string) models.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

type memAssets struct {
	mu     sync.Mutex
	assets map[string]*models.Asset
}

func newMemAssets() *memAssets { return &memAssets{assets: map[string]*models.Asset{}} }

func (m *memAssets) Get(ctx context.Context, id string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, errors.NotFound("asset", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memAssets) Create(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

func (m *memAssets) byKind(kind string) []models.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Asset
	for _, a := range m.assets {
		if a.Kind == kind {
			out = append(out, *a)
		}
	}
	return out
}

type memPresets map[string]*models.Preset

func (m memPresets) Get(ctx context.Context, id string) (*models.Preset, error) {
	p, ok := m[id]
	if !ok {
		return nil, errors.NotFound("preset", id)
	}
	return p, nil
}

type memProgress struct {
	mu      sync.Mutex
	updates []models.Progress
}

func (m *memProgress) Set(ctx context.Context, jobID string, p models.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, p)
	return nil
}

func (m *memProgress) last() (models.Progress, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updates) == 0 {
		return models.Progress{}, 0
	}
	return m.updates[len(m.updates)-1], len(m.updates)
}

type stubEncoder struct {
	dst   string
	audio io.Reader
}

func (e *stubEncoder) Begin(ctx context.Context, f encode.Format, audio io.Reader, dst string) error {
	e.dst, e.audio = dst, audio
	return nil
}

func (e *stubEncoder) EncodeFrame(img *image.RGBA) error { return nil }

func (e *stubEncoder) End() error {
	if e.audio != nil {
		if _, err := io.Copy(io.Discard, e.audio); err != nil {
			return err
		}
	}
	return os.WriteFile(e.dst, []byte("fake mp4"), 0o644)
}

func (e *stubEncoder) Abort() {}

func testEngine(t *testing.T) *slideshow.Engine {
	t.Helper()
	cfg := slideshow.DefaultConfig()
	cfg.Width, cfg.Height = 36, 64
	cfg.FPS = 10
	cfg.Workers = 2
	cfg.TempDir = t.TempDir()
	return slideshow.New(cfg, slideshow.WithEncoder(func() encode.Encoder { return &stubEncoder{} }))
}

func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 24))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
