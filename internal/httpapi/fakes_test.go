package httpapi

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/slideshow"
	"montage/internal/slideshow/encode"
)

type memJobs struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	outputs map[string][]models.JobOutput
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]*models.Job{}, outputs: map[string][]models.JobOutput{}}
}

func (m *memJobs) Create(ctx context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.CreatedAt = time.Now().UTC()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memJobs) List(ctx context.Context, status string, limit int) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Job{}
	for _, j := range m.jobs {
		if status == "" || string(j.Status) == status {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
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

func (m *memJobs) Outputs(ctx context.Context, jobID string) ([]models.JobOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.JobOutput{}, m.outputs[jobID]...), nil
}

type memAssets struct {
	mu     sync.Mutex
	assets map[string]*models.Asset
	inUse  map[string]bool
}

func newMemAssets() *memAssets {
	return &memAssets{assets: map[string]*models.Asset{}, inUse: map[string]bool{}}
}

func (m *memAssets) Create(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.CreatedAt = time.Now().UTC()
	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

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

func (m *memAssets) InUse(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inUse[id], nil
}

func (m *memAssets) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return errors.NotFound("asset", id)
	}
	delete(m.assets, id)
	return nil
}

type memPresets struct {
	mu      sync.Mutex
	presets map[string]*models.Preset
}

func newMemPresets() *memPresets { return &memPresets{presets: map[string]*models.Preset{}} }

func (m *memPresets) Create(ctx context.Context, p *models.Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.presets {
		if other.Name == p.Name {
			return errors.AlreadyExists("preset", p.Name).WithField("field", "name")
		}
	}
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.presets[p.ID] = &cp
	return nil
}

func (m *memPresets) List(ctx context.Context) ([]models.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Preset{}
	for _, p := range m.presets {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memPresets) Get(ctx context.Context, id string) (*models.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok {
		return nil, errors.NotFound("preset", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPresets) Update(ctx context.Context, p *models.Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.presets[p.ID]; !ok {
		return errors.NotFound("preset", p.ID)
	}
	now := time.Now().UTC()
	p.UpdatedAt = &now
	cp := *p
	m.presets[p.ID] = &cp
	return nil
}

func (m *memPresets) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.presets[id]; !ok {
		return errors.NotFound("preset", id)
	}
	delete(m.presets, id)
	return nil
}

type memQueue struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (q *memQueue) Push(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.ids = append(q.ids, jobID)
	return nil
}

type memProgress map[string]models.Progress

func (m memProgress) Get(ctx context.Context, jobID string) (*models.Progress, error) {
	p, ok := m[jobID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// stubEncoder drains the audio and writes a placeholder file.
type stubEncoder struct {
	dst    string
	audio  io.Reader
	frames int
}

func (e *stubEncoder) Begin(ctx context.Context, f encode.Format, audio io.Reader, dst string) error {
	e.dst, e.audio = dst, audio
	return nil
}

func (e *stubEncoder) EncodeFrame(img *image.RGBA) error {
	e.frames++
	return nil
}

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
	img := image.NewRGBA(image.Rect(0, 0, 20, 30))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
