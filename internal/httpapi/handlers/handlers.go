package handlers

import (
	"context"

	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/slideshow"
	"montage/internal/slideshow/job"
)

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	List(ctx context.Context, status string, limit int) ([]models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	Outputs(ctx context.Context, jobID string) ([]models.JobOutput, error)
}

type AssetStore interface {
	Create(ctx context.Context, a *models.Asset) error
	Get(ctx context.Context, id string) (*models.Asset, error)
	InUse(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type PresetStore interface {
	Create(ctx context.Context, p *models.Preset) error
	List(ctx context.Context) ([]models.Preset, error)
	Get(ctx context.Context, id string) (*models.Preset, error)
	Update(ctx context.Context, p *models.Preset) error
	Delete(ctx context.Context, id string) error
}

type Queue interface {
	Push(ctx context.Context, jobID string) error
}

type ProgressReader interface {
	Get(ctx context.Context, jobID string) (*models.Progress, error)
}

// Renderer is the synchronous render path.
type Renderer interface {
	Intake() *job.Intake
	Render(ctx context.Context, j *job.RenderJob) (*slideshow.Video, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Deps struct {
	Jobs     JobStore
	Assets   AssetStore
	Presets  PresetStore
	Queue    Queue
	Progress ProgressReader
	SP       ports.StorageProvider
	Renderer Renderer
	Log      *logger.Logger

	// Checks are pinged by GET /health?deep=true.
	Checks map[string]Pinger
	// MaxUploadBytes bounds multipart bodies; zero selects 512 MiB.
	MaxUploadBytes int64
	// PublicBaseURL prefixes content links when storage cannot sign URLs.
	PublicBaseURL string
}

type Handler struct {
	jobs      JobStore
	assets    AssetStore
	presets   PresetStore
	queue     Queue
	progress  ProgressReader
	sp        ports.StorageProvider
	renderer  Renderer
	log       *logger.Logger
	checks    map[string]Pinger
	maxUpload int64
	baseURL   string
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 512 << 20
	}
	return &Handler{
		jobs:      d.Jobs,
		assets:    d.Assets,
		presets:   d.Presets,
		queue:     d.Queue,
		progress:  d.Progress,
		sp:        d.SP,
		renderer:  d.Renderer,
		log:       log.WithComponent("httpapi"),
		checks:    d.Checks,
		maxUpload: maxUpload,
		baseURL:   d.PublicBaseURL,
	}
}

func invalidBody(err error) error {
	return errors.WrapWithCode(err, errors.CodeBadRequest, "httpapi.decode", "invalid json body")
}
