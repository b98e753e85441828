package processor

import (
	"context"
	"time"

	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/slideshow"
	"montage/internal/slideshow/job"
)

// statusWriteTimeout bounds the final status update once the job context is gone.
const statusWriteTimeout = 5 * time.Second

type JobStore interface {
	Get(ctx context.Context, id string) (*models.Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, code errors.Code, msg string) error
	AddOutput(ctx context.Context, o *models.JobOutput) error
}

type AssetStore interface {
	Get(ctx context.Context, id string) (*models.Asset, error)
	Create(ctx context.Context, a *models.Asset) error
}

type PresetStore interface {
	Get(ctx context.Context, id string) (*models.Preset, error)
}

type ProgressWriter interface {
	Set(ctx context.Context, jobID string, p models.Progress) error
}

// Renderer is satisfied by *slideshow.Engine.
type Renderer interface {
	Intake() *job.Intake
	RenderWithProgress(ctx context.Context, j *job.RenderJob, progress slideshow.ProgressFunc) (*slideshow.Video, error)
}

type Deps struct {
	Jobs     JobStore
	Assets   AssetStore
	Presets  PresetStore
	SP       ports.StorageProvider
	Renderer Renderer
	// Progress may be nil; renders then run without live progress.
	Progress ProgressWriter
	Log      *logger.Logger
	// MaxAssetBytes caps each downloaded asset; zero selects 256 MiB.
	MaxAssetBytes int64
}

type Processor struct {
	jobs JobStore
	log  *logger.Logger

	// Componentes internos
	jobParser       *JobParser
	inputHandler    *InputHandler
	outputHandler   *OutputHandler
	rendererAdapter *RendererAdapter
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	// Inicializar componentes
	return &Processor{
		jobs:            d.Jobs,
		log:             log,
		jobParser:       NewJobParser(d.Presets),
		inputHandler:    NewInputHandler(d.Assets, d.SP, d.MaxAssetBytes),
		outputHandler:   NewOutputHandler(d.Jobs, d.Assets, d.SP, log),
		rendererAdapter: NewRendererAdapter(d.Renderer, d.Progress, log),
	}
}

// ProcessJob runs one queued job to DONE or FAILED.
func (p *Processor) ProcessJob(ctx context.Context, jobID string) error {
	ctx = logger.ContextWithJobID(ctx, jobID)
	log := p.log.FromContext(ctx)

	// 1. Obtener el job y resolver su preset
	j, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		// Without a row there is nothing to mark failed.
		return err
	}
	switch j.Status {
	case models.JobDone, models.JobFailed:
		log.Warn("skipping finished job", "status", string(j.Status))
		return nil
	}

	spec, err := p.jobParser.Parse(ctx, j)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}

	// 2. Marcar como running
	if err := p.jobs.MarkRunning(ctx, jobID); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.status", "failed to mark job as running"))
	}

	// 3. Descargar inputs
	log.Debug("materializing inputs", "assets", len(spec.AssetIDs()))
	images, audio, err := p.inputHandler.Materialize(ctx, spec)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}

	// 4. Renderizar
	log.Info("starting render", "slides", len(spec.Slides), "audio", len(audio) > 0)
	video, err := p.rendererAdapter.Render(ctx, jobID, spec.Input(images, audio))
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}
	defer video.Close()

	// 5. Subir y registrar el video
	out, err := p.outputHandler.RegisterOutput(ctx, jobID, video)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}
	log.Debug("output registered", "video_asset", out.VideoAssetID, "output_id", out.ID)

	// 6. Marcar como done
	if err := p.jobs.MarkDone(ctx, jobID); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.status", "failed to mark job as done"))
	}
	return nil
}

func (p *Processor) failJob(ctx context.Context, jobID string, cause error) error {
	log := p.log.FromContext(ctx)

	code := errors.GetCode(cause)
	msg := errors.GetMessage(cause)
	switch {
	case errors.IsRenderFailure(cause):
		log.WithError(cause).Error("render failed")
	case errors.IsValidation(cause) || errors.IsNotFound(cause):
		log.WithError(cause).Warn("job rejected")
	default:
		log.WithError(cause).Error("job failed")
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if err := p.jobs.MarkFailed(wctx, jobID, code, msg); err != nil {
		log.Error("failed to record job failure", "error", err.Error())
	}
	return cause
}
