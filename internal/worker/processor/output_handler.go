package processor

import (
	"context"

	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/ids"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/slideshow"
)

type OutputHandler struct {
	jobs   JobStore
	assets AssetStore
	sp     ports.StorageProvider
	log    *logger.Logger
}

func NewOutputHandler(jobs JobStore, assets AssetStore, sp ports.StorageProvider, log *logger.Logger) *OutputHandler {
	return &OutputHandler{jobs: jobs, assets: assets, sp: sp, log: log}
}

// RegisterOutput uploads the video, records it as a render_output asset and
// links it to the job.
func (oh *OutputHandler) RegisterOutput(ctx context.Context, jobID string, video *slideshow.Video) (*models.JobOutput, error) {
	// Subir a storage
	key := VideoKey(jobID)
	put, err := oh.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: videoMime,
		Reader:      video,
		Size:        video.Size(),
	})
	if err != nil {
		return nil, errors.Unavailable("processor.outputs", "storage", err).WithField("object_key", key)
	}

	// Registrar en DB
	a := &models.Asset{
		ID:        ids.New("ast"),
		Kind:      models.AssetKindRender,
		Provider:  oh.sp.Provider(),
		ObjectKey: put.ObjectKey,
		Mime:      videoMime,
		SizeBytes: put.Size,
		Label:     jobID,
	}
	if err := oh.assets.Create(ctx, a); err != nil {
		oh.dropObject(ctx, put.ObjectKey)
		return nil, errors.Wrap(err, "processor.outputs", "failed to register video asset")
	}

	out := &models.JobOutput{
		ID:           ids.New("out"),
		JobID:        jobID,
		VideoAssetID: a.ID,
		Frames:       video.Frames(),
		Duration:     video.Duration(),
		DurationMs:   video.Duration().Milliseconds(),
	}
	if err := oh.jobs.AddOutput(ctx, out); err != nil {
		return nil, errors.Wrap(err, "processor.outputs", "failed to save job output")
	}
	return out, nil
}

func (oh *OutputHandler) dropObject(ctx context.Context, key string) {
	if err := oh.sp.DeleteObject(ctx, key); err != nil {
		oh.log.FromContext(ctx).Warn("orphaned object after failed insert", "object_key", key, "error", err.Error())
	}
}
