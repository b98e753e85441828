package processor

import (
	"context"
	"sync"
	"time"

	"montage/internal/models"
	"montage/internal/pkg/logger"
	"montage/internal/slideshow"
	"montage/internal/slideshow/job"
)

const progressInterval = 500 * time.Millisecond

// RendererAdapter runs the in-process engine and mirrors its frame count
// into the progress store.
type RendererAdapter struct {
	renderer Renderer
	progress ProgressWriter
	log      *logger.Logger
	interval time.Duration
}

func NewRendererAdapter(r Renderer, progress ProgressWriter, log *logger.Logger) *RendererAdapter {
	return &RendererAdapter{renderer: r, progress: progress, log: log, interval: progressInterval}
}

// Render decodes in and renders it. The caller closes the returned video.
func (ra *RendererAdapter) Render(ctx context.Context, jobID string, in job.Input) (*slideshow.Video, error) {
	rj, err := ra.renderer.Intake().Accept(ctx, in)
	if err != nil {
		return nil, err
	}
	return ra.renderer.RenderWithProgress(ctx, rj, ra.reporter(ctx, jobID))
}

// reporter writes at most one update per interval plus the final frame.
func (ra *RendererAdapter) reporter(ctx context.Context, jobID string) slideshow.ProgressFunc {
	if ra.progress == nil {
		return nil
	}
	var (
		mu     sync.Mutex
		last   time.Time
		warned bool
	)
	log := ra.log.FromContext(ctx)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if done < total && now.Sub(last) < ra.interval {
			return
		}
		last = now
		err := ra.progress.Set(ctx, jobID, models.Progress{Done: done, Total: total, UpdatedAt: now.UTC()})
		if err != nil && !warned {
			warned = true
			log.Warn("progress update failed", "error", err.Error())
		}
	}
}
