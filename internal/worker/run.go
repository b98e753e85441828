package worker

import (
	"context"
	"time"

	"montage/internal/pkg/logger"
	"montage/internal/worker/processor"
)

const (
	defaultPopTimeout = 5 * time.Second
	maxPopBackoff     = 30 * time.Second
)

// Run processes queued jobs one at a time until ctx is canceled. A job in
// flight when ctx ends is canceled and marked failed.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	popTimeout := d.PopTimeout
	if popTimeout <= 0 {
		popTimeout = defaultPopTimeout
	}

	p := processor.New(processor.Deps{
		Jobs:          d.Jobs,
		Assets:        d.Assets,
		Presets:       d.Presets,
		SP:            d.SP,
		Renderer:      d.Renderer,
		Progress:      d.Progress,
		Log:           log,
		MaxAssetBytes: d.MaxAssetBytes,
	})

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			log.Info("worker stopping")
			return err
		}

		jobID, err := d.Queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping")
				return ctx.Err()
			}
			log.Warn("queue pop error, retrying", "error", err.Error(), "backoff", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxPopBackoff)
			continue
		}
		backoff = time.Second
		if jobID == "" {
			continue
		}

		jobLog := log.WithJobID(jobID)
		jobLog.Info("processing job")
		start := time.Now()

		if err := p.ProcessJob(ctx, jobID); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			continue
		}
		jobLog.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
