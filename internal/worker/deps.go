package worker

import (
	"context"
	"time"

	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/worker/processor"
)

// Queue yields job ids; Pop returns "" when timeout passes without one.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

type Deps struct {
	Jobs     processor.JobStore
	Assets   processor.AssetStore
	Presets  processor.PresetStore
	SP       ports.StorageProvider
	Renderer processor.Renderer
	Queue    Queue
	Progress processor.ProgressWriter
	Log      *logger.Logger

	MaxAssetBytes int64
	// PopTimeout is how long one BRPOP blocks; zero selects 5s.
	PopTimeout time.Duration
}
