package processor

import (
	"context"

	v1 "montage/internal/contracts/slideshow/v1"
	"montage/internal/models"
	"montage/internal/pkg/errors"
)

type JobParser struct {
	presets PresetStore
}

func NewJobParser(presets PresetStore) *JobParser {
	return &JobParser{presets: presets}
}

// Parse resolves the job's stored spec against its preset as it is now. A
// preset deleted after the job was queued fails the job.
func (jp *JobParser) Parse(ctx context.Context, j *models.Job) (v1.JobSpec, error) {
	spec := j.Spec
	if spec.PresetID != "" {
		if jp.presets == nil {
			return spec, errors.FailedPrecondition("presets are not available").WithField("preset_id", spec.PresetID)
		}
		p, err := jp.presets.Get(ctx, spec.PresetID)
		if err != nil {
			if errors.IsNotFound(err) {
				return spec, errors.ValidationField("preset_id", "preset not found").WithField("preset_id", spec.PresetID)
			}
			return spec, errors.Wrap(err, "processor.parse", "failed to load preset")
		}
		spec = spec.Apply(p.Defaults)
	}
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}
