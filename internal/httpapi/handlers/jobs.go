package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	v1 "montage/internal/contracts/slideshow/v1"
	"montage/internal/httpkit"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/ids"
)

// PostJob validates a JobSpec against its preset and queues it.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var spec v1.JobSpec
	if err := httpkit.DecodeJSON(r, &spec); err != nil {
		return invalidBody(err)
	}
	spec.Name = strings.TrimSpace(spec.Name)
	spec.PresetID = strings.TrimSpace(spec.PresetID)

	resolved, err := h.resolveSpec(ctx, spec)
	if err != nil {
		return err
	}
	if err := resolved.Validate(); err != nil {
		return err
	}
	if err := h.checkAssets(ctx, resolved); err != nil {
		return err
	}

	j := &models.Job{
		ID:     ids.New("job"),
		Name:   spec.Name,
		Status: models.JobQueued,
		Spec:   spec,
	}
	if err := h.jobs.Create(ctx, j); err != nil {
		return err
	}
	if err := h.queue.Push(ctx, j.ID); err != nil {
		return errors.Unavailable("jobs.enqueue", "queue", err)
	}

	h.log.FromContext(ctx).WithJobID(j.ID).Info("job queued",
		"slides", len(spec.Slides),
		"preset_id", spec.PresetID,
	)
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"job": j})
	return nil
}

// resolveSpec merges the referenced preset's defaults under spec.
func (h *Handler) resolveSpec(ctx context.Context, spec v1.JobSpec) (v1.JobSpec, error) {
	if spec.PresetID == "" {
		return spec, nil
	}
	p, err := h.presets.Get(ctx, spec.PresetID)
	if err != nil {
		if errors.IsNotFound(err) {
			return spec, errors.ValidationField("preset_id", "preset not found").WithField("preset_id", spec.PresetID)
		}
		return spec, err
	}
	return spec.Apply(p.Defaults), nil
}

func (h *Handler) checkAssets(ctx context.Context, spec v1.JobSpec) error {
	check := func(field, id, kind string) error {
		a, err := h.assets.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				return errors.ValidationField(field, "asset not found").WithField("asset_id", id)
			}
			return err
		}
		if a.Kind != kind {
			return errors.ValidationField(field, fmt.Sprintf("asset %s is a %s, expected %s", id, a.Kind, kind))
		}
		return nil
	}
	for i, s := range spec.Slides {
		if err := check(fmt.Sprintf("slides[%d].image_asset_id", i), s.ImageAssetID, models.AssetKindImage); err != nil {
			return err
		}
	}
	if spec.AudioAssetID != "" {
		return check("audio_asset_id", spec.AudioAssetID, models.AssetKindAudio)
	}
	return nil
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) error {
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	switch models.JobStatus(status) {
	case "", models.JobQueued, models.JobRunning, models.JobDone, models.JobFailed:
	default:
		return errors.ValidationField("status", "unknown job status: "+status)
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	jobs, err := h.jobs.List(r.Context(), status, limit)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	return nil
}

type jobView struct {
	*models.Job
	Progress *progressView      `json:"progress,omitempty"`
	Outputs  []models.JobOutput `json:"outputs"`
}

type progressView struct {
	models.Progress
	Percent float64 `json:"percent"`
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	j, err := h.jobs.Get(ctx, chi.URLParam(r, "jobId"))
	if err != nil {
		return err
	}
	outs, err := h.jobs.Outputs(ctx, j.ID)
	if err != nil {
		return err
	}

	view := jobView{Job: j, Outputs: outs}
	if h.progress != nil {
		// Progress is best effort; the job row stays authoritative.
		p, err := h.progress.Get(ctx, j.ID)
		if err != nil {
			h.log.FromContext(ctx).WithJobID(j.ID).Warn("progress lookup failed", "error", err.Error())
		} else if p != nil {
			view.Progress = &progressView{Progress: *p, Percent: p.Percent()}
		}
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": view})
	return nil
}

// GetJobVideo streams the rendered video of a finished job.
func (h *Handler) GetJobVideo(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	j, err := h.jobs.Get(ctx, chi.URLParam(r, "jobId"))
	if err != nil {
		return err
	}
	if j.Status != models.JobDone {
		return errors.FailedPrecondition("job is not finished").
			WithField("job_id", j.ID).
			WithField("status", string(j.Status))
	}
	outs, err := h.jobs.Outputs(ctx, j.ID)
	if err != nil {
		return err
	}
	if len(outs) == 0 {
		return errors.NotFound("job output", j.ID)
	}
	a, err := h.assets.Get(ctx, outs[len(outs)-1].VideoAssetID)
	if err != nil {
		return err
	}
	return h.streamAsset(w, r, a, videoName(j.Spec.Input(nil, nil)))
}
