package processor

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	v1 "montage/internal/contracts/slideshow/v1"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/ports"
)

const (
	defaultMaxAssetBytes = 256 << 20
	downloadConcurrency  = 4
)

// InputHandler loads a job's assets from storage into memory.
type InputHandler struct {
	assets   AssetStore
	sp       ports.StorageProvider
	maxBytes int64
}

func NewInputHandler(assets AssetStore, sp ports.StorageProvider, maxBytes int64) *InputHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxAssetBytes
	}
	return &InputHandler{assets: assets, sp: sp, maxBytes: maxBytes}
}

// Materialize returns the slide images indexed like spec.Slides and the audio
// track, if any. An asset used by several slides is downloaded once.
func (ih *InputHandler) Materialize(ctx context.Context, spec v1.JobSpec) (images [][]byte, audio []byte, err error) {
	type want struct {
		field, kind string
	}
	wanted := make(map[string]want)
	for i, s := range spec.Slides {
		if _, ok := wanted[s.ImageAssetID]; !ok {
			wanted[s.ImageAssetID] = want{fmt.Sprintf("slides[%d].image_asset_id", i), models.AssetKindImage}
		}
	}
	if spec.AudioAssetID != "" {
		if w, ok := wanted[spec.AudioAssetID]; ok {
			return nil, nil, errors.ValidationField("audio_asset_id", "asset is already used as "+w.field)
		}
		wanted[spec.AudioAssetID] = want{"audio_asset_id", models.AssetKindAudio}
	}

	data := make(map[string][]byte, len(wanted))
	results := make(chan struct {
		id   string
		data []byte
	}, len(wanted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for id, w := range wanted {
		g.Go(func() error {
			b, err := ih.fetch(gctx, w.field, id, w.kind)
			if err != nil {
				return err
			}
			results <- struct {
				id   string
				data []byte
			}{id, b}
			return nil
		})
	}
	err = g.Wait()
	close(results)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.Canceled("processor.inputs", ctx.Err())
		}
		return nil, nil, err
	}
	for r := range results {
		data[r.id] = r.data
	}

	images = make([][]byte, len(spec.Slides))
	for i, s := range spec.Slides {
		images[i] = data[s.ImageAssetID]
	}
	if spec.AudioAssetID != "" {
		audio = data[spec.AudioAssetID]
	}
	return images, audio, nil
}

func (ih *InputHandler) fetch(ctx context.Context, field, id, kind string) ([]byte, error) {
	// Obtener metadata del asset
	a, err := ih.assets.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.ValidationField(field, "asset not found").WithField("asset_id", id)
		}
		return nil, err
	}
	if a.Kind != kind {
		return nil, errors.ValidationField(field, fmt.Sprintf("asset %s is a %s, expected %s", id, a.Kind, kind))
	}
	if a.SizeBytes > ih.maxBytes {
		return nil, tooLarge(id, ih.maxBytes)
	}

	// Descargar del storage
	rc, _, _, err := ih.sp.GetObject(ctx, a.ObjectKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.NotFound("asset content", id).WithField("object_key", a.ObjectKey)
		}
		return nil, errors.Unavailable("processor.inputs", "storage", err).WithField("asset_id", id)
	}
	defer rc.Close()

	// The row's size may be stale or unknown, so the read itself is bounded.
	b, err := io.ReadAll(io.LimitReader(rc, ih.maxBytes+1))
	if err != nil {
		return nil, errors.Unavailable("processor.inputs", "storage", err).WithField("asset_id", id)
	}
	if int64(len(b)) > ih.maxBytes {
		return nil, tooLarge(id, ih.maxBytes)
	}
	return b, nil
}

func tooLarge(id string, limit int64) *errors.Error {
	return errors.ResourceExhausted(nil, fmt.Sprintf("asset %s exceeds %d bytes", id, limit)).WithField("asset_id", id)
}
