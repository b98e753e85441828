package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"montage/internal/models"
	"montage/internal/pkg/errors"
)

type AssetRepository struct {
	db *pgxpool.Pool
}

func NewAssetRepository(db *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, a *models.Asset) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO assets (id, kind, provider, object_key, mime, size_bytes, label)
		VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''))
		RETURNING created_at
	`, a.ID, a.Kind, a.Provider, a.ObjectKey, a.Mime, a.SizeBytes, a.Label).Scan(&a.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "assets.create", "insert asset")
	}
	return nil
}

func (r *AssetRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	var a models.Asset
	err := r.db.QueryRow(ctx, `
		SELECT id, kind, provider, object_key, mime, size_bytes, COALESCE(label,''), created_at
		FROM assets WHERE id=$1
	`, id).Scan(&a.ID, &a.Kind, &a.Provider, &a.ObjectKey, &a.Mime, &a.SizeBytes, &a.Label, &a.CreatedAt)
	if err != nil {
		return nil, lookup(err, "asset", id, "assets.get")
	}
	return &a, nil
}

// InUse reports whether a job output still points at the asset.
func (r *AssetRepository) InUse(ctx context.Context, id string) (bool, error) {
	var cnt int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(1) FROM job_outputs WHERE video_asset_id=$1`, id,
	).Scan(&cnt)
	if err != nil {
		if IsUndefinedTable(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "assets.in_use", "query job outputs")
	}
	return cnt > 0, nil
}

func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM assets WHERE id=$1`, id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return errors.New(errors.CodeConflict, "asset is referenced by job outputs").WithField("asset_id", id)
		}
		return errors.Wrap(err, "assets.delete", "delete asset")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("asset", id)
	}
	return nil
}
