package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	v1 "montage/internal/contracts/slideshow/v1"
	"montage/internal/models"
	"montage/internal/pkg/errors"
)

type PresetRepository struct {
	db *pgxpool.Pool
}

func NewPresetRepository(db *pgxpool.Pool) *PresetRepository {
	return &PresetRepository{db: db}
}

func (r *PresetRepository) Create(ctx context.Context, p *models.Preset) error {
	defaults, err := json.Marshal(p.Defaults)
	if err != nil {
		return errors.Wrap(err, "presets.create", "encode defaults")
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO presets (id, name, description, defaults)
		VALUES ($1,$2,$3,$4::jsonb)
		RETURNING created_at
	`, p.ID, p.Name, p.Description, defaults).Scan(&p.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return errors.AlreadyExists("preset", p.Name).WithField("field", "name")
		}
		return errors.Wrap(err, "presets.create", "insert preset")
	}
	return nil
}

func (r *PresetRepository) List(ctx context.Context) ([]models.Preset, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, defaults, created_at, updated_at
		FROM presets
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "presets.list", "query presets")
	}
	defer rows.Close()

	out := []models.Preset{}
	for rows.Next() {
		var (
			p   models.Preset
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "presets.list", "scan preset")
		}
		if err := unmarshalDefaults(raw, &p.Defaults); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PresetRepository) Get(ctx context.Context, id string) (*models.Preset, error) {
	var (
		p   models.Preset
		raw []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, defaults, created_at, updated_at
		FROM presets
		WHERE id=$1 AND deleted_at IS NULL
	`, id).Scan(&p.ID, &p.Name, &p.Description, &raw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, lookup(err, "preset", id, "presets.get")
	}
	if err := unmarshalDefaults(raw, &p.Defaults); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PresetRepository) Update(ctx context.Context, p *models.Preset) error {
	defaults, err := json.Marshal(p.Defaults)
	if err != nil {
		return errors.Wrap(err, "presets.update", "encode defaults")
	}
	err = r.db.QueryRow(ctx, `
		UPDATE presets
		SET name=$2, description=$3, defaults=$4::jsonb, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING updated_at
	`, p.ID, p.Name, p.Description, defaults).Scan(&p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return errors.AlreadyExists("preset", p.Name).WithField("field", "name")
		}
		return lookup(err, "preset", p.ID, "presets.update")
	}
	return nil
}

func (r *PresetRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE presets
		SET deleted_at=now()
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return errors.Wrap(err, "presets.delete", "delete preset")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("preset", id)
	}
	return nil
}

func unmarshalDefaults(raw []byte, d *v1.Defaults) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return errors.Wrap(err, "presets.decode", "invalid preset defaults")
	}
	return nil
}
