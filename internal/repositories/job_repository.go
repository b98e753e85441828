package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"montage/internal/models"
	"montage/internal/pkg/errors"
)

// maxErrorText bounds the failure message stored on a job row.
const maxErrorText = 2000

type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	spec, err := json.Marshal(j.Spec)
	if err != nil {
		return errors.Wrap(err, "jobs.create", "encode job spec")
	}
	if j.Status == "" {
		j.Status = models.JobQueued
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO jobs (id, name, status, spec_json)
		VALUES ($1,NULLIF($2,''),$3,$4::jsonb)
		RETURNING created_at
	`, j.ID, j.Name, string(j.Status), spec).Scan(&j.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "jobs.create", "insert job")
	}
	return nil
}

// List returns the newest jobs first, optionally filtered by status.
func (r *JobRepository) List(ctx context.Context, status string, limit int) ([]models.Job, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(name,''), status, COALESCE(error_code,''), COALESCE(error_text,''),
		       created_at, started_at, finished_at
		FROM jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, errors.Wrap(err, "jobs.list", "query jobs")
	}
	defer rows.Close()

	out := make([]models.Job, 0, limit)
	for rows.Next() {
		var (
			j  models.Job
			st string
		)
		if err := rows.Scan(&j.ID, &j.Name, &st, &j.ErrorCode, &j.ErrorText, &j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, errors.Wrap(err, "jobs.list", "scan job")
		}
		j.Status = models.JobStatus(st)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var (
		j    models.Job
		st   string
		spec []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, COALESCE(name,''), status, spec_json, COALESCE(error_code,''), COALESCE(error_text,''),
		       created_at, started_at, finished_at
		FROM jobs WHERE id=$1
	`, id).Scan(&j.ID, &j.Name, &st, &spec, &j.ErrorCode, &j.ErrorText, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, lookup(err, "job", id, "jobs.get")
	}
	j.Status = models.JobStatus(st)
	if err := json.Unmarshal(spec, &j.Spec); err != nil {
		return nil, errors.Wrapf(err, "jobs.get", "invalid stored spec for job %s", id)
	}
	return &j, nil
}

func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	return r.setStatus(ctx, "jobs.running", `
		UPDATE jobs SET status='RUNNING', started_at=now(), finished_at=NULL, error_code=NULL, error_text=NULL
		WHERE id=$1`, id)
}

func (r *JobRepository) MarkDone(ctx context.Context, id string) error {
	return r.setStatus(ctx, "jobs.done", `UPDATE jobs SET status='DONE', finished_at=now() WHERE id=$1`, id)
}

// MarkFailed records the failure code and a truncated message.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, code errors.Code, msg string) error {
	if len(msg) > maxErrorText {
		msg = msg[:maxErrorText]
	}
	return r.setStatus(ctx, "jobs.failed", `
		UPDATE jobs SET status='FAILED', finished_at=now(), error_code=$2, error_text=$3
		WHERE id=$1`, id, string(code), msg)
}

func (r *JobRepository) setStatus(ctx context.Context, op, sql string, args ...any) error {
	cmd, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, op, "update job status")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("job", args[0].(string))
	}
	return nil
}

func (r *JobRepository) AddOutput(ctx context.Context, o *models.JobOutput) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO job_outputs (id, job_id, video_asset_id, frames, duration_ms)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, o.ID, o.JobID, o.VideoAssetID, o.Frames, o.Duration.Milliseconds()).Scan(&o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "jobs.output", "insert job output")
	}
	o.DurationMs = o.Duration.Milliseconds()
	return nil
}

func (r *JobRepository) Outputs(ctx context.Context, jobID string) ([]models.JobOutput, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, job_id, video_asset_id, frames, duration_ms, created_at
		FROM job_outputs WHERE job_id=$1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		if IsUndefinedTable(err) {
			return []models.JobOutput{}, nil
		}
		return nil, errors.Wrap(err, "jobs.outputs", "query job outputs")
	}
	defer rows.Close()

	out := []models.JobOutput{}
	for rows.Next() {
		var o models.JobOutput
		if err := rows.Scan(&o.ID, &o.JobID, &o.VideoAssetID, &o.Frames, &o.DurationMs, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "jobs.outputs", "scan job output")
		}
		o.Duration = time.Duration(o.DurationMs) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}
