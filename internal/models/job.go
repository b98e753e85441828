package models

import (
	"time"

	v1 "montage/internal/contracts/slideshow/v1"
)

type JobStatus string

const (
	JobQueued  JobStatus = "QUEUED"
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Status     JobStatus  `json:"status"`
	Spec       v1.JobSpec `json:"spec"`
	ErrorCode  string     `json:"error_code,omitempty"`
	ErrorText  string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobOutput links a finished job to its rendered video.
type JobOutput struct {
	ID           string        `json:"id"`
	JobID        string        `json:"job_id"`
	VideoAssetID string        `json:"video_asset_id"`
	Frames       int           `json:"frames"`
	Duration     time.Duration `json:"-"`
	DurationMs   int64         `json:"duration_ms"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Progress is the live render state kept outside Postgres.
type Progress struct {
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) * 100 / float64(p.Total)
}
