package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"montage/internal/models"
)

// progressTTL keeps finished jobs' progress readable for a day.
const progressTTL = 24 * time.Hour

// ProgressStore keeps live render progress in a Redis hash per job.
type ProgressStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProgressStore(rdb *redis.Client) *ProgressStore {
	return &ProgressStore{rdb: rdb, ttl: progressTTL}
}

func ProgressKey(jobID string) string { return "montage:job:" + jobID }

func (s *ProgressStore) Set(ctx context.Context, jobID string, p models.Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	key := ProgressKey(jobID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, progressFields(p))
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns nil when no progress was recorded for the job.
func (s *ProgressStore) Get(ctx context.Context, jobID string) (*models.Progress, error) {
	fields, err := s.rdb.HGetAll(ctx, ProgressKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	return parseProgress(fields), nil
}

func progressFields(p models.Progress) map[string]any {
	return map[string]any{
		"done":       p.Done,
		"total":      p.Total,
		"updated_at": p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseProgress(fields map[string]string) *models.Progress {
	if len(fields) == 0 {
		return nil
	}
	var p models.Progress
	p.Done, _ = strconv.Atoi(fields["done"])
	p.Total, _ = strconv.Atoi(fields["total"])
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return &p
}
