package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"montage/internal/pkg/logger"
)

const (
	DefaultSweepSchedule = "@every 15m"
	DefaultSweepMaxAge   = time.Hour
)

// Sweeper removes render-* directories left behind by processes that died
// mid-render. Finished and failed renders clean up after themselves.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	schedule string
	log      *logger.Logger
	now      func() time.Time
}

func NewSweeper(dir, schedule string, maxAge time.Duration, log *logger.Logger) *Sweeper {
	if dir == "" {
		dir = os.TempDir()
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if maxAge <= 0 {
		maxAge = DefaultSweepMaxAge
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Sweeper{
		dir:      dir,
		maxAge:   maxAge,
		schedule: schedule,
		log:      log.WithComponent("sweeper"),
		now:      time.Now,
	}
}

// Sweep removes stale render directories and reports how many it removed.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	cutoff := s.now().Add(-s.maxAge)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "render-") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			s.log.Warn("stale render directory not removed", "path", p, "error", err.Error())
			continue
		}
		removed++
	}
	return removed, nil
}

// Run sweeps once, then on schedule until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweepAndLog); err != nil {
		return err
	}
	s.sweepAndLog()
	c.Start()
	s.log.Info("sweeper scheduled", "schedule", s.schedule, "dir", s.dir, "max_age", s.maxAge.String())

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Sweeper) sweepAndLog() {
	n, err := s.Sweep()
	if err != nil {
		s.log.Error("sweep failed", "error", err.Error())
		return
	}
	if n > 0 {
		s.log.Info("stale render directories removed", "count", n)
	}
}
