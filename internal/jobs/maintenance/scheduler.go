package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/introvirght/engagement-backend/internal/data/repos"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type Config struct {
	StaleAfter    time.Duration
	Retention     time.Duration
	RequeueSpec   string
	PurgeSpec     string
	ThrottleSweep func() int
	SweepSpec     string
}

func (c Config) withDefaults() Config {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.RequeueSpec == "" {
		c.RequeueSpec = "@every 1m"
	}
	if c.PurgeSpec == "" {
		c.PurgeSpec = "@hourly"
	}
	if c.SweepSpec == "" {
		c.SweepSpec = "@every 5m"
	}
	return c
}

// Scheduler runs periodic queue upkeep: stale running jobs go back to the queue and old
// succeeded jobs are purged.
type Scheduler struct {
	log  *logger.Logger
	repo repos.JobRunRepo
	cfg  Config
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	started bool
}

func NewScheduler(baseLog *logger.Logger, repo repos.JobRunRepo, cfg Config) (*Scheduler, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	s := &Scheduler{
		log:  baseLog.With("component", "JobMaintenance"),
		repo: repo,
		cfg:  cfg.withDefaults(),
		cron: cron.New(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(s.cfg.RequeueSpec, func() { s.RequeueStale(context.Background()) }); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(s.cfg.PurgeSpec, func() { s.PurgeSucceeded(context.Background()) }); err != nil {
		return nil, err
	}
	if s.cfg.ThrottleSweep != nil {
		if _, err := s.cron.AddFunc(s.cfg.SweepSpec, func() {
			if n := s.cfg.ThrottleSweep(); n > 0 {
				s.log.Debug("throttle keys evicted", "count", n)
			}
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx ends, then waits for running tasks.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("job maintenance started", "entries", len(s.cron.Entries()))
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("job maintenance stop timed out")
	}
	return nil
}

func (s *Scheduler) RequeueStale(ctx context.Context) int64 {
	n, err := s.repo.RequeueStale(dbctx.Background(ctx), s.now().Add(-s.cfg.StaleAfter))
	if err != nil {
		s.log.Warn("requeue stale jobs failed", "error", err)
		return 0
	}
	if n > 0 {
		s.log.Info("requeued stale jobs", "count", n)
	}
	return n
}

func (s *Scheduler) PurgeSucceeded(ctx context.Context) int64 {
	n, err := s.repo.PurgeSucceeded(dbctx.Background(ctx), s.now().Add(-s.cfg.Retention))
	if err != nil {
		s.log.Warn("purge succeeded jobs failed", "error", err)
		return 0
	}
	if n > 0 {
		s.log.Info("purged succeeded jobs", "count", n)
	}
	return n
}
