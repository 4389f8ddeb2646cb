package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/datatypes"

	"github.com/introvirght/engagement-backend/internal/data/repos"
	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/jobs/runtime"
	"github.com/introvirght/engagement-backend/internal/observability"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	HeartbeatInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = 10 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	return c
}

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	metrics  *observability.Metrics
	cfg      Config
	now      func() time.Time
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, metrics *observability.Metrics, cfg Config) *Worker {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx ends, polling with cfg.Concurrency loops.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("job poll failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	dbc := dbctx.Background(ctx)
	job, err := w.repo.ClaimNextRunnable(dbc, w.registry.Types(), w.now())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	jc := runtime.NewContext(ctx, job)
	runErr := w.execute(jc)
	status := w.finish(dbc, job, jc, runErr)
	w.metrics.ObserveJob(job.JobType, status, time.Since(start))
	return true, nil
}

func (w *Worker) execute(jc *runtime.Context) (err error) {
	job := jc.Job
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		return runtime.Permanent(&missingHandlerError{JobType: job.JobType})
	}

	stop := w.heartbeat(jc.Ctx, job)
	defer stop()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			err = &panicError{Val: r}
		}
	}()
	return h.Run(jc)
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Background(hbCtx), job.ID); err != nil {
					w.log.Warn("job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// finish records the outcome and returns the metric status.
func (w *Worker) finish(dbc dbctx.Context, job *types.JobRun, jc *runtime.Context, runErr error) string {
	if runErr == nil {
		var result datatypes.JSON
		if r := jc.Result(); len(r) > 0 {
			if raw, err := json.Marshal(r); err == nil {
				result = datatypes.JSON(raw)
			}
		}
		if _, err := w.repo.MarkSucceeded(dbc, job.ID, result); err != nil {
			w.log.Error("mark job succeeded failed", "job_id", job.ID, "error", err)
		}
		return types.JobStatusSucceeded
	}

	msg := runErr.Error()
	if runtime.IsPermanent(runErr) || job.Attempts >= job.MaxAttempts {
		w.log.Warn("job dead-lettered", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", runErr)
		if _, err := w.repo.DeadLetter(dbc, job.ID, msg); err != nil {
			w.log.Error("dead-letter job failed", "job_id", job.ID, "error", err)
		}
		return types.JobStatusDeadLetter
	}

	delay := RetryDelay(w.cfg.RetryBaseDelay, w.cfg.RetryMaxDelay, job.Attempts)
	w.log.Info("job failed; retrying", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts, "delay", delay, "error", runErr)
	if _, err := w.repo.Requeue(dbc, job.ID, msg, w.now().Add(delay)); err != nil {
		w.log.Error("requeue job failed", "job_id", job.ID, "error", err)
	}
	if _, ok := runErr.(*panicError); ok {
		return "panic"
	}
	return types.JobStatusFailed
}

// RetryDelay is base * 2^(attempt-1), capped at maxDelay.
func RetryDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxDelay
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
