package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/introvirght/engagement-backend/internal/data/aggregates"
	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/jobs/handlers"
	"github.com/introvirght/engagement-backend/internal/jobs/maintenance"
	"github.com/introvirght/engagement-backend/internal/jobs/runtime"
	"github.com/introvirght/engagement-backend/internal/jobs/worker"
	"github.com/introvirght/engagement-backend/internal/modules/engagement"
	"github.com/introvirght/engagement-backend/internal/modules/recall"
	"github.com/introvirght/engagement-backend/internal/observability"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
	"github.com/introvirght/engagement-backend/internal/platform/throttle"
	"github.com/introvirght/engagement-backend/internal/services"
)

type Services struct {
	Engagement services.EngagementService
	Recall     services.RecallService
	Reporter   services.ActivityReporter

	JobRegistry *runtime.Registry
	JobWorker   *worker.Worker
	Maintenance *maintenance.Scheduler
}

func wireServices(ctx context.Context, db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	rules, err := engagement.LoadRules(cfg.EngagementRulesFile)
	if err != nil {
		return Services{}, fmt.Errorf("load engagement rules: %w", err)
	}
	engine := engagement.NewEngine(log, rules)

	agg := aggregates.NewEngagementAggregate(aggregates.EngagementAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:       db,
			Log:      log,
			Hooks:    aggregates.NewObservabilityHooks(metrics),
			CASGuard: aggregates.NewCASGuard(db),
		},
		Profiles: reposet.EngagementProfile,
		Events:   reposet.EngagementEvent,
	})

	var (
		store       throttle.Store
		memThrottle *throttle.MemoryStore
	)
	if clients.Redis != nil {
		store = throttle.NewRedisStore(clients.Redis, "iv:throttle:")
	} else {
		memThrottle = throttle.NewMemoryStore(throttle.WithMaxKeys(cfg.ThrottleMaxKeys))
		store = memThrottle
	}

	engagementSvc := services.NewEngagementService(services.EngagementServiceDeps{
		Log:           log,
		Engine:        engine,
		Aggregate:     agg,
		Profiles:      reposet.EngagementProfile,
		Events:        reposet.EngagementEvent,
		Throttle:      store,
		ThrottleRules: cfg.ThrottleRules(types.ActivityEventTypes()),
		Bus:           clients.Bus,
		Metrics:       metrics,
		MaxAttempts:   cfg.EngagementMaxAttempts,
	})

	index, provider, err := resolveVectorIndex(ctx, log, cfg, metrics)
	if err != nil {
		return Services{}, err
	}
	recallSvc := services.NewRecallService(services.RecallServiceDeps{
		Log:            log,
		Embedder:       recall.NewHashingEmbedder(cfg.EmbeddingDim),
		Vectors:        reposet.DiaryVector,
		Jobs:           reposet.JobRun,
		Index:          index,
		Provider:       provider,
		JobMaxAttempts: cfg.JobMaxAttempts,
		Metrics:        metrics,
	})

	registry := runtime.NewRegistry()
	if err := handlers.Register(registry, recallSvc); err != nil {
		return Services{}, err
	}
	jobWorker := worker.NewWorker(log, reposet.JobRun, registry, metrics, worker.Config{
		Concurrency:    cfg.WorkerConcurrency,
		PollInterval:   cfg.JobPollInterval,
		RetryBaseDelay: cfg.JobRetryBaseDelay,
		RetryMaxDelay:  cfg.JobRetryMaxDelay,
	})

	mcfg := maintenance.Config{StaleAfter: cfg.JobStaleAfter, Retention: cfg.JobRetention}
	if memThrottle != nil {
		mcfg.ThrottleSweep = memThrottle.Sweep
	}
	sched, err := maintenance.NewScheduler(log, reposet.JobRun, mcfg)
	if err != nil {
		return Services{}, fmt.Errorf("init job maintenance: %w", err)
	}

	return Services{
		Engagement:  engagementSvc,
		Recall:      recallSvc,
		Reporter:    services.NewActivityReporter(log, engagementSvc, recallSvc),
		JobRegistry: registry,
		JobWorker:   jobWorker,
		Maintenance: sched,
	}, nil
}
