package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	engagementEvents    *CounterVec
	engagementXP        *CounterVec
	engagementThrottled *CounterVec
	celebrations        *CounterVec

	vectorStoreOps     *CounterVec
	vectorStoreLatency *HistogramVec
	recallSearches     *CounterVec
	recallLatency      *HistogramVec
	recallResults      *HistogramVec

	jobRuns     *CounterVec
	jobLatency  *HistogramVec
	workerTotal *Counter
	workerError *Counter

	queueDepth *GaugeVec
	pgStats    *GaugeVec
	redisUp    *Gauge
	redisPing  *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the process-wide registry once. Returns nil when METRICS_ENABLED is off;
// every method is nil-safe so callers never need to check.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latencyBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	return &Metrics{
		apiRequests: NewCounterVec("iv_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"iv_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			latencyBuckets,
		),
		apiInflight: NewGauge("iv_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("iv_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("iv_api_requests_error_total", "Total API requests with 5xx status."),

		aggregateOps: NewCounterVec("iv_aggregate_operations_total", "Aggregate write operations by op/status.", []string{"op", "status"}),
		aggregateLatency: NewHistogramVec(
			"iv_aggregate_operation_duration_seconds",
			"Aggregate write latency in seconds.",
			[]string{"op"},
			latencyBuckets,
		),
		aggregateConflicts: NewCounterVec("iv_aggregate_conflicts_total", "Aggregate optimistic concurrency conflicts.", []string{"op"}),
		aggregateRetries:   NewCounterVec("iv_aggregate_retries_total", "Aggregate writes that failed with a retryable error.", []string{"op"}),

		engagementEvents:    NewCounterVec("iv_engagement_events_total", "Engagement events processed by type/outcome.", []string{"event_type", "outcome"}),
		engagementXP:        NewCounterVec("iv_engagement_xp_awarded_total", "Experience points awarded by source.", []string{"source"}),
		engagementThrottled: NewCounterVec("iv_engagement_throttled_total", "Engagement events rejected by the throttle.", []string{"event_type"}),
		celebrations:        NewCounterVec("iv_engagement_celebrations_total", "Celebrations emitted by type.", []string{"type"}),

		vectorStoreOps: NewCounterVec("iv_vector_store_operations_total", "Vector store operations by provider/op/status.", []string{"provider", "op", "status"}),
		vectorStoreLatency: NewHistogramVec(
			"iv_vector_store_operation_duration_seconds",
			"Vector store latency in seconds by provider/op.",
			[]string{"provider", "op"},
			latencyBuckets,
		),
		recallSearches: NewCounterVec("iv_recall_searches_total", "Diary similarity searches by status.", []string{"status"}),
		recallLatency: NewHistogramVec(
			"iv_recall_search_duration_seconds",
			"Diary similarity search latency in seconds.",
			[]string{"status"},
			latencyBuckets,
		),
		recallResults: NewHistogramVec(
			"iv_recall_search_results",
			"Number of matches returned per search.",
			[]string{"status"},
			[]float64{0, 1, 2, 5, 10, 20, 50},
		),

		jobRuns: NewCounterVec("iv_job_runs_total", "Job executions by type/status.", []string{"job_type", "status"}),
		jobLatency: NewHistogramVec(
			"iv_job_run_duration_seconds",
			"Job execution latency in seconds by type/status.",
			[]string{"job_type", "status"},
			[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		),
		workerTotal: NewCounter("iv_worker_jobs_total", "Jobs handled by workers."),
		workerError: NewCounter("iv_worker_jobs_error_total", "Jobs that failed in workers."),

		queueDepth: NewGaugeVec("iv_job_queue_depth", "Job runs by status.", []string{"status"}),
		pgStats:    NewGaugeVec("iv_postgres_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:    NewGauge("iv_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:  NewGauge("iv_redis_ping_seconds", "Last redis ping latency in seconds."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.engagementEvents, m.engagementXP, m.engagementThrottled, m.celebrations,
		m.vectorStoreOps, m.vectorStoreLatency, m.recallSearches, m.recallLatency, m.recallResults,
		m.jobRuns, m.jobLatency, m.workerTotal, m.workerError,
		m.queueDepth, m.pgStats, m.redisUp, m.redisPing,
	}
	for _, c := range all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveAggregateOperation records one aggregate write. status is "success" or the mapped error code.
func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "success"
	}
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) IncEngagementEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.engagementEvents.Inc(eventType, outcome)
}

func (m *Metrics) AddExperience(source string, xp int) {
	if m == nil || xp <= 0 {
		return
	}
	m.engagementXP.Add(float64(xp), source)
}

func (m *Metrics) IncThrottled(eventType string) {
	if m == nil {
		return
	}
	m.engagementThrottled.Inc(eventType)
}

func (m *Metrics) IncCelebration(kind string) {
	if m == nil {
		return
	}
	m.celebrations.Inc(kind)
}

func (m *Metrics) ObserveVectorStoreOperation(provider, op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "ok"
	}
	m.vectorStoreOps.Inc(provider, op, status)
	m.vectorStoreLatency.Observe(dur.Seconds(), provider, op)
}

func (m *Metrics) ObserveRecallSearch(status string, results int, dur time.Duration) {
	if m == nil {
		return
	}
	m.recallSearches.Inc(status)
	m.recallLatency.Observe(dur.Seconds(), status)
	m.recallResults.Observe(float64(results), status)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobLatency.Observe(dur.Seconds(), jobType, status)
	m.workerTotal.Inc()
	if isFailureStatus(status) {
		m.workerError.Inc()
	}
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{
		types.JobStatusQueued,
		types.JobStatusRunning,
		types.JobStatusSucceeded,
		types.JobStatusFailed,
		types.JobStatusDeadLetter,
		types.JobStatusCanceled,
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.JobRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					status := strings.TrimSpace(row.Status)
					if status == "" {
						status = "unknown"
					}
					m.queueDepth.Set(float64(row.Count), status)
				}
			}
		}
	}()
}

func isServerErrorStatus(status string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(status))
	return err == nil && n >= 500
}

func isFailureStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "error", "dead_letter", "panic":
		return true
	default:
		return false
	}
}
