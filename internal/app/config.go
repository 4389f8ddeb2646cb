package app

import (
	"strings"
	"time"

	"github.com/introvirght/engagement-backend/internal/data/db"
	"github.com/introvirght/engagement-backend/internal/platform/envutil"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
	"github.com/introvirght/engagement-backend/internal/platform/throttle"
	"github.com/introvirght/engagement-backend/internal/realtime/bus"
)

type Config struct {
	AppEnv      string
	ServiceName string
	Version     string
	Port        string

	DB db.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	VectorProvider string
	EmbeddingDim   int

	WorkerConcurrency int
	JobPollInterval   time.Duration
	JobMaxAttempts    int
	JobRetryBaseDelay time.Duration
	JobRetryMaxDelay  time.Duration
	JobStaleAfter     time.Duration
	JobRetention      time.Duration

	EngagementRulesFile   string
	EngagementMaxAttempts int
	ThrottleLimit         int
	ThrottleWindow        time.Duration
	LoginThrottleLimit    int
	LoginThrottleWindow   time.Duration
	ThrottleMaxKeys       int

	MetricsAddr    string
	AllowedOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		AppEnv:      envutil.String("APP_ENV", "development"),
		ServiceName: envutil.String("SERVICE_NAME", "introvirght-engagement"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
		Port:        envutil.String("PORT", "8080"),
		DB: db.Config{
			Driver: envutil.String("DB_DRIVER", "postgres"),
			Postgres: db.PostgresConfig{
				Host:     envutil.String("POSTGRES_HOST", "localhost"),
				Port:     envutil.String("POSTGRES_PORT", "5432"),
				User:     envutil.String("POSTGRES_USER", "postgres"),
				Password: envutil.String("POSTGRES_PASSWORD", ""),
				Name:     envutil.String("POSTGRES_NAME", "introvirght"),
				SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
				MaxOpen:  envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
				MaxIdle:  envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5),
			},
			SQLitePath: envutil.String("SQLITE_PATH", ""),
		},
		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_CHANNEL", bus.DefaultChannel),

		VectorProvider: strings.ToLower(envutil.String("VECTOR_PROVIDER", "sql")),
		EmbeddingDim:   envutil.Int("EMBEDDING_DIM", 384),

		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 2),
		JobPollInterval:   envutil.Duration("JOB_POLL_INTERVAL", time.Second),
		JobMaxAttempts:    envutil.Int("JOB_MAX_ATTEMPTS", 5),
		JobRetryBaseDelay: envutil.Duration("JOB_RETRY_BASE_DELAY", 5*time.Second),
		JobRetryMaxDelay:  envutil.Duration("JOB_RETRY_MAX_DELAY", 10*time.Minute),
		JobStaleAfter:     envutil.Duration("JOB_STALE_AFTER", 2*time.Minute),
		JobRetention:      envutil.Duration("JOB_RETENTION", 7*24*time.Hour),

		EngagementRulesFile:   envutil.String("ENGAGEMENT_RULES_FILE", ""),
		EngagementMaxAttempts: envutil.Int("ENGAGEMENT_MAX_ATTEMPTS", 5),
		ThrottleLimit:         envutil.Int("ENGAGEMENT_THROTTLE_LIMIT", 30),
		ThrottleWindow:        envutil.Duration("ENGAGEMENT_THROTTLE_WINDOW", time.Minute),
		LoginThrottleLimit:    envutil.Int("ENGAGEMENT_LOGIN_THROTTLE_LIMIT", 1),
		LoginThrottleWindow:   envutil.Duration("ENGAGEMENT_LOGIN_THROTTLE_WINDOW", time.Hour),
		ThrottleMaxKeys:       envutil.Int("ENGAGEMENT_THROTTLE_MAX_KEYS", 100000),

		MetricsAddr:    envutil.String("METRICS_ADDR", ""),
		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),
	}
	if cfg.EmbeddingDim != 384 {
		// The diary_vector column is vector(384).
		log.Warn("EMBEDDING_DIM is fixed by the schema; ignoring override", "requested", cfg.EmbeddingDim)
		cfg.EmbeddingDim = 384
	}
	if cfg.WorkerConcurrency < 0 {
		cfg.WorkerConcurrency = 0
	}
	return cfg
}

// ThrottleRules returns the per-event-type limits for the engagement service.
func (c Config) ThrottleRules(eventTypes []string) map[string]throttle.Rule {
	out := make(map[string]throttle.Rule, len(eventTypes))
	for _, t := range eventTypes {
		out[t] = throttle.Rule{Limit: c.ThrottleLimit, Window: c.ThrottleWindow}
	}
	out["login"] = throttle.Rule{Limit: c.LoginThrottleLimit, Window: c.LoginThrottleWindow}
	return out
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}
