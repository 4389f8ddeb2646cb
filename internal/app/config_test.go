package app

import (
	"testing"
	"time"

	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "VECTOR_PROVIDER", "WORKER_CONCURRENCY", "JOB_MAX_ATTEMPTS", "EMBEDDING_DIM", "REDIS_CHANNEL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.Nop())
	if cfg.DB.Driver != "postgres" {
		t.Fatalf("driver: want=postgres got=%s", cfg.DB.Driver)
	}
	if cfg.VectorProvider != "sql" {
		t.Fatalf("vector provider: want=sql got=%s", cfg.VectorProvider)
	}
	if cfg.WorkerConcurrency != 2 || cfg.JobMaxAttempts != 5 {
		t.Fatalf("jobs: want=2/5 got=%d/%d", cfg.WorkerConcurrency, cfg.JobMaxAttempts)
	}
	if cfg.EmbeddingDim != 384 {
		t.Fatalf("embedding dim: want=384 got=%d", cfg.EmbeddingDim)
	}
	if cfg.RedisChannel != "engagement.celebrations" {
		t.Fatalf("redis channel: got=%s", cfg.RedisChannel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/iv.db")
	t.Setenv("VECTOR_PROVIDER", "Qdrant")
	t.Setenv("JOB_RETRY_BASE_DELAY", "2s")
	t.Setenv("EMBEDDING_DIM", "1536")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig(logger.Nop())
	if cfg.DB.Driver != "sqlite" || cfg.DB.SQLitePath != "/tmp/iv.db" {
		t.Fatalf("db: got=%+v", cfg.DB)
	}
	if cfg.VectorProvider != "qdrant" {
		t.Fatalf("vector provider: want=qdrant got=%s", cfg.VectorProvider)
	}
	if cfg.JobRetryBaseDelay != 2*time.Second {
		t.Fatalf("retry delay: want=2s got=%v", cfg.JobRetryBaseDelay)
	}
	if cfg.EmbeddingDim != 384 {
		t.Fatalf("embedding dim override must be ignored: got=%d", cfg.EmbeddingDim)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins: got=%v", cfg.AllowedOrigins)
	}
}

func TestThrottleRules(t *testing.T) {
	cfg := Config{ThrottleLimit: 30, ThrottleWindow: time.Minute, LoginThrottleLimit: 1, LoginThrottleWindow: time.Hour}
	rules := cfg.ThrottleRules([]string{"like", "login"})
	if rules["like"].Limit != 30 || rules["like"].Window != time.Minute {
		t.Fatalf("like: got=%+v", rules["like"])
	}
	if rules["login"].Limit != 1 || rules["login"].Window != time.Hour {
		t.Fatalf("login: got=%+v", rules["login"])
	}
}
