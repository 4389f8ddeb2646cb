package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AutoMigrateModels()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if db.Dialector.Name() == "postgres" {
		return EnsurePostgresIndexes(db)
	}
	return nil
}

// EnsurePostgresIndexes creates indexes gorm tags cannot express.
func EnsurePostgresIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_diary_vector_embedding_hnsw",
			sql:  `CREATE INDEX IF NOT EXISTS idx_diary_vector_embedding_hnsw ON diary_vector USING hnsw (embedding vector_cosine_ops);`,
		},
		{
			name: "idx_job_run_queued",
			sql:  `CREATE INDEX IF NOT EXISTS idx_job_run_queued ON job_run(run_after) WHERE status = 'queued';`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
