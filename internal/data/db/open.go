package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type Config struct {
	Driver     string
	Postgres   PostgresConfig
	SQLitePath string
}

// Open connects to the configured driver ("postgres" or "sqlite") and migrates the schema.
func Open(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	var (
		gdb *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "postgres":
		var svc *PostgresService
		svc, err = NewPostgresService(log, cfg.Postgres)
		if svc != nil {
			gdb = svc.DB()
		}
	case "sqlite":
		gdb, err = NewSQLite(log, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateAll(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
