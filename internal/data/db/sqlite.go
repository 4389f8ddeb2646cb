package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

// NewSQLite opens a SQLite database for local development and tests.
// An empty path opens a private in-memory database.
func NewSQLite(baseLog *logger.Logger, path string) (*gorm.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(baseLog),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite allows one writer; a single connection also keeps in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
