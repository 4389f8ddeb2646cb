package app

import (
	"gorm.io/gorm"

	"github.com/introvirght/engagement-backend/internal/data/repos"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type Repos struct {
	EngagementProfile repos.EngagementProfileRepo
	EngagementEvent   repos.EngagementEventRepo
	DiaryVector       repos.DiaryVectorRepo
	JobRun            repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		EngagementProfile: repos.NewEngagementProfileRepo(db, log),
		EngagementEvent:   repos.NewEngagementEventRepo(db, log),
		DiaryVector:       repos.NewDiaryVectorRepo(db, log),
		JobRun:            repos.NewJobRunRepo(db, log),
	}
}
