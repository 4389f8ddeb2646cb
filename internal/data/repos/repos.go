package repos

import (
	"gorm.io/gorm"

	"github.com/introvirght/engagement-backend/internal/data/repos/diary"
	"github.com/introvirght/engagement-backend/internal/data/repos/engagement"
	"github.com/introvirght/engagement-backend/internal/data/repos/jobs"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type EngagementProfileRepo = engagement.ProfileRepo
type EngagementEventRepo = engagement.EventRepo
type DiaryVectorRepo = diary.DiaryVectorRepo
type JobRunRepo = jobs.JobRunRepo

func NewEngagementProfileRepo(db *gorm.DB, baseLog *logger.Logger) EngagementProfileRepo {
	return engagement.NewProfileRepo(db, baseLog)
}

func NewEngagementEventRepo(db *gorm.DB, baseLog *logger.Logger) EngagementEventRepo {
	return engagement.NewEventRepo(db, baseLog)
}

func NewDiaryVectorRepo(db *gorm.DB, baseLog *logger.Logger) DiaryVectorRepo {
	return diary.NewDiaryVectorRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
