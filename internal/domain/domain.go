package domain

import (
	"github.com/introvirght/engagement-backend/internal/domain/diary"
	"github.com/introvirght/engagement-backend/internal/domain/engagement"
	"github.com/introvirght/engagement-backend/internal/domain/jobs"
)

const (
	EventPostCreate = engagement.EventPostCreate
	EventDiaryEntry = engagement.EventDiaryEntry
	EventLike       = engagement.EventLike
	EventComment    = engagement.EventComment
	EventShare      = engagement.EventShare
	EventLogin      = engagement.EventLogin

	EventAchievement     = engagement.EventAchievement
	EventStreakMilestone = engagement.EventStreakMilestone
	EventLevelUp         = engagement.EventLevelUp
	EventBadgeUnlock     = engagement.EventBadgeUnlock

	StreakPosting    = engagement.StreakPosting
	StreakDiary      = engagement.StreakDiary
	StreakEngagement = engagement.StreakEngagement
	StreakCombined   = engagement.StreakCombined

	CelebrationLevelUp         = engagement.CelebrationLevelUp
	CelebrationStreakMilestone = engagement.CelebrationStreakMilestone
	CelebrationBadgeEarned     = engagement.CelebrationBadgeEarned
	CelebrationAchievement     = engagement.CelebrationAchievement
)

const (
	JobStatusQueued     = jobs.StatusQueued
	JobStatusRunning    = jobs.StatusRunning
	JobStatusSucceeded  = jobs.StatusSucceeded
	JobStatusFailed     = jobs.StatusFailed
	JobStatusDeadLetter = jobs.StatusDeadLetter
	JobStatusCanceled   = jobs.StatusCanceled
)

type EngagementProfile = engagement.EngagementProfile
type EngagementEvent = engagement.EngagementEvent
type StreakState = engagement.StreakState
type Badge = engagement.Badge
type AchievementProgress = engagement.AchievementProgress
type AchievementRewards = engagement.AchievementRewards
type ContentCreated = engagement.ContentCreated
type SocialImpact = engagement.SocialImpact
type EmotionalGrowth = engagement.EmotionalGrowth
type Celebration = engagement.Celebration
type Rewards = engagement.Rewards

type DiaryVector = diary.DiaryVector
type DiaryMetadata = diary.Metadata
type DiaryTombstone = diary.Tombstone

type JobRun = jobs.JobRun

var (
	NewEngagementProfile = engagement.NewEngagementProfile
	NewStreakState       = engagement.NewStreakState
	IsActivityEventType  = engagement.IsActivityEventType
	ActivityEventTypes   = engagement.ActivityEventTypes
	IsSystemEventType    = engagement.IsSystemEventType
)

// AutoMigrateModels lists every table owned by this service, in creation order.
func AutoMigrateModels() []any {
	return []any{
		&EngagementProfile{},
		&EngagementEvent{},
		&DiaryVector{},
		&DiaryTombstone{},
		&JobRun{},
	}
}
