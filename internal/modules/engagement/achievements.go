package engagement

import (
	"time"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

// AchievementDefinition is one progress-tracked goal. Progress is recomputed from the
// profile and the recent event window on every evaluation and clamped to MaxProgress.
type AchievementDefinition struct {
	ID          string
	Name        string
	Description string
	Category    string
	MaxProgress int
	Progress    func(p *types.EngagementProfile, recent []*types.EngagementEvent, now time.Time) int
	Rewards     types.AchievementRewards
}

// DefaultAchievements is the shipped achievement catalog, in evaluation order.
func DefaultAchievements(loc *time.Location) []AchievementDefinition {
	if loc == nil {
		loc = time.UTC
	}
	return []AchievementDefinition{
		{
			ID: "writing_journey", Name: "Writing Journey", Description: "Write 30 diary entries",
			Category: BadgeCategoryAchievement, MaxProgress: 30,
			Progress: func(p *types.EngagementProfile, _ []*types.EngagementEvent, _ time.Time) int {
				return p.ContentCreated.Data().DiaryEntries
			},
			Rewards: types.AchievementRewards{Experience: 200, Unlocks: []string{"insights_dashboard"}},
		},
		{
			ID: "storyteller", Name: "Storyteller", Description: "Share 25 posts",
			Category: BadgeCategoryAchievement, MaxProgress: 25,
			Progress: func(p *types.EngagementProfile, _ []*types.EngagementEvent, _ time.Time) int {
				return p.ContentCreated.Data().Posts
			},
			Rewards: types.AchievementRewards{Experience: 150},
		},
		{
			ID: "streak_keeper", Name: "Streak Keeper", Description: "Keep any streak for 30 days",
			Category: BadgeCategoryStreak, MaxProgress: 30,
			Progress: func(p *types.EngagementProfile, _ []*types.EngagementEvent, _ time.Time) int {
				return p.MaxLongestStreak()
			},
			Rewards: types.AchievementRewards{Experience: 300, Badges: []string{"consistency_crown"}},
		},
		{
			ID: "community_pillar", Name: "Community Pillar", Description: "Make 100 community contributions",
			Category: BadgeCategorySocial, MaxProgress: 100,
			Progress: func(p *types.EngagementProfile, _ []*types.EngagementEvent, _ time.Time) int {
				return p.SocialImpact.Data().CommunityContributions
			},
			Rewards: types.AchievementRewards{Experience: 250, Badges: []string{"heart_of_community"}},
		},
		{
			ID: "mood_cartographer", Name: "Mood Cartographer", Description: "Record 8 different moods",
			Category: BadgeCategoryGrowth, MaxProgress: 8,
			Progress: func(p *types.EngagementProfile, _ []*types.EngagementEvent, _ time.Time) int {
				return len(p.EmotionalGrowth.Data().MoodsSeen)
			},
			Rewards: types.AchievementRewards{Experience: 100},
		},
		{
			ID: "weekly_reflection", Name: "Weekly Reflection", Description: "Write in your diary on 7 days of one week",
			Category: BadgeCategoryGrowth, MaxProgress: 7,
			Progress: func(_ *types.EngagementProfile, recent []*types.EngagementEvent, now time.Time) int {
				return distinctDiaryDays(recent, now, 7, loc)
			},
			Rewards: types.AchievementRewards{Experience: 75},
		},
	}
}

// distinctDiaryDays counts calendar days among the last `days` days (today included)
// with at least one diary entry.
func distinctDiaryDays(recent []*types.EngagementEvent, now time.Time, days int, loc *time.Location) int {
	today := dayNumber(now.In(loc))
	seen := map[int]struct{}{}
	for _, ev := range recent {
		if ev == nil || ev.EventType != types.EventDiaryEntry {
			continue
		}
		d := dayNumber(ev.OccurredAt.In(loc))
		if d <= today && today-d < days {
			seen[d] = struct{}{}
		}
	}
	return len(seen)
}
