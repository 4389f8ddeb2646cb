package engagement

import (
	types "github.com/introvirght/engagement-backend/internal/domain"
)

const (
	BadgeCategoryStreak      = "streak"
	BadgeCategoryAchievement = "achievement"
	BadgeCategorySocial      = "social"
	BadgeCategoryGrowth      = "growth"

	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

var (
	badgeCategories = map[string]bool{
		BadgeCategoryStreak: true, BadgeCategoryAchievement: true, BadgeCategorySocial: true, BadgeCategoryGrowth: true,
	}
	badgeRarities = map[string]bool{RarityCommon: true, RarityRare: true, RarityEpic: true, RarityLegendary: true}
)

// ValidBadgeCategory reports whether c is one of the catalog categories.
func ValidBadgeCategory(c string) bool { return badgeCategories[c] }

// ValidBadgeRarity reports whether r is one of the catalog rarities.
func ValidBadgeRarity(r string) bool { return badgeRarities[r] }

// BadgeDefinition is one entry in the badge catalog. Unlock must be monotonic in the
// profile counters so a badge never has to be revoked.
type BadgeDefinition struct {
	ID          string
	Name        string
	Description string
	Category    string
	Rarity      string
	Unlock      func(p *types.EngagementProfile, recent []*types.EngagementEvent) bool
}

func (d BadgeDefinition) award(at types.Badge) types.Badge {
	at.ID = d.ID
	at.Name = d.Name
	at.Description = d.Description
	at.Category = d.Category
	at.Rarity = d.Rarity
	return at
}

func never(*types.EngagementProfile, []*types.EngagementEvent) bool { return false }

func longestAtLeast(n int) func(*types.EngagementProfile, []*types.EngagementEvent) bool {
	return func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
		return p.MaxLongestStreak() >= n
	}
}

// DefaultBadges is the shipped badge catalog, in evaluation order.
func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{
			ID: "first_post", Name: "First Words", Description: "Shared your first post",
			Category: BadgeCategoryAchievement, Rarity: RarityCommon,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.ContentCreated.Data().Posts >= 1
			},
		},
		{
			ID: "first_entry", Name: "Dear Diary", Description: "Wrote your first diary entry",
			Category: BadgeCategoryAchievement, Rarity: RarityCommon,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.ContentCreated.Data().DiaryEntries >= 1
			},
		},
		{
			ID: "week_warrior", Name: "Week Warrior", Description: "Kept a streak for 7 days",
			Category: BadgeCategoryStreak, Rarity: RarityCommon, Unlock: longestAtLeast(7),
		},
		{
			ID: "monthly_master", Name: "Monthly Master", Description: "Kept a streak for 30 days",
			Category: BadgeCategoryStreak, Rarity: RarityRare, Unlock: longestAtLeast(30),
		},
		{
			ID: "century_club", Name: "Century Club", Description: "Kept a streak for 100 days",
			Category: BadgeCategoryStreak, Rarity: RarityEpic, Unlock: longestAtLeast(100),
		},
		{
			ID: "year_of_reflection", Name: "Year of Reflection", Description: "Kept a streak for a full year",
			Category: BadgeCategoryStreak, Rarity: RarityLegendary, Unlock: longestAtLeast(365),
		},
		{
			ID: "social_butterfly", Name: "Social Butterfly", Description: "Gave 50 likes",
			Category: BadgeCategorySocial, Rarity: RarityCommon,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.SocialImpact.Data().LikesGiven >= 50
			},
		},
		{
			ID: "conversation_starter", Name: "Conversation Starter", Description: "Left 25 comments",
			Category: BadgeCategorySocial, Rarity: RarityCommon,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.SocialImpact.Data().CommentsGiven >= 25
			},
		},
		{
			ID: "community_builder", Name: "Community Builder", Description: "Made 10 community contributions",
			Category: BadgeCategorySocial, Rarity: RarityCommon,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.SocialImpact.Data().CommunityContributions >= 10
			},
		},
		{
			ID: "emotional_explorer", Name: "Emotional Explorer", Description: "Recorded 5 different moods",
			Category: BadgeCategoryGrowth, Rarity: RarityCommon,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return len(p.EmotionalGrowth.Data().MoodsSeen) >= 5
			},
		},
		{
			ID: "prolific_writer", Name: "Prolific Writer", Description: "Wrote 50 diary entries",
			Category: BadgeCategoryAchievement, Rarity: RarityRare,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.ContentCreated.Data().DiaryEntries >= 50
			},
		},
		{
			ID: "quality_creator", Name: "Quality Creator", Description: "Published 10 high quality posts",
			Category: BadgeCategoryAchievement, Rarity: RarityRare,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.HighQualityPosts >= 10
			},
		},
		{
			ID: "rising_star", Name: "Rising Star", Description: "Reached level 5",
			Category: BadgeCategoryAchievement, Rarity: RarityRare,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.Level >= 5
			},
		},
		{
			ID: "level_ten", Name: "Seasoned Soul", Description: "Reached level 10",
			Category: BadgeCategoryAchievement, Rarity: RarityEpic,
			Unlock: func(p *types.EngagementProfile, _ []*types.EngagementEvent) bool {
				return p.Level >= 10
			},
		},
		// Granted by achievement completion only.
		{
			ID: "consistency_crown", Name: "Consistency Crown", Description: "Completed Streak Keeper",
			Category: BadgeCategoryStreak, Rarity: RarityEpic, Unlock: never,
		},
		{
			ID: "heart_of_community", Name: "Heart of the Community", Description: "Completed Community Pillar",
			Category: BadgeCategorySocial, Rarity: RarityEpic, Unlock: never,
		},
	}
}
