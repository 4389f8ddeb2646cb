package engagement

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type StreakState struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
	NextMilestone    int        `json:"next_milestone"`
	GracePeriodsUsed int        `json:"grace_periods_used"`
	StreakType       string     `json:"streak_type"`
}

func NewStreakState(streakType string) StreakState {
	return StreakState{NextMilestone: 7, StreakType: streakType}
}

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Rarity      string    `json:"rarity"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

type AchievementRewards struct {
	Experience int      `json:"experience"`
	Badges     []string `json:"badges,omitempty"`
	Unlocks    []string `json:"unlocks,omitempty"`
}

type AchievementProgress struct {
	ID          string             `json:"id"`
	Progress    int                `json:"progress"`
	MaxProgress int                `json:"max_progress"`
	Completed   bool               `json:"completed"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Rewards     AchievementRewards `json:"rewards"`
}

type ContentCreated struct {
	Posts        int `json:"posts"`
	DiaryEntries int `json:"diary_entries"`
	Comments     int `json:"comments"`
}

type SocialImpact struct {
	LikesGiven             int `json:"likes_given"`
	CommentsGiven          int `json:"comments_given"`
	SharesGiven            int `json:"shares_given"`
	CommunityContributions int `json:"community_contributions"`
}

type EmotionalGrowth struct {
	MoodEntries             int      `json:"mood_entries"`
	MoodsSeen               []string `json:"moods_seen"`
	ReflectionWords         int      `json:"reflection_words"`
	PositiveEntries         int      `json:"positive_entries"`
	EmotionalContextEntries int      `json:"emotional_context_entries"`
}

// EngagementProfile is the per-user gamification state. One row per user, created on first event.
type EngagementProfile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex" json:"user_id"`
	Level      int       `gorm:"column:level;not null;default:1" json:"level"`
	Experience int       `gorm:"column:experience;not null;default:0" json:"experience"`
	Version    int       `gorm:"column:version;not null;default:1" json:"version"`

	PostingStreak   datatypes.JSONType[StreakState] `gorm:"column:posting_streak" json:"posting_streak"`
	DiaryStreak     datatypes.JSONType[StreakState] `gorm:"column:diary_streak" json:"diary_streak"`
	CommunityStreak datatypes.JSONType[StreakState] `gorm:"column:community_streak" json:"community_streak"`
	CombinedStreak  datatypes.JSONType[StreakState] `gorm:"column:combined_streak" json:"combined_streak"`

	Badges           datatypes.JSONType[[]Badge]                        `gorm:"column:badges" json:"badges"`
	Achievements     datatypes.JSONType[map[string]AchievementProgress] `gorm:"column:achievements" json:"achievements"`
	UnlockedFeatures datatypes.JSONType[[]string]                       `gorm:"column:unlocked_features" json:"unlocked_features"`

	TotalSessions          int     `gorm:"column:total_sessions;not null;default:0" json:"total_sessions"`
	AverageSessionDuration float64 `gorm:"column:average_session_duration;not null;default:0" json:"average_session_duration"`
	HighQualityPosts       int     `gorm:"column:high_quality_posts;not null;default:0" json:"high_quality_posts"`

	ContentCreated  datatypes.JSONType[ContentCreated]  `gorm:"column:content_created" json:"content_created"`
	SocialImpact    datatypes.JSONType[SocialImpact]    `gorm:"column:social_impact" json:"social_impact"`
	EmotionalGrowth datatypes.JSONType[EmotionalGrowth] `gorm:"column:emotional_growth" json:"emotional_growth"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime;index" json:"updated_at"`
}

func (EngagementProfile) TableName() string { return "engagement_profile" }

// NewEngagementProfile returns a fresh level-1 profile with empty streaks and counters.
func NewEngagementProfile(userID uuid.UUID) *EngagementProfile {
	return &EngagementProfile{
		ID:               uuid.New(),
		UserID:           userID,
		Level:            1,
		Version:          1,
		PostingStreak:    datatypes.NewJSONType(NewStreakState(StreakPosting)),
		DiaryStreak:      datatypes.NewJSONType(NewStreakState(StreakDiary)),
		CommunityStreak:  datatypes.NewJSONType(NewStreakState(StreakEngagement)),
		CombinedStreak:   datatypes.NewJSONType(NewStreakState(StreakCombined)),
		Badges:           datatypes.NewJSONType([]Badge{}),
		Achievements:     datatypes.NewJSONType(map[string]AchievementProgress{}),
		UnlockedFeatures: datatypes.NewJSONType([]string{}),
		ContentCreated:   datatypes.NewJSONType(ContentCreated{}),
		SocialImpact:     datatypes.NewJSONType(SocialImpact{}),
		EmotionalGrowth:  datatypes.NewJSONType(EmotionalGrowth{MoodsSeen: []string{}}),
	}
}

func (p *EngagementProfile) HasBadge(id string) bool {
	for _, b := range p.Badges.Data() {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (p *EngagementProfile) HasFeature(feature string) bool {
	for _, f := range p.UnlockedFeatures.Data() {
		if f == feature {
			return true
		}
	}
	return false
}

// MaxLongestStreak is the best longestStreak across all four streaks.
func (p *EngagementProfile) MaxLongestStreak() int {
	best := 0
	for _, s := range []StreakState{
		p.PostingStreak.Data(),
		p.DiaryStreak.Data(),
		p.CommunityStreak.Data(),
		p.CombinedStreak.Data(),
	} {
		if s.LongestStreak > best {
			best = s.LongestStreak
		}
	}
	return best
}
