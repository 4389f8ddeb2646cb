package engagement

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Celebration struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Value         int    `json:"value"`
	BadgeID       string `json:"badge_id,omitempty"`
	AchievementID string `json:"achievement_id,omitempty"`
	StreakType    string `json:"streak_type,omitempty"`
}

type Rewards struct {
	Experience   int           `json:"experience"`
	Badges       []Badge       `json:"badges"`
	Unlocks      []string      `json:"unlocks"`
	Celebrations []Celebration `json:"celebrations"`
}

// EngagementEvent is the append-only audit row written once per processed activity.
type EngagementEvent struct {
	ID         uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID                          `gorm:"type:uuid;column:user_id;not null;index:idx_engagement_event_user_time,priority:1" json:"user_id"`
	EventType  string                             `gorm:"column:event_type;not null;index" json:"event_type"`
	OccurredAt time.Time                          `gorm:"column:occurred_at;not null;index:idx_engagement_event_user_time,priority:2" json:"occurred_at"`
	Metadata   datatypes.JSONType[map[string]any] `gorm:"column:metadata" json:"metadata"`
	Rewards    datatypes.JSONType[Rewards]        `gorm:"column:rewards" json:"rewards"`
	Processed  bool                               `gorm:"column:processed;not null;default:false" json:"processed"`
	CreatedAt  time.Time                          `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (EngagementEvent) TableName() string { return "engagement_event" }

// MetaString reads a string metadata field, trimming nothing.
func (e *EngagementEvent) MetaString(key string) string {
	if e == nil {
		return ""
	}
	if v, ok := e.Metadata.Data()[key].(string); ok {
		return v
	}
	return ""
}
