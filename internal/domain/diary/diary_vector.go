package diary

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DiaryVector is the embedding row owned by exactly one diary entry.
type DiaryVector struct {
	ID             uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID                    `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	EntryID        uuid.UUID                    `gorm:"type:uuid;column:entry_id;not null;uniqueIndex" json:"entry_id"`
	Content        string                       `gorm:"column:content;type:text;not null" json:"content"`
	Embedding      pgvector.Vector              `gorm:"column:embedding;type:vector(384)" json:"-"`
	Mood           string                       `gorm:"column:mood" json:"mood,omitempty"`
	Topics         datatypes.JSONType[[]string] `gorm:"column:topics" json:"topics"`
	Sentiment      float64                      `gorm:"column:sentiment;not null;default:0" json:"sentiment"`
	WordCount      int                          `gorm:"column:word_count;not null;default:0" json:"word_count"`
	EntryCreatedAt time.Time                    `gorm:"column:entry_created_at;not null;index" json:"entry_created_at"`
	CreatedAt      time.Time                    `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                    `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (DiaryVector) TableName() string { return "diary_vector" }

// Metadata is the caller-supplied descriptive data stored next to a vector.
type Metadata struct {
	Mood      string    `json:"mood,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	Sentiment float64   `json:"sentiment"`
	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Tombstone records that an entry was deleted. Writes for a tombstoned entry are refused,
// so a late or retried upsert cannot bring its vector back.
type Tombstone struct {
	EntryID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"entry_id"`
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	RemovedAt time.Time `gorm:"column:removed_at;not null" json:"removed_at"`
}

func (Tombstone) TableName() string { return "diary_tombstone" }
