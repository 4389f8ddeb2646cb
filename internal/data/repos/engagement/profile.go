package engagement

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type ProfileRepo interface {
	Create(dbc dbctx.Context, profile *types.EngagementProfile) error
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.EngagementProfile, error)
	GetByUserIDForUpdate(dbc dbctx.Context, userID uuid.UUID) (*types.EngagementProfile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{
		db:  db,
		log: baseLog.With("repo", "EngagementProfileRepo"),
	}
}

func (r *profileRepo) Create(dbc dbctx.Context, profile *types.EngagementProfile) error {
	if profile == nil {
		return nil
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(profile).Error
}

// GetByUserID returns nil, nil when the user has no profile yet.
func (r *profileRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.EngagementProfile, error) {
	return r.get(dbc.DB(r.db), userID)
}

// GetByUserIDForUpdate row-locks the profile for the rest of the transaction.
// Dialects without row locks (SQLite) ignore the clause; the version check still applies.
func (r *profileRepo) GetByUserIDForUpdate(dbc dbctx.Context, userID uuid.UUID) (*types.EngagementProfile, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *profileRepo) get(q *gorm.DB, userID uuid.UUID) (*types.EngagementProfile, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var out []*types.EngagementProfile
	if err := q.Where("user_id = ?", userID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// ProfileColumns is the column set written by a versioned profile update.
// The caller supplies the next version.
func ProfileColumns(p *types.EngagementProfile, nextVersion int) map[string]any {
	return map[string]any{
		"level":                    p.Level,
		"experience":               p.Experience,
		"version":                  nextVersion,
		"posting_streak":           p.PostingStreak,
		"diary_streak":             p.DiaryStreak,
		"community_streak":         p.CommunityStreak,
		"combined_streak":          p.CombinedStreak,
		"badges":                   p.Badges,
		"achievements":             p.Achievements,
		"unlocked_features":        p.UnlockedFeatures,
		"total_sessions":           p.TotalSessions,
		"average_session_duration": p.AverageSessionDuration,
		"high_quality_posts":       p.HighQualityPosts,
		"content_created":          p.ContentCreated,
		"social_impact":            p.SocialImpact,
		"emotional_growth":         p.EmotionalGrowth,
		"updated_at":               time.Now().UTC(),
	}
}
