package engagement

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

// MaxRecentEvents caps every event-log read.
const MaxRecentEvents = 100

// EventRepo is append-only: there is no update or delete path.
type EventRepo interface {
	Append(dbc dbctx.Context, event *types.EngagementEvent) error
	ListRecentByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.EngagementEvent, error)
	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{
		db:  db,
		log: baseLog.With("repo", "EngagementEventRepo"),
	}
}

func (r *eventRepo) Append(dbc dbctx.Context, event *types.EngagementEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(event).Error
}

// ListRecentByUser returns the newest events first, at most MaxRecentEvents.
func (r *eventRepo) ListRecentByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.EngagementEvent, error) {
	out := []*types.EngagementEvent{}
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > MaxRecentEvents {
		limit = MaxRecentEvents
	}
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.EngagementEvent{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
