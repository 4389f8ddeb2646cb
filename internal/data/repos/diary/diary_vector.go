package diary

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type DiaryVectorRepo interface {
	Upsert(dbc dbctx.Context, row *types.DiaryVector) (*types.DiaryVector, error)
	GetByEntryID(dbc dbctx.Context, entryID uuid.UUID) (*types.DiaryVector, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.DiaryVector, error)
	ListByUserAndEntryIDs(dbc dbctx.Context, userID uuid.UUID, entryIDs []uuid.UUID) ([]*types.DiaryVector, error)
	DeleteByEntryID(dbc dbctx.Context, entryID uuid.UUID) (bool, error)
	MarkDeleted(dbc dbctx.Context, userID, entryID uuid.UUID) error
	IsDeleted(dbc dbctx.Context, entryID uuid.UUID) (bool, error)
}

type diaryVectorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiaryVectorRepo(db *gorm.DB, baseLog *logger.Logger) DiaryVectorRepo {
	return &diaryVectorRepo{
		db:  db,
		log: baseLog.With("repo", "DiaryVectorRepo"),
	}
}

// Upsert inserts or replaces the vector for row.EntryID. The stored row keeps its original id
// and owner; everything derived from the entry text is replaced.
func (r *diaryVectorRepo) Upsert(dbc dbctx.Context, row *types.DiaryVector) (*types.DiaryVector, error) {
	if row == nil || row.EntryID == uuid.Nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.EntryCreatedAt.IsZero() {
		row.EntryCreatedAt = now
	}
	row.UpdatedAt = now
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entry_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"content",
				"embedding",
				"mood",
				"topics",
				"sentiment",
				"word_count",
				"entry_created_at",
				"updated_at",
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.GetByEntryID(dbc, row.EntryID)
}

func (r *diaryVectorRepo) GetByEntryID(dbc dbctx.Context, entryID uuid.UUID) (*types.DiaryVector, error) {
	if entryID == uuid.Nil {
		return nil, nil
	}
	var out []*types.DiaryVector
	if err := dbc.DB(r.db).Where("entry_id = ?", entryID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *diaryVectorRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.DiaryVector, error) {
	out := []*types.DiaryVector{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("entry_created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUserAndEntryIDs filters by owner as well, so ids from an external index can never
// surface another user's rows.
func (r *diaryVectorRepo) ListByUserAndEntryIDs(dbc dbctx.Context, userID uuid.UUID, entryIDs []uuid.UUID) ([]*types.DiaryVector, error) {
	out := []*types.DiaryVector{}
	if userID == uuid.Nil || len(entryIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ? AND entry_id IN ?", userID, entryIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByEntryID is idempotent; the bool reports whether a row existed.
func (r *diaryVectorRepo) DeleteByEntryID(dbc dbctx.Context, entryID uuid.UUID) (bool, error) {
	if entryID == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).Where("entry_id = ?", entryID).Delete(&types.DiaryVector{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkDeleted writes the entry's tombstone. A second call keeps the first timestamp.
func (r *diaryVectorRepo) MarkDeleted(dbc dbctx.Context, userID, entryID uuid.UUID) error {
	if entryID == uuid.Nil {
		return nil
	}
	row := &types.DiaryTombstone{EntryID: entryID, UserID: userID, RemovedAt: time.Now().UTC()}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "entry_id"}}, DoNothing: true}).
		Create(row).Error
}

func (r *diaryVectorRepo) IsDeleted(dbc dbctx.Context, entryID uuid.UUID) (bool, error) {
	if entryID == uuid.Nil {
		return false, nil
	}
	var n int64
	if err := dbc.DB(r.db).Model(&types.DiaryTombstone{}).Where("entry_id = ?", entryID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
