package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, jobTypes []string, now time.Time) (*types.JobRun, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	MarkSucceeded(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error)
	Requeue(dbc dbctx.Context, id uuid.UUID, errMsg string, runAfter time.Time) (bool, error)
	DeadLetter(dbc dbctx.Context, id uuid.UUID, errMsg string) (bool, error)
	RequeueStale(dbc dbctx.Context, heartbeatBefore time.Time) (int64, error)
	PurgeSucceeded(dbc dbctx.Context, before time.Time) (int64, error)
	CancelQueued(dbc dbctx.Context, entityID uuid.UUID, jobTypes []string, reason string) (int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	now := time.Now().UTC()
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if j.Status == "" {
			j.Status = types.JobStatusQueued
		}
		if j.RunAfter.IsZero() {
			j.RunAfter = now
		}
		if len(j.Payload) == 0 {
			j.Payload = datatypes.JSON([]byte("{}"))
		}
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.JobRun
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// ClaimNextRunnable moves the oldest due queued job to running and bumps its attempt count.
// Concurrent workers skip rows another worker has locked. Jobs sharing an entity_id run one at
// a time in creation order: a job waits while an older one for the same entity is queued or
// running, including one sitting out a retry delay.
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, jobTypes []string, now time.Time) (*types.JobRun, error) {
	now = now.UTC()
	var claimed *types.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_after <= ?", types.JobStatusQueued, now)
		if len(jobTypes) > 0 {
			q = q.Where("job_type IN ?", jobTypes)
		}
		q = q.Where(entityOrderClause, []string{types.JobStatusQueued, types.JobStatusRunning})
		qErr := q.Order("run_after ASC").Order("created_at ASC").First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.JobRun{}).
			Where("id = ? AND status = ?", job.ID, types.JobStatusQueued).
			Updates(map[string]interface{}{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

const entityOrderClause = `(job_run.entity_id IS NULL OR NOT EXISTS (
	SELECT 1 FROM job_run AS prior
	WHERE prior.entity_id = job_run.entity_id
	  AND prior.id <> job_run.id
	  AND prior.status IN ?
	  AND (prior.created_at < job_run.created_at
	       OR (prior.created_at = job_run.created_at AND prior.id < job_run.id))))`

// CancelQueued cancels queued jobs of jobTypes for entityID. Running jobs are left alone.
func (r *jobRunRepo) CancelQueued(dbc dbctx.Context, entityID uuid.UUID, jobTypes []string, reason string) (int64, error) {
	if entityID == uuid.Nil || len(jobTypes) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("entity_id = ? AND job_type IN ? AND status = ?", entityID, jobTypes, types.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     types.JobStatusCanceled,
			"error":      reason,
			"locked_at":  nil,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) MarkSucceeded(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error) {
	updates := map[string]interface{}{
		"status": types.JobStatusSucceeded,
		"error":  "",
	}
	if len(result) > 0 {
		updates["result"] = result
	}
	return r.updateRunning(dbc, id, updates)
}

// Requeue records a failed attempt and schedules the next one.
func (r *jobRunRepo) Requeue(dbc dbctx.Context, id uuid.UUID, errMsg string, runAfter time.Time) (bool, error) {
	now := time.Now().UTC()
	return r.updateRunning(dbc, id, map[string]interface{}{
		"status":        types.JobStatusQueued,
		"error":         errMsg,
		"last_error_at": now,
		"run_after":     runAfter.UTC(),
		"locked_at":     nil,
	})
}

func (r *jobRunRepo) DeadLetter(dbc dbctx.Context, id uuid.UUID, errMsg string) (bool, error) {
	now := time.Now().UTC()
	return r.updateRunning(dbc, id, map[string]interface{}{
		"status":        types.JobStatusDeadLetter,
		"error":         errMsg,
		"last_error_at": now,
		"locked_at":     nil,
	})
}

// updateRunning only touches jobs still owned by a worker.
func (r *jobRunRepo) updateRunning(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequeueStale returns running jobs whose worker stopped heartbeating to the queue.
func (r *jobRunRepo) RequeueStale(dbc dbctx.Context, heartbeatBefore time.Time) (int64, error) {
	now := time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?", types.JobStatusRunning, heartbeatBefore.UTC()).
		Updates(map[string]interface{}{
			"status":     types.JobStatusQueued,
			"run_after":  now,
			"locked_at":  nil,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *jobRunRepo) PurgeSucceeded(dbc dbctx.Context, before time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Where("status = ? AND updated_at < ?", types.JobStatusSucceeded, before.UTC()).
		Delete(&types.JobRun{})
	return res.RowsAffected, res.Error
}
