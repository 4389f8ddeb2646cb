package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

// ActivityReporter is the hook collaborators call after their own write has committed.
// Nothing here returns an error: engagement and recall are best effort for the caller.
type ActivityReporter interface {
	ReportActivity(ctx context.Context, userID uuid.UUID, eventType string, metadata map[string]any) *ProcessEventResult
	DiaryCreated(ctx context.Context, in StoreDiaryVectorInput, metadata map[string]any) *ProcessEventResult
	DiaryUpdated(ctx context.Context, in StoreDiaryVectorInput)
	DiaryDeleted(ctx context.Context, userID, entryID uuid.UUID)
}

type activityReporter struct {
	log        *logger.Logger
	engagement EngagementService
	recall     RecallService
	timeout    time.Duration
}

func NewActivityReporter(baseLog *logger.Logger, engagement EngagementService, recall RecallService) ActivityReporter {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &activityReporter{
		log:        baseLog.With("service", "ActivityReporter"),
		engagement: engagement,
		recall:     recall,
		timeout:    5 * time.Second,
	}
}

func (r *activityReporter) ReportActivity(ctx context.Context, userID uuid.UUID, eventType string, metadata map[string]any) *ProcessEventResult {
	if r.engagement == nil {
		return nil
	}
	ctx, cancel := r.detach(ctx)
	defer cancel()
	res, err := r.engagement.ProcessEvent(ctx, ProcessEventInput{UserID: userID, EventType: eventType, Metadata: metadata})
	if err != nil {
		r.log.Warn("engagement update skipped", "user_id", userID, "event_type", eventType, "error", err)
		return nil
	}
	return res
}

func (r *activityReporter) DiaryCreated(ctx context.Context, in StoreDiaryVectorInput, metadata map[string]any) *ProcessEventResult {
	r.enqueueStore(ctx, in)
	meta := map[string]any{}
	for k, v := range metadata {
		meta[k] = v
	}
	if in.Metadata.Mood != "" {
		meta["mood"] = in.Metadata.Mood
	}
	if _, ok := meta["word_count"]; !ok && in.Metadata.WordCount > 0 {
		meta["word_count"] = in.Metadata.WordCount
	}
	if _, ok := meta["sentiment"]; !ok {
		meta["sentiment"] = in.Metadata.Sentiment
	}
	meta["entry_id"] = in.EntryID.String()
	return r.ReportActivity(ctx, in.UserID, types.EventDiaryEntry, meta)
}

func (r *activityReporter) DiaryUpdated(ctx context.Context, in StoreDiaryVectorInput) {
	r.enqueueStore(ctx, in)
}

func (r *activityReporter) DiaryDeleted(ctx context.Context, userID, entryID uuid.UUID) {
	if r.recall == nil {
		return
	}
	ctx, cancel := r.detach(ctx)
	defer cancel()
	if _, err := r.recall.EnqueueDelete(ctx, userID, entryID); err != nil {
		r.log.Warn("diary embedding delete not queued", "user_id", userID, "entry_id", entryID, "error", err)
	}
}

func (r *activityReporter) enqueueStore(ctx context.Context, in StoreDiaryVectorInput) {
	if r.recall == nil {
		return
	}
	ctx, cancel := r.detach(ctx)
	defer cancel()
	if _, err := r.recall.EnqueueStore(ctx, in); err != nil {
		r.log.Warn("diary embedding not queued", "user_id", in.UserID, "entry_id", in.EntryID, "error", err)
	}
}

// detach keeps request values but not the caller's cancellation, which may already have fired.
func (r *activityReporter) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
}
