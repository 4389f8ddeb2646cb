package handlers

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
	"github.com/introvirght/engagement-backend/internal/jobs/runtime"
	"github.com/introvirght/engagement-backend/internal/modules/recall"
	"github.com/introvirght/engagement-backend/internal/services"
)

// DiaryEmbeddingUpsert computes and stores the embedding for a queued diary entry.
type DiaryEmbeddingUpsert struct {
	Recall services.RecallService
}

func (h *DiaryEmbeddingUpsert) Type() string { return services.JobTypeDiaryEmbeddingUpsert }

func (h *DiaryEmbeddingUpsert) Run(jc *runtime.Context) error {
	var in services.StoreDiaryVectorInput
	if err := jc.DecodePayload(&in); err != nil {
		return err
	}
	if in.EntryID == uuid.Nil || in.UserID == uuid.Nil {
		return runtime.Permanent(errors.New("payload missing entry_id or user_id"))
	}
	row, err := h.Recall.Store(jc.Ctx, in)
	if errors.Is(err, recall.ErrEntryDeleted) {
		jc.SetResult("skipped", "entry_deleted")
		return nil
	}
	if err != nil {
		return classify(err)
	}
	jc.SetResult("diary_vector_id", row.ID.String())
	jc.SetResult("word_count", row.WordCount)
	return nil
}

// DiaryEmbeddingDelete removes an entry's embedding from SQL and the ANN index.
type DiaryEmbeddingDelete struct {
	Recall services.RecallService
}

func (h *DiaryEmbeddingDelete) Type() string { return services.JobTypeDiaryEmbeddingDelete }

func (h *DiaryEmbeddingDelete) Run(jc *runtime.Context) error {
	var in services.DiaryEmbeddingDeletePayload
	if err := jc.DecodePayload(&in); err != nil {
		return err
	}
	if in.EntryID == uuid.Nil {
		return runtime.Permanent(errors.New("payload missing entry_id"))
	}
	if err := h.Recall.Delete(jc.Ctx, in.EntryID); err != nil {
		return classify(err)
	}
	jc.SetResult("deleted_entry_id", in.EntryID.String())
	return nil
}

// Register wires every diary embedding handler into reg.
func Register(reg *runtime.Registry, recallSvc services.RecallService) error {
	for _, h := range []runtime.Handler{
		&DiaryEmbeddingUpsert{Recall: recallSvc},
		&DiaryEmbeddingDelete{Recall: recallSvc},
	} {
		if err := reg.Register(h); err != nil {
			return fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}
	return nil
}

// classify marks caller mistakes permanent so they skip straight to dead letter.
func classify(err error) error {
	switch {
	case domainagg.IsCode(err, domainagg.CodeValidation),
		errors.Is(err, recall.ErrEntryNotFound):
		return runtime.Permanent(err)
	default:
		return err
	}
}
