package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/introvirght/engagement-backend/internal/domain"
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
	"github.com/introvirght/engagement-backend/internal/jobs/runtime"
	"github.com/introvirght/engagement-backend/internal/modules/recall"
	"github.com/introvirght/engagement-backend/internal/services"
)

type fakeRecall struct {
	storeErr  error
	deleteErr error
	stored    []services.StoreDiaryVectorInput
	deleted   []uuid.UUID
}

func (f *fakeRecall) Store(_ context.Context, in services.StoreDiaryVectorInput) (*types.DiaryVector, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	f.stored = append(f.stored, in)
	return &types.DiaryVector{ID: uuid.New(), EntryID: in.EntryID, UserID: in.UserID, WordCount: 3}, nil
}

func (f *fakeRecall) Update(ctx context.Context, in services.StoreDiaryVectorInput) (*types.DiaryVector, error) {
	return f.Store(ctx, in)
}

func (f *fakeRecall) Delete(_ context.Context, entryID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, entryID)
	return nil
}

func (f *fakeRecall) SearchSimilar(context.Context, services.SearchSimilarInput) ([]recall.Match, error) {
	return []recall.Match{}, nil
}

func (f *fakeRecall) EnqueueStore(context.Context, services.StoreDiaryVectorInput) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeRecall) EnqueueDelete(context.Context, uuid.UUID, uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func jobContext(payload string) *runtime.Context {
	return runtime.NewContext(context.Background(), &types.JobRun{ID: uuid.New(), Payload: datatypes.JSON([]byte(payload))})
}

func TestDiaryEmbeddingUpsertStoresEntry(t *testing.T) {
	fr := &fakeRecall{}
	h := &DiaryEmbeddingUpsert{Recall: fr}
	entryID, userID := uuid.New(), uuid.New()
	jc := jobContext(`{"entry_id":"` + entryID.String() + `","user_id":"` + userID.String() + `","content":"quiet morning walk"}`)

	if err := h.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fr.stored) != 1 || fr.stored[0].EntryID != entryID || fr.stored[0].Content != "quiet morning walk" {
		t.Fatalf("stored: got=%+v", fr.stored)
	}
	if jc.Result()["word_count"] != 3 {
		t.Fatalf("result word_count: got=%v", jc.Result()["word_count"])
	}
}

func TestDiaryEmbeddingUpsertRejectsBadPayload(t *testing.T) {
	h := &DiaryEmbeddingUpsert{Recall: &fakeRecall{}}
	for _, payload := range []string{`not json`, `{"content":"x"}`} {
		err := h.Run(jobContext(payload))
		if !runtime.IsPermanent(err) {
			t.Fatalf("payload %q: want permanent got=%v", payload, err)
		}
	}
}

func TestDiaryEmbeddingUpsertErrorClassification(t *testing.T) {
	payload := `{"entry_id":"` + uuid.NewString() + `","user_id":"` + uuid.NewString() + `","content":"x"}`

	validation := domainagg.NewError(domainagg.CodeValidation, "recall", "entry belongs to another user", nil)
	h := &DiaryEmbeddingUpsert{Recall: &fakeRecall{storeErr: validation}}
	if err := h.Run(jobContext(payload)); !runtime.IsPermanent(err) {
		t.Fatalf("validation: want permanent got=%v", err)
	}

	h = &DiaryEmbeddingUpsert{Recall: &fakeRecall{storeErr: recall.ErrVectorStoreUnavailable}}
	err := h.Run(jobContext(payload))
	if err == nil || runtime.IsPermanent(err) {
		t.Fatalf("unavailable: want retryable got=%v", err)
	}
	if !errors.Is(err, recall.ErrVectorStoreUnavailable) {
		t.Fatalf("unavailable: cause lost got=%v", err)
	}
}

func TestDiaryEmbeddingDelete(t *testing.T) {
	fr := &fakeRecall{}
	h := &DiaryEmbeddingDelete{Recall: fr}
	entryID := uuid.New()
	if err := h.Run(jobContext(`{"entry_id":"` + entryID.String() + `"}`)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fr.deleted) != 1 || fr.deleted[0] != entryID {
		t.Fatalf("deleted: got=%v", fr.deleted)
	}
	if err := h.Run(jobContext(`{}`)); !runtime.IsPermanent(err) {
		t.Fatalf("missing entry_id: want permanent got=%v", err)
	}
}

func TestRegisterAddsBothTypes(t *testing.T) {
	reg := runtime.NewRegistry()
	if err := Register(reg, &fakeRecall{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got := reg.Types()
	if len(got) != 2 || got[0] != services.JobTypeDiaryEmbeddingDelete || got[1] != services.JobTypeDiaryEmbeddingUpsert {
		t.Fatalf("types: got=%v", got)
	}
	if err := Register(reg, &fakeRecall{}); err == nil {
		t.Fatalf("double register: want error")
	}
}
