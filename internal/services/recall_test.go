package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/introvirght/engagement-backend/internal/data/repos"
	"github.com/introvirght/engagement-backend/internal/data/repos/testutil"
	types "github.com/introvirght/engagement-backend/internal/domain"
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
	"github.com/introvirght/engagement-backend/internal/modules/recall"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/vectorstore"
)

type recallFixture struct {
	svc     RecallService
	vectors repos.DiaryVectorRepo
	jobs    repos.JobRunRepo
}

func newRecallFixture(t *testing.T, mutate func(*RecallServiceDeps)) recallFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	deps := RecallServiceDeps{
		Log:     log,
		Vectors: repos.NewDiaryVectorRepo(db, log),
		Jobs:    repos.NewJobRunRepo(db, log),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return recallFixture{svc: NewRecallService(deps), vectors: deps.Vectors, jobs: deps.Jobs}
}

func storeEntry(t *testing.T, svc RecallService, userID uuid.UUID, text string, created time.Time) *types.DiaryVector {
	t.Helper()
	row, err := svc.Store(context.Background(), StoreDiaryVectorInput{
		EntryID:  uuid.New(),
		UserID:   userID,
		Content:  text,
		Metadata: types.DiaryMetadata{Mood: "calm", CreatedAt: created},
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	return row
}

func TestSearchSimilarFindsOwnEntriesOnly(t *testing.T) {
	f := newRecallFixture(t, nil)
	alice, bob := uuid.New(), uuid.New()
	now := time.Now().UTC()
	mine := storeEntry(t, f.svc, alice, "nervous about the job interview", now)
	storeEntry(t, f.svc, alice, "made pancakes on sunday", now.Add(-time.Hour))
	storeEntry(t, f.svc, bob, "nervous about the job interview", now)

	got, err := f.svc.SearchSimilar(context.Background(), SearchSimilarInput{UserID: alice, Query: "nervous about the job interview"})
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results: want=2 got=%d", len(got))
	}
	if got[0].Entry.EntryID != mine.EntryID || got[0].Score < 0.999 {
		t.Fatalf("top match: want self with score 1 got=%s %v", got[0].Entry.EntryID, got[0].Score)
	}
	for _, m := range got {
		if m.Entry.UserID != alice {
			t.Fatalf("leaked entry of user %s", m.Entry.UserID)
		}
		if m.Score < 0 || m.Score > 1 {
			t.Fatalf("score out of bounds: %v", m.Score)
		}
	}
}

func TestSearchSimilarThresholdAndValidation(t *testing.T) {
	f := newRecallFixture(t, nil)
	userID := uuid.New()
	storeEntry(t, f.svc, userID, "long walk in the rain", time.Now().UTC())
	storeEntry(t, f.svc, userID, "quarterly tax paperwork", time.Now().UTC())

	th := 0.99
	got, err := f.svc.SearchSimilar(context.Background(), SearchSimilarInput{UserID: userID, Query: "long walk in the rain", Threshold: &th})
	if err != nil || len(got) != 1 {
		t.Fatalf("threshold: want 1 match got=%d err=%v", len(got), err)
	}
	bad := 1.5
	if _, err := f.svc.SearchSimilar(context.Background(), SearchSimilarInput{UserID: userID, Query: "x", Threshold: &bad}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("bad threshold: want validation got=%v", err)
	}
}

type failingVectors struct {
	repos.DiaryVectorRepo
}

func (failingVectors) ListByUser(dbctx.Context, uuid.UUID) ([]*types.DiaryVector, error) {
	return nil, errors.New("connection refused")
}

func TestSearchSimilarStoreUnavailableReturnsEmpty(t *testing.T) {
	f := newRecallFixture(t, func(d *RecallServiceDeps) {
		d.Vectors = failingVectors{DiaryVectorRepo: d.Vectors}
	})
	got, err := f.svc.SearchSimilar(context.Background(), SearchSimilarInput{UserID: uuid.New(), Query: "anything"})
	if err != nil {
		t.Fatalf("want no error got=%v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil result got=%v", got)
	}
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}
func (brokenEmbedder) Dimension() int { return recall.DefaultDimension }

func TestStoreEmbeddingFailure(t *testing.T) {
	f := newRecallFixture(t, func(d *RecallServiceDeps) { d.Embedder = brokenEmbedder{} })
	_, err := f.svc.Store(context.Background(), StoreDiaryVectorInput{EntryID: uuid.New(), UserID: uuid.New(), Content: "x"})
	if !errors.Is(err, recall.ErrEmbeddingGenerationFailed) {
		t.Fatalf("want ErrEmbeddingGenerationFailed got=%v", err)
	}
}

func TestStoreReplacesAndRejectsForeignOwner(t *testing.T) {
	f := newRecallFixture(t, nil)
	userID := uuid.New()
	first := storeEntry(t, f.svc, userID, "first draft", time.Now().UTC())

	updated, err := f.svc.Update(context.Background(), StoreDiaryVectorInput{EntryID: first.EntryID, Content: "second draft, longer now"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != first.ID || updated.Content != "second draft, longer now" || updated.UserID != userID {
		t.Fatalf("update: got=%+v", updated)
	}
	if !updated.EntryCreatedAt.Equal(first.EntryCreatedAt) {
		t.Fatalf("entry created_at changed: %v -> %v", first.EntryCreatedAt, updated.EntryCreatedAt)
	}
	_, err = f.svc.Store(context.Background(), StoreDiaryVectorInput{EntryID: first.EntryID, UserID: uuid.New(), Content: "hijack"})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("foreign owner: want validation got=%v", err)
	}
	if _, err := f.svc.Update(context.Background(), StoreDiaryVectorInput{EntryID: uuid.New(), Content: "x"}); !errors.Is(err, recall.ErrEntryNotFound) {
		t.Fatalf("missing entry: want ErrEntryNotFound got=%v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newRecallFixture(t, nil)
	row := storeEntry(t, f.svc, uuid.New(), "to be removed", time.Now().UTC())
	for i := 0; i < 2; i++ {
		if err := f.svc.Delete(context.Background(), row.EntryID); err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
	}
	got, _ := f.vectors.GetByEntryID(dbctx.Background(context.Background()), row.EntryID)
	if got != nil {
		t.Fatalf("row still present: %+v", got)
	}
}

type fakeIndex struct {
	upserts int
	deletes int
	matches []vectorstore.VectorMatch
	err     error
}

func (f *fakeIndex) Upsert(context.Context, string, []vectorstore.Vector) error {
	f.upserts++
	return nil
}
func (f *fakeIndex) QueryMatches(context.Context, string, []float32, int) ([]vectorstore.VectorMatch, error) {
	return f.matches, f.err
}
func (f *fakeIndex) DeleteIDs(context.Context, string, []string) error {
	f.deletes++
	return nil
}

func TestQdrantProviderRescoresFromSQL(t *testing.T) {
	idx := &fakeIndex{}
	f := newRecallFixture(t, func(d *RecallServiceDeps) {
		d.Index = idx
		d.Provider = VectorProviderQdrant
	})
	alice, bob := uuid.New(), uuid.New()
	mine := storeEntry(t, f.svc, alice, "garden tomatoes finally ripe", time.Now().UTC())
	theirs := storeEntry(t, f.svc, bob, "garden tomatoes finally ripe", time.Now().UTC())
	if idx.upserts != 2 {
		t.Fatalf("index upserts: want=2 got=%d", idx.upserts)
	}

	// A misbehaving index returning a foreign id must not leak it.
	idx.matches = []vectorstore.VectorMatch{{ID: theirs.EntryID.String(), Score: 1}, {ID: mine.EntryID.String(), Score: 0.2}, {ID: "not-a-uuid"}}
	got, err := f.svc.SearchSimilar(context.Background(), SearchSimilarInput{UserID: alice, Query: "garden tomatoes finally ripe"})
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 1 || got[0].Entry.EntryID != mine.EntryID || got[0].Score < 0.999 {
		t.Fatalf("rescored: got=%+v", got)
	}

	idx.err = vectorstore.ErrUnavailable
	got, err = f.svc.SearchSimilar(context.Background(), SearchSimilarInput{UserID: alice, Query: "tomatoes"})
	if err != nil || len(got) != 0 {
		t.Fatalf("index down: want empty got=%v err=%v", got, err)
	}

	if err := f.svc.Delete(context.Background(), mine.EntryID); err != nil || idx.deletes != 1 {
		t.Fatalf("delete: err=%v deletes=%d", err, idx.deletes)
	}
}

func TestEnqueueStoreCreatesJob(t *testing.T) {
	f := newRecallFixture(t, nil)
	in := StoreDiaryVectorInput{EntryID: uuid.New(), UserID: uuid.New(), Content: "later"}
	job, err := f.svc.EnqueueStore(context.Background(), in)
	if err != nil {
		t.Fatalf("EnqueueStore: %v", err)
	}
	if job.JobType != JobTypeDiaryEmbeddingUpsert || job.Status != types.JobStatusQueued || job.MaxAttempts != 5 {
		t.Fatalf("job: got=%+v", job)
	}
	if job.EntityID == nil || *job.EntityID != in.EntryID {
		t.Fatalf("entity id: got=%v", job.EntityID)
	}
	del, err := f.svc.EnqueueDelete(context.Background(), in.UserID, in.EntryID)
	if err != nil || del.JobType != JobTypeDiaryEmbeddingDelete {
		t.Fatalf("EnqueueDelete: job=%+v err=%v", del, err)
	}
}

func TestStoreRefusedAfterDelete(t *testing.T) {
	idx := &fakeIndex{}
	f := newRecallFixture(t, func(d *RecallServiceDeps) { d.Index = idx })
	userID := uuid.New()
	row := storeEntry(t, f.svc, userID, "written then removed", time.Now().UTC())
	pending, err := f.svc.EnqueueStore(context.Background(), StoreDiaryVectorInput{EntryID: row.EntryID, UserID: userID, Content: "edited"})
	if err != nil {
		t.Fatalf("EnqueueStore: %v", err)
	}

	if err := f.svc.Delete(context.Background(), row.EntryID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	job, _ := f.jobs.GetByID(dbctx.Background(context.Background()), pending.ID)
	if job == nil || job.Status != types.JobStatusCanceled {
		t.Fatalf("queued upsert: want canceled got=%v", job)
	}

	_, err = f.svc.Store(context.Background(), StoreDiaryVectorInput{EntryID: row.EntryID, UserID: userID, Content: "late retry"})
	if !errors.Is(err, recall.ErrEntryDeleted) {
		t.Fatalf("store after delete: want ErrEntryDeleted got=%v", err)
	}
	if got, _ := f.vectors.GetByEntryID(dbctx.Background(context.Background()), row.EntryID); got != nil {
		t.Fatalf("row resurrected: %+v", got)
	}
}

// racingVectors tombstones the entry right after the upsert lands, as a concurrent Delete would.
type racingVectors struct {
	repos.DiaryVectorRepo
}

func (r racingVectors) Upsert(dbc dbctx.Context, row *types.DiaryVector) (*types.DiaryVector, error) {
	stored, err := r.DiaryVectorRepo.Upsert(dbc, row)
	if err != nil {
		return nil, err
	}
	if err := r.DiaryVectorRepo.MarkDeleted(dbc, row.UserID, row.EntryID); err != nil {
		return nil, err
	}
	return stored, nil
}

func TestStoreUndoesWriteRacingDelete(t *testing.T) {
	idx := &fakeIndex{}
	f := newRecallFixture(t, func(d *RecallServiceDeps) {
		d.Vectors = racingVectors{DiaryVectorRepo: d.Vectors}
		d.Index = idx
	})
	entryID := uuid.New()
	_, err := f.svc.Store(context.Background(), StoreDiaryVectorInput{EntryID: entryID, UserID: uuid.New(), Content: "mid flight"})
	if !errors.Is(err, recall.ErrEntryDeleted) {
		t.Fatalf("want ErrEntryDeleted got=%v", err)
	}
	if got, _ := f.vectors.GetByEntryID(dbctx.Background(context.Background()), entryID); got != nil {
		t.Fatalf("row left behind: %+v", got)
	}
	if idx.upserts != 1 || idx.deletes != 1 {
		t.Fatalf("index: want upserts=1 deletes=1 got=%d/%d", idx.upserts, idx.deletes)
	}
}

func TestStoreValidatesSentiment(t *testing.T) {
	f := newRecallFixture(t, nil)
	for _, s := range []float64{-1.01, 1.5, math.NaN(), math.Inf(1)} {
		_, err := f.svc.Store(context.Background(), StoreDiaryVectorInput{
			EntryID:  uuid.New(),
			UserID:   uuid.New(),
			Content:  "mixed feelings",
			Metadata: types.DiaryMetadata{Sentiment: s},
		})
		if !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("sentiment %v: want validation got=%v", s, err)
		}
	}
	_, err := f.svc.Store(context.Background(), StoreDiaryVectorInput{
		EntryID:  uuid.New(),
		UserID:   uuid.New(),
		Content:  "mixed feelings",
		Metadata: types.DiaryMetadata{WordCount: -3},
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("negative word_count: want validation got=%v", err)
	}
	_, err = f.svc.EnqueueStore(context.Background(), StoreDiaryVectorInput{
		EntryID:  uuid.New(),
		UserID:   uuid.New(),
		Metadata: types.DiaryMetadata{Sentiment: 2},
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("enqueue with bad sentiment: want validation got=%v", err)
	}
	for _, s := range []float64{-1, 0, 0.4, 1} {
		row, err := f.svc.Store(context.Background(), StoreDiaryVectorInput{
			EntryID:  uuid.New(),
			UserID:   uuid.New(),
			Content:  "mixed feelings",
			Metadata: types.DiaryMetadata{Sentiment: s},
		})
		if err != nil || row.Sentiment != s {
			t.Fatalf("sentiment %v: got=%v err=%v", s, row, err)
		}
	}
}
