package diary

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/introvirght/engagement-backend/internal/data/repos/testutil"
	types "github.com/introvirght/engagement-backend/internal/domain"
)

func vec(first float32) pgvector.Vector {
	v := make([]float32, 384)
	v[0] = first
	return pgvector.NewVector(v)
}

func TestDiaryVectorRepoUpsertReplaces(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Ctx(tx)
	repo := NewDiaryVectorRepo(db, testutil.Logger(t))

	userID := uuid.New()
	entryID := uuid.New()
	first, err := repo.Upsert(dbc, &types.DiaryVector{
		UserID:    userID,
		EntryID:   entryID,
		Content:   "first draft",
		Embedding: vec(1),
		Mood:      "calm",
		Topics:    datatypes.NewJSONType([]string{"work"}),
		WordCount: 2,
	})
	if err != nil {
		t.Fatalf("Upsert first: %v", err)
	}

	second, err := repo.Upsert(dbc, &types.DiaryVector{
		UserID:    userID,
		EntryID:   entryID,
		Content:   "rewritten entry text",
		Embedding: vec(0.5),
		Mood:      "happy",
		Topics:    datatypes.NewJSONType([]string{"family"}),
		Sentiment: 0.4,
		WordCount: 3,
	})
	if err != nil {
		t.Fatalf("Upsert second: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("row id changed: want=%s got=%s", first.ID, second.ID)
	}
	if second.Content != "rewritten entry text" || second.Mood != "happy" {
		t.Fatalf("not replaced: content=%q mood=%q", second.Content, second.Mood)
	}
	if got := second.Embedding.Slice()[0]; got != 0.5 {
		t.Fatalf("embedding: want=0.5 got=%v", got)
	}
	if topics := second.Topics.Data(); len(topics) != 1 || topics[0] != "family" {
		t.Fatalf("topics: got=%v", topics)
	}

	rows, err := repo.ListByUser(dbc, userID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser: want=1 got=%d err=%v", len(rows), err)
	}
}

func TestDiaryVectorRepoDeleteIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Ctx(tx)
	repo := NewDiaryVectorRepo(db, testutil.Logger(t))

	entryID := uuid.New()
	if _, err := repo.Upsert(dbc, &types.DiaryVector{UserID: uuid.New(), EntryID: entryID, Content: "x", Embedding: vec(1)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	existed, err := repo.DeleteByEntryID(dbc, entryID)
	if err != nil || !existed {
		t.Fatalf("Delete first: want existed=true got=%v err=%v", existed, err)
	}
	existed, err = repo.DeleteByEntryID(dbc, entryID)
	if err != nil || existed {
		t.Fatalf("Delete second: want existed=false got=%v err=%v", existed, err)
	}
	if _, err := repo.DeleteByEntryID(dbc, uuid.New()); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
}

func TestDiaryVectorRepoEntryIDsScopedToUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Ctx(tx)
	repo := NewDiaryVectorRepo(db, testutil.Logger(t))

	alice, bob := uuid.New(), uuid.New()
	aliceEntry, bobEntry := uuid.New(), uuid.New()
	now := time.Now().UTC()
	for _, row := range []*types.DiaryVector{
		{UserID: alice, EntryID: aliceEntry, Content: "a", Embedding: vec(1), EntryCreatedAt: now},
		{UserID: bob, EntryID: bobEntry, Content: "b", Embedding: vec(1), EntryCreatedAt: now},
	} {
		if _, err := repo.Upsert(dbc, row); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	rows, err := repo.ListByUserAndEntryIDs(dbc, alice, []uuid.UUID{aliceEntry, bobEntry})
	if err != nil {
		t.Fatalf("ListByUserAndEntryIDs: %v", err)
	}
	if len(rows) != 1 || rows[0].EntryID != aliceEntry {
		t.Fatalf("scoping: want only alice's entry got=%d rows", len(rows))
	}
}

func TestDiaryVectorRepoTombstones(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Ctx(tx)
	repo := NewDiaryVectorRepo(db, testutil.Logger(t))

	entryID, userID := uuid.New(), uuid.New()
	if deleted, err := repo.IsDeleted(dbc, entryID); err != nil || deleted {
		t.Fatalf("fresh entry: want deleted=false got=%v err=%v", deleted, err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.MarkDeleted(dbc, userID, entryID); err != nil {
			t.Fatalf("MarkDeleted #%d: %v", i+1, err)
		}
	}
	if deleted, err := repo.IsDeleted(dbc, entryID); err != nil || !deleted {
		t.Fatalf("tombstoned entry: want deleted=true got=%v err=%v", deleted, err)
	}
	if deleted, _ := repo.IsDeleted(dbc, uuid.New()); deleted {
		t.Fatalf("tombstone leaked to another entry")
	}
}
