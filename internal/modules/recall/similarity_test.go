package recall

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

func TestCosineBounds(t *testing.T) {
	a := []float32{1, 2, 3}
	if got := Cosine(a, a); got != 1 {
		t.Fatalf("self: want=1 got=%v", got)
	}
	for _, v := range [][]float32{
		{0.1, 0.2, 0.3},
		{0.333, -0.271, 0.9, 1e-3},
		{3, 3, 3, 3, 3, 3, 3},
		{0.7071, 0.7071},
	} {
		if got := Cosine(v, v); got != 1 {
			t.Fatalf("self %v: want=1 got=%v", v, got)
		}
		scaled := make([]float32, len(v))
		for i := range v {
			scaled[i] = v[i] * 2.5
		}
		if got := Cosine(v, scaled); got != 1 {
			t.Fatalf("scaled %v: want=1 got=%v", v, got)
		}
	}
	if got := Cosine(a, []float32{-1, -2, -3}); got != 0 {
		t.Fatalf("opposite: want=0 got=%v", got)
	}
	if got := Cosine(a, []float32{0, 0, 0}); got != 0 {
		t.Fatalf("zero: want=0 got=%v", got)
	}
	if got := Cosine(a, []float32{1, 2}); got != 0 {
		t.Fatalf("mismatch: want=0 got=%v", got)
	}
}

func row(vec []float32, created time.Time) *types.DiaryVector {
	return &types.DiaryVector{
		ID:             uuid.New(),
		EntryID:        uuid.New(),
		Embedding:      pgvector.NewVector(vec),
		EntryCreatedAt: created,
	}
}

func TestRankOrdersByScoreThenRecency(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	older := row([]float32{1, 0}, base)
	newer := row([]float32{2, 0}, base.Add(time.Hour))
	weaker := row([]float32{1, 1}, base.Add(2*time.Hour))
	orthogonal := row([]float32{0, 1}, base.Add(3*time.Hour))

	got := Rank([]float32{1, 0}, []*types.DiaryVector{older, weaker, orthogonal, newer}, 3, nil)
	if len(got) != 3 {
		t.Fatalf("k: want=3 got=%d", len(got))
	}
	if got[0].Entry != newer || got[1].Entry != older || got[2].Entry != weaker {
		t.Fatalf("order: got=%v %v %v", got[0].Entry.EntryCreatedAt, got[1].Entry.EntryCreatedAt, got[2].Entry.EntryCreatedAt)
	}
}

func TestRankThreshold(t *testing.T) {
	base := time.Now().UTC()
	threshold := 0.9
	got := Rank([]float32{1, 0}, []*types.DiaryVector{
		row([]float32{1, 0}, base),
		row([]float32{1, 1}, base),
	}, 10, &threshold)
	if len(got) != 1 || got[0].Score < threshold {
		t.Fatalf("threshold: got=%+v", got)
	}
}

func TestClampK(t *testing.T) {
	cases := map[int]int{0: DefaultK, -3: DefaultK, 7: 7, 500: MaxK}
	for in, want := range cases {
		if got := ClampK(in); got != want {
			t.Fatalf("ClampK(%d): want=%d got=%d", in, want, got)
		}
	}
}
