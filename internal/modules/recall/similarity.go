package recall

import (
	"math"
	"sort"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

const (
	DefaultK = 5
	MaxK     = 50

	// unitEpsilon absorbs float rounding so identical directions score exactly 1.
	unitEpsilon = 1e-9
)

type Match struct {
	Entry *types.DiaryVector `json:"entry"`
	Score float64            `json:"score"`
}

// Cosine returns dot/(|a||b|) clamped to [0,1]. Identical directions score exactly 1;
// zero or mismatched vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1-unitEpsilon:
		return 1
	default:
		return s
	}
}

// ClampK applies the default and ceiling for result counts.
func ClampK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return min(k, MaxK)
}

// Rank scores candidates against query, drops those under threshold and returns the top k
// ordered by score, then newest entry, then entry id.
func Rank(query []float32, candidates []*types.DiaryVector, k int, threshold *float64) []Match {
	k = ClampK(k)
	out := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		score := Cosine(query, c.Embedding.Slice())
		if threshold != nil && score < *threshold {
			continue
		}
		out = append(out, Match{Entry: c, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Entry.EntryCreatedAt.Equal(b.Entry.EntryCreatedAt) {
			return a.Entry.EntryCreatedAt.After(b.Entry.EntryCreatedAt)
		}
		return a.Entry.EntryID.String() < b.Entry.EntryID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
