package vectorstore

import (
	"context"
	"errors"
)

// ErrUnavailable marks failures of the backing index (network, timeouts, bad responses).
var ErrUnavailable = errors.New("vector store unavailable")

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type VectorMatch struct {
	ID    string
	Score float64
}

// VectorStore is a namespaced ANN index. Namespaces isolate tenants; a query never
// returns ids written under another namespace.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// QueryMatches returns IDs with their similarity scores (higher is better).
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]VectorMatch, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}
