package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/introvirght/engagement-backend/internal/platform/logger"
	"github.com/introvirght/engagement-backend/internal/platform/vectorstore"
)

func TestVectorStoreUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/diary/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/diary/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	meta := map[string]any{"mood": "calm"}
	err := s.Upsert(context.Background(), "user-1", []vectorstore.Vector{
		{ID: "entry-1", Values: []float32{1, 0, 0}, Metadata: meta},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	points, ok := captured["points"].([]any)
	if !ok || len(points) != 1 {
		t.Fatalf("points: got=%v", captured["points"])
	}
	first := points[0].(map[string]any)
	if first["id"] != s.pointID("iv:user-1", "entry-1") {
		t.Fatalf("point id mismatch: got=%v", first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload[payloadNamespaceKey] != "iv:user-1" {
		t.Fatalf("payload namespace: want=%q got=%v", "iv:user-1", payload[payloadNamespaceKey])
	}
	if payload["mood"] != "calm" {
		t.Fatalf("payload mood: got=%v", payload["mood"])
	}
	if _, exists := meta[payloadNamespaceKey]; exists {
		t.Fatalf("input metadata mutated")
	}
}

func TestVectorStoreUpsertRejectsDimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	err := s.Upsert(context.Background(), "u", []vectorstore.Vector{{ID: "e", Values: []float32{1, 2}}})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorValidation {
		t.Fatalf("want validation error, got=%v", err)
	}
	if errors.Is(err, vectorstore.ErrUnavailable) {
		t.Fatalf("validation errors must not read as unavailable")
	}
}

func TestVectorStoreQueryMatchesScopesNamespace(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/diary/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": "p-1", "score": 0.4, "payload": map[string]any{payloadVectorIDKey: "entry-b"}},
			{"id": "p-2", "score": 0.9, "payload": map[string]any{payloadVectorIDKey: "entry-a"}},
			{"id": "p-3", "score": 0.99, "payload": map[string]any{}},
		}), nil
	})

	matches, err := s.QueryMatches(context.Background(), "user-1", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches: want=2 got=%d", len(matches))
	}
	if matches[0].ID != "entry-a" || matches[1].ID != "entry-b" {
		t.Fatalf("ordering: got=%v", matches)
	}
	filter := captured["filter"].(map[string]any)
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != payloadNamespaceKey {
		t.Fatalf("filter key: got=%v", cond["key"])
	}
	if cond["match"].(map[string]any)["value"] != "iv:user-1" {
		t.Fatalf("filter namespace: got=%v", cond["match"])
	}
}

func TestVectorStoreDeleteIDsDedupes(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/diary/points/delete" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})
	if err := s.DeleteIDs(context.Background(), "user-1", []string{"e-1", "e-1", " ", "e-2"}); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
	points := captured["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("points: want=2 got=%d", len(points))
	}
}

func TestVectorStoreDeleteIDsEmptyIsNoop(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	if err := s.DeleteIDs(context.Background(), "u", []string{" "}); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
}

func TestVectorStoreHTTPFailureIsUnavailable(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("overloaded")),
		}, nil
	})
	_, err := s.QueryMatches(context.Background(), "u", []float32{1, 0, 0}, 3)
	if !errors.Is(err, vectorstore.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got=%v", err)
	}
}

func TestBootstrapCreatesMissingCollection(t *testing.T) {
	var created map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		switch {
		case r.URL.Path == "/readyz":
			return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Body: io.NopCloser(strings.NewReader(""))}, nil
		case r.Method == http.MethodGet && r.URL.Path == "/collections/diary":
			return &http.Response{StatusCode: http.StatusNotFound, Header: make(http.Header), Body: io.NopCloser(strings.NewReader(`{"status":{"error":"not found"}}`))}, nil
		case r.Method == http.MethodPut && r.URL.Path == "/collections/diary":
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Fatalf("decode create: %v", err)
			}
			return okResponse(t, true), nil
		}
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		return nil, nil
	})
	s.cfg.CreateCollection = true

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	vectors := created["vectors"].(map[string]any)
	if vectors["distance"] != "Cosine" {
		t.Fatalf("distance: want=Cosine got=%v", vectors["distance"])
	}
	if vectors["size"] != float64(3) {
		t.Fatalf("size: want=3 got=%v", vectors["size"])
	}
}

func TestBootstrapRejectsSizeMismatch(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/readyz" {
			return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		return okResponse(t, map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 1536, "distance": "Cosine"}}},
		}), nil
	})
	err := s.Bootstrap(context.Background())
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorValidation {
		t.Fatalf("want validation error, got=%v", err)
	}
}

func TestClassifyHTTPCallError(t *testing.T) {
	if err := classifyHTTPCallError("query", "timeout", context.DeadlineExceeded); !isCode(err, OperationErrorTimeout) {
		t.Fatalf("deadline: got=%v", err)
	}
	if err := classifyHTTPCallError("query", "transport", fmt.Errorf("boom")); !isCode(err, OperationErrorTransportFailed) {
		t.Fatalf("transport: got=%v", err)
	}
}

func isCode(err error, code OperationErrorCode) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.Code == code
}

func newTestVectorStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *VectorStore {
	t.Helper()
	s, err := NewVectorStore(logger.Nop(), Config{
		URL:             "http://qdrant.local",
		Collection:      "diary",
		NamespacePrefix: "iv",
		VectorDim:       3,
	}, WithHTTPClient(&http.Client{Transport: roundTripFunc(roundTrip)}))
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	return s
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
