package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/introvirght/engagement-backend/internal/data/repos"
	types "github.com/introvirght/engagement-backend/internal/domain"
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
	"github.com/introvirght/engagement-backend/internal/modules/recall"
	"github.com/introvirght/engagement-backend/internal/observability"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
	"github.com/introvirght/engagement-backend/internal/platform/vectorstore"
)

const (
	JobTypeDiaryEmbeddingUpsert = "diary_embedding_upsert"
	JobTypeDiaryEmbeddingDelete = "diary_embedding_delete"

	VectorProviderSQL    = "sql"
	VectorProviderQdrant = "qdrant"

	// qdrant is asked for this many candidates per requested result before exact re-scoring.
	annOversample = 4
)

type StoreDiaryVectorInput struct {
	EntryID  uuid.UUID           `json:"entry_id"`
	UserID   uuid.UUID           `json:"user_id"`
	Content  string              `json:"content"`
	Metadata types.DiaryMetadata `json:"metadata"`
}

type SearchSimilarInput struct {
	UserID    uuid.UUID
	Query     string
	K         int
	Threshold *float64
}

// DiaryEmbeddingDeletePayload is the job payload for index removal.
type DiaryEmbeddingDeletePayload struct {
	EntryID uuid.UUID `json:"entry_id"`
	UserID  uuid.UUID `json:"user_id"`
}

type RecallService interface {
	Store(ctx context.Context, in StoreDiaryVectorInput) (*types.DiaryVector, error)
	Update(ctx context.Context, in StoreDiaryVectorInput) (*types.DiaryVector, error)
	Delete(ctx context.Context, entryID uuid.UUID) error
	SearchSimilar(ctx context.Context, in SearchSimilarInput) ([]recall.Match, error)
	EnqueueStore(ctx context.Context, in StoreDiaryVectorInput) (*types.JobRun, error)
	EnqueueDelete(ctx context.Context, userID, entryID uuid.UUID) (*types.JobRun, error)
}

type RecallServiceDeps struct {
	Log      *logger.Logger
	Embedder recall.Embedder
	Vectors  repos.DiaryVectorRepo
	Jobs     repos.JobRunRepo
	// Index is the optional ANN index; nil means SQL-only search.
	Index          vectorstore.VectorStore
	Provider       string
	JobMaxAttempts int
	Metrics        *observability.Metrics
}

type recallService struct {
	log         *logger.Logger
	embedder    recall.Embedder
	vectors     repos.DiaryVectorRepo
	jobs        repos.JobRunRepo
	index       vectorstore.VectorStore
	provider    string
	maxAttempts int
	metrics     *observability.Metrics
}

func NewRecallService(deps RecallServiceDeps) RecallService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	emb := deps.Embedder
	if emb == nil {
		emb = recall.NewHashingEmbedder(recall.DefaultDimension)
	}
	maxAttempts := deps.JobMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	provider := strings.ToLower(strings.TrimSpace(deps.Provider))
	if provider == "" || deps.Index == nil {
		provider = VectorProviderSQL
	}
	return &recallService{
		log:         log.With("service", "RecallService"),
		embedder:    emb,
		vectors:     deps.Vectors,
		jobs:        deps.Jobs,
		index:       deps.Index,
		provider:    provider,
		maxAttempts: maxAttempts,
		metrics:     deps.Metrics,
	}
}

func (s *recallService) Store(ctx context.Context, in StoreDiaryVectorInput) (*types.DiaryVector, error) {
	const op = "recall.store"
	if in.EntryID == uuid.Nil || in.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "entry_id and user_id are required", nil)
	}
	if err := recall.ValidateMetadata(in.Metadata); err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
	}
	dbc := dbctx.Background(ctx)
	existing, err := s.vectors.GetByEntryID(dbc, in.EntryID)
	if err != nil {
		return nil, fmt.Errorf("load diary vector: %w", err)
	}
	if deleted, err := s.vectors.IsDeleted(dbc, in.EntryID); err != nil {
		return nil, fmt.Errorf("check diary tombstone: %w", err)
	} else if deleted {
		if existing != nil {
			s.purge(ctx, existing.UserID, in.EntryID)
		}
		return nil, recall.ErrEntryDeleted
	}
	if existing != nil && existing.UserID != in.UserID {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "entry belongs to another user", nil)
	}

	vec, err := s.embed(ctx, in.Content)
	if err != nil {
		return nil, err
	}
	created := in.Metadata.CreatedAt.UTC()
	if in.Metadata.CreatedAt.IsZero() && existing != nil {
		created = existing.EntryCreatedAt
	}
	topics := in.Metadata.Topics
	if topics == nil {
		topics = []string{}
	}
	row := &types.DiaryVector{
		UserID:         in.UserID,
		EntryID:        in.EntryID,
		Content:        in.Content,
		Embedding:      pgvector.NewVector(vec),
		Mood:           strings.TrimSpace(in.Metadata.Mood),
		Topics:         datatypes.NewJSONType(topics),
		Sentiment:      in.Metadata.Sentiment,
		WordCount:      in.Metadata.WordCount,
		EntryCreatedAt: created,
	}
	if row.WordCount == 0 {
		row.WordCount = len(strings.Fields(in.Content))
	}
	if existing != nil {
		row.ID = existing.ID
	}

	start := time.Now()
	stored, err := s.vectors.Upsert(dbc, row)
	s.metrics.ObserveVectorStoreOperation(VectorProviderSQL, "upsert", statusOf(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("upsert diary vector: %w", err)
	}

	if s.index != nil {
		err := s.index.Upsert(ctx, in.UserID.String(), []vectorstore.Vector{{
			ID:     in.EntryID.String(),
			Values: vec,
			Metadata: map[string]any{
				"entry_id": in.EntryID.String(),
				"mood":     row.Mood,
			},
		}})
		if err != nil {
			// SQL stays authoritative; search re-reads rows from SQL anyway.
			s.log.Warn("ann index upsert failed", "entry_id", in.EntryID, "user_id", in.UserID, "error", err)
		}
	}

	// A delete that committed while this write was in flight wins.
	deleted, err := s.vectors.IsDeleted(dbc, in.EntryID)
	if err != nil {
		return nil, fmt.Errorf("check diary tombstone: %w", err)
	}
	if deleted {
		s.purge(ctx, in.UserID, in.EntryID)
		return nil, recall.ErrEntryDeleted
	}
	return stored, nil
}

// purge removes a tombstoned entry's leftovers from SQL and the ANN index.
func (s *recallService) purge(ctx context.Context, userID, entryID uuid.UUID) {
	if _, err := s.vectors.DeleteByEntryID(dbctx.Background(ctx), entryID); err != nil {
		s.log.Warn("purge deleted entry failed", "entry_id", entryID, "error", err)
	}
	if s.index != nil {
		if err := s.index.DeleteIDs(ctx, userID.String(), []string{entryID.String()}); err != nil {
			s.log.Warn("ann index purge failed", "entry_id", entryID, "error", err)
		}
	}
}

func (s *recallService) Update(ctx context.Context, in StoreDiaryVectorInput) (*types.DiaryVector, error) {
	existing, err := s.vectors.GetByEntryID(dbctx.Background(ctx), in.EntryID)
	if err != nil {
		return nil, fmt.Errorf("load diary vector: %w", err)
	}
	if existing == nil {
		return nil, recall.ErrEntryNotFound
	}
	if in.UserID == uuid.Nil {
		in.UserID = existing.UserID
	}
	return s.Store(ctx, in)
}

func (s *recallService) Delete(ctx context.Context, entryID uuid.UUID) error {
	if entryID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, "recall.delete", "entry_id is required", nil)
	}
	dbc := dbctx.Background(ctx)
	existing, err := s.vectors.GetByEntryID(dbc, entryID)
	if err != nil {
		return fmt.Errorf("load diary vector: %w", err)
	}
	owner := uuid.Nil
	if existing != nil {
		owner = existing.UserID
	}
	// Tombstone first: any write that lands after this point undoes itself.
	if err := s.vectors.MarkDeleted(dbc, owner, entryID); err != nil {
		return fmt.Errorf("record diary tombstone: %w", err)
	}
	s.cancelPendingUpserts(ctx, entryID)
	if existing == nil {
		return nil
	}
	start := time.Now()
	_, err = s.vectors.DeleteByEntryID(dbc, entryID)
	s.metrics.ObserveVectorStoreOperation(VectorProviderSQL, "delete", statusOf(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("delete diary vector: %w", err)
	}
	if s.index != nil {
		if err := s.index.DeleteIDs(ctx, existing.UserID.String(), []string{entryID.String()}); err != nil {
			s.log.Warn("ann index delete failed", "entry_id", entryID, "error", err)
		}
	}
	return nil
}

// SearchSimilar never fails because of the store: an unavailable store yields no matches.
func (s *recallService) SearchSimilar(ctx context.Context, in SearchSimilarInput) ([]recall.Match, error) {
	if in.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "recall.search", "user_id is required", nil)
	}
	if in.Threshold != nil && (*in.Threshold < 0 || *in.Threshold > 1) {
		return nil, domainagg.NewError(domainagg.CodeValidation, "recall.search", "threshold must be within [0,1]", nil)
	}
	k := recall.ClampK(in.K)
	ctx, span := observability.StartSpan(ctx, "recall.search_similar",
		attribute.String("recall.provider", s.provider),
		attribute.Int("recall.k", k),
	)
	defer span.End()
	start := time.Now()

	q, err := s.embed(ctx, in.Query)
	if err != nil {
		s.metrics.ObserveRecallSearch("embedding_failed", 0, time.Since(start))
		return nil, err
	}
	candidates, err := s.candidates(ctx, in.UserID, q, k)
	if err != nil {
		s.log.Warn("vector store unavailable; returning no matches", "user_id", in.UserID, "error", err)
		s.metrics.ObserveRecallSearch("unavailable", 0, time.Since(start))
		span.SetAttributes(attribute.Bool("recall.degraded", true))
		return []recall.Match{}, nil
	}
	matches := recall.Rank(q, candidates, k, in.Threshold)
	s.metrics.ObserveRecallSearch("success", len(matches), time.Since(start))
	span.SetAttributes(attribute.Int("recall.results", len(matches)))
	return matches, nil
}

func (s *recallService) candidates(ctx context.Context, userID uuid.UUID, q []float32, k int) ([]*types.DiaryVector, error) {
	dbc := dbctx.Background(ctx)
	if s.provider != VectorProviderQdrant || s.index == nil {
		start := time.Now()
		rows, err := s.vectors.ListByUser(dbc, userID)
		s.metrics.ObserveVectorStoreOperation(VectorProviderSQL, "list", statusOf(err), time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", recall.ErrVectorStoreUnavailable, err)
		}
		return rows, nil
	}

	hits, err := s.index.QueryMatches(ctx, userID.String(), q, k*annOversample)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recall.ErrVectorStoreUnavailable, err)
	}
	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		id, err := uuid.Parse(strings.TrimSpace(h.ID))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows, err := s.vectors.ListByUserAndEntryIDs(dbc, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recall.ErrVectorStoreUnavailable, err)
	}
	return rows, nil
}

func (s *recallService) EnqueueStore(ctx context.Context, in StoreDiaryVectorInput) (*types.JobRun, error) {
	if in.EntryID == uuid.Nil || in.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "recall.enqueue_store", "entry_id and user_id are required", nil)
	}
	if err := recall.ValidateMetadata(in.Metadata); err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "recall.enqueue_store", err.Error(), nil)
	}
	return s.enqueue(ctx, in.UserID, in.EntryID, JobTypeDiaryEmbeddingUpsert, in)
}

func (s *recallService) EnqueueDelete(ctx context.Context, userID, entryID uuid.UUID) (*types.JobRun, error) {
	if entryID == uuid.Nil || userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "recall.enqueue_delete", "entry_id and user_id are required", nil)
	}
	s.cancelPendingUpserts(ctx, entryID)
	return s.enqueue(ctx, userID, entryID, JobTypeDiaryEmbeddingDelete, DiaryEmbeddingDeletePayload{EntryID: entryID, UserID: userID})
}

// cancelPendingUpserts drops queued embedding writes for an entry that is being deleted.
func (s *recallService) cancelPendingUpserts(ctx context.Context, entryID uuid.UUID) {
	if s.jobs == nil {
		return
	}
	n, err := s.jobs.CancelQueued(dbctx.Background(ctx), entryID, []string{JobTypeDiaryEmbeddingUpsert}, "entry deleted")
	if err != nil {
		s.log.Warn("cancel queued embedding jobs failed", "entry_id", entryID, "error", err)
		return
	}
	if n > 0 {
		s.log.Debug("canceled queued embedding jobs", "entry_id", entryID, "count", n)
	}
}

func (s *recallService) enqueue(ctx context.Context, userID, entryID uuid.UUID, jobType string, payload any) (*types.JobRun, error) {
	if s.jobs == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, "recall.enqueue", "job queue not configured", nil)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	job := &types.JobRun{
		OwnerUserID: userID,
		JobType:     jobType,
		EntityID:    &entryID,
		MaxAttempts: s.maxAttempts,
		Payload:     datatypes.JSON(raw),
	}
	created, err := s.jobs.Create(dbctx.Background(ctx), []*types.JobRun{job})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	if len(created) == 0 {
		return nil, errors.New("enqueue returned no job")
	}
	return created[0], nil
}

func (s *recallService) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, recall.ErrEmbeddingGenerationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", recall.ErrEmbeddingGenerationFailed, err)
	}
	if len(vec) == 0 {
		return nil, recall.ErrEmbeddingGenerationFailed
	}
	return vec, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
