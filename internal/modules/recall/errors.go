package recall

import (
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
)

var (
	ErrEmbeddingGenerationFailed = domainagg.NewError(domainagg.CodeInternal, "recall", "embedding generation failed", nil)
	ErrVectorStoreUnavailable    = domainagg.NewError(domainagg.CodeRetryable, "recall", "vector store unavailable", nil)
	ErrEntryNotFound             = domainagg.NewError(domainagg.CodeNotFound, "recall", "diary vector not found", nil)
	ErrEntryDeleted              = domainagg.NewError(domainagg.CodePreconditionFailed, "recall", "diary entry was deleted", nil)
)
