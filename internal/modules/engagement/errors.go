package engagement

import (
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
)

var (
	ErrProfileNotFound        = domainagg.NewError(domainagg.CodeNotFound, "engagement", "engagement profile not found", nil)
	ErrConcurrentModification = domainagg.NewError(domainagg.CodeConflict, "engagement", "engagement profile modified concurrently", nil)
	ErrInvalidEventType       = domainagg.NewError(domainagg.CodeValidation, "engagement", "invalid event type", nil)
	ErrInvalidMetadata        = domainagg.NewError(domainagg.CodeValidation, "engagement", "invalid event metadata", nil)
)
