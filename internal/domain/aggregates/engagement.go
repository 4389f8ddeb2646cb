package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/introvirght/engagement-backend/internal/domain/engagement"
)

var EngagementAggregateContract = Contract{
	Name:             "Engagement.ProfileAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the profile read-modify-write and the event-log append for one activity event " +
		"in a single transaction guarded by a row lock and a version compare-and-set.",
}

// EngagementAggregate owns engagement profile writes.
//
// Write failures return *aggregates.Error with codes:
// CodeValidation, CodeConflict, CodeRetryable, CodeInternal.
type EngagementAggregate interface {
	Aggregate

	// ApplyEvent loads or creates the user's profile, runs mutate against it together with the
	// user's recent events, then persists the profile and appends the event atomically.
	ApplyEvent(ctx context.Context, in ApplyEngagementEventInput) (ApplyEngagementEventResult, error)
}

// EngagementMutation mutates profile in place and returns the event row to append.
// recent holds the newest events for the user, newest first.
type EngagementMutation func(profile *engagement.EngagementProfile, recent []*engagement.EngagementEvent) (*engagement.EngagementEvent, error)

type ApplyEngagementEventInput struct {
	UserID      uuid.UUID
	EventType   string
	OccurredAt  time.Time
	RecentLimit int
	Mutate      EngagementMutation
}

type ApplyEngagementEventResult struct {
	Profile        *engagement.EngagementProfile
	Event          *engagement.EngagementEvent
	ProfileCreated bool
}
