package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	repoeng "github.com/introvirght/engagement-backend/internal/data/repos/engagement"
	types "github.com/introvirght/engagement-backend/internal/domain"
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
)

const engagementProfileTable = "engagement_profile"

type EngagementAggregateDeps struct {
	Base     BaseDeps
	Profiles repoeng.ProfileRepo
	Events   repoeng.EventRepo
}

type engagementAggregate struct {
	deps     BaseDeps
	profiles repoeng.ProfileRepo
	events   repoeng.EventRepo
}

func NewEngagementAggregate(deps EngagementAggregateDeps) domainagg.EngagementAggregate {
	base := deps.Base.withDefaults()
	return &engagementAggregate{
		deps:     base,
		profiles: deps.Profiles,
		events:   deps.Events,
	}
}

func (a *engagementAggregate) Contract() domainagg.Contract {
	return domainagg.EngagementAggregateContract
}

func (a *engagementAggregate) ApplyEvent(ctx context.Context, in domainagg.ApplyEngagementEventInput) (domainagg.ApplyEngagementEventResult, error) {
	const op = "engagement.apply_event"
	out := domainagg.ApplyEngagementEventResult{}
	if in.UserID == uuid.Nil {
		return out, MapError(op, ValidationError("user_id is required"))
	}
	if in.Mutate == nil {
		return out, MapError(op, ValidationError("mutation is required"))
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		profile, err := a.profiles.GetByUserIDForUpdate(dbc, in.UserID)
		if err != nil {
			return err
		}
		created := false
		if profile == nil {
			// A concurrent first event for the same user loses on the unique user_id index
			// and surfaces as a conflict.
			profile = types.NewEngagementProfile(in.UserID)
			if err := a.profiles.Create(dbc, profile); err != nil {
				return err
			}
			created = true
		}
		expectedVersion := profile.Version
		priorXP := profile.Experience

		recent, err := a.events.ListRecentByUser(dbc, in.UserID, in.RecentLimit)
		if err != nil {
			return err
		}
		event, err := in.Mutate(profile, recent)
		if err != nil {
			return err
		}
		if profile.Experience < priorXP {
			return InvariantError("experience must not decrease")
		}
		if profile.Level < 1 {
			return InvariantError("level must be >= 1")
		}

		nextVersion := expectedVersion + 1
		ok, err := a.deps.CASGuard.UpdateByVersion(dbc, engagementProfileTable, profile.ID, expectedVersion, repoeng.ProfileColumns(profile, nextVersion))
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "engagement profile modified concurrently"); err != nil {
			return err
		}
		profile.Version = nextVersion

		if event != nil {
			event.UserID = in.UserID
			if event.OccurredAt.IsZero() {
				event.OccurredAt = in.OccurredAt
			}
			if err := a.events.Append(dbc, event); err != nil {
				return err
			}
		}

		out = domainagg.ApplyEngagementEventResult{
			Profile:        profile,
			Event:          event,
			ProfileCreated: created,
		}
		return nil
	})
	if err != nil {
		return domainagg.ApplyEngagementEventResult{}, err
	}
	return out, nil
}
