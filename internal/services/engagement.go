package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/introvirght/engagement-backend/internal/data/repos"
	types "github.com/introvirght/engagement-backend/internal/domain"
	domainagg "github.com/introvirght/engagement-backend/internal/domain/aggregates"
	"github.com/introvirght/engagement-backend/internal/modules/engagement"
	"github.com/introvirght/engagement-backend/internal/observability"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
	"github.com/introvirght/engagement-backend/internal/platform/throttle"
	"github.com/introvirght/engagement-backend/internal/realtime/bus"
)

const (
	defaultEventListLimit   = 20
	defaultMaxApplyAttempts = 5
)

type ProcessEventInput struct {
	UserID     uuid.UUID
	EventType  string
	Metadata   map[string]any
	OccurredAt time.Time
}

type ProcessEventResult struct {
	Rewards      types.Rewards            `json:"rewards"`
	Celebrations []types.Celebration      `json:"celebrations"`
	Profile      *types.EngagementProfile `json:"profile,omitempty"`
	Event        *types.EngagementEvent   `json:"event,omitempty"`
	Throttled    bool                     `json:"throttled"`
	RetryAfter   time.Duration            `json:"-"`
}

type EngagementService interface {
	ProcessEvent(ctx context.Context, in ProcessEventInput) (*ProcessEventResult, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.EngagementProfile, error)
	ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*types.EngagementEvent, error)
}

type EngagementServiceDeps struct {
	Log       *logger.Logger
	Engine    *engagement.Engine
	Aggregate domainagg.EngagementAggregate
	Profiles  repos.EngagementProfileRepo
	Events    repos.EngagementEventRepo
	Throttle  throttle.Store
	// ThrottleRules is keyed by event type.
	ThrottleRules map[string]throttle.Rule
	Bus           bus.Bus
	Metrics       *observability.Metrics
	MaxAttempts   int
	// NewBackOff overrides the retry schedule, mainly for tests.
	NewBackOff func() backoff.BackOff
}

type engagementService struct {
	log      *logger.Logger
	engine   *engagement.Engine
	agg      domainagg.EngagementAggregate
	profiles repos.EngagementProfileRepo
	events   repos.EngagementEventRepo
	throttle throttle.Store
	rules    map[string]throttle.Rule
	bus      bus.Bus
	metrics  *observability.Metrics
	attempts int
	newBO    func() backoff.BackOff
	locks    *userLocks
	reads    singleflight.Group
}

func NewEngagementService(deps EngagementServiceDeps) EngagementService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	eng := deps.Engine
	if eng == nil {
		eng = engagement.NewEngine(log, engagement.DefaultRules())
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxApplyAttempts
	}
	newBO := deps.NewBackOff
	if newBO == nil {
		newBO = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		}
	}
	b := deps.Bus
	if b == nil {
		b = bus.Nop{}
	}
	return &engagementService{
		log:      log.With("service", "EngagementService"),
		engine:   eng,
		agg:      deps.Aggregate,
		profiles: deps.Profiles,
		events:   deps.Events,
		throttle: deps.Throttle,
		rules:    deps.ThrottleRules,
		bus:      b,
		metrics:  deps.Metrics,
		attempts: attempts,
		newBO:    newBO,
		locks:    newUserLocks(),
	}
}

func (s *engagementService) ProcessEvent(ctx context.Context, in ProcessEventInput) (*ProcessEventResult, error) {
	eventType := strings.TrimSpace(in.EventType)
	if in.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "engagement.process_event", "user_id is required", nil)
	}
	if err := engagement.ValidateEventType(eventType); err != nil {
		s.metrics.IncEngagementEvent(eventType, "rejected")
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "engagement.process_event",
		attribute.String("engagement.event_type", eventType),
	)
	defer span.End()

	if decision, limited := s.checkThrottle(ctx, in.UserID, eventType); limited {
		s.metrics.IncThrottled(eventType)
		s.metrics.IncEngagementEvent(eventType, "throttled")
		span.SetAttributes(attribute.Bool("engagement.throttled", true))
		return &ProcessEventResult{
			Rewards:      emptyRewards(),
			Celebrations: []types.Celebration{},
			Throttled:    true,
			RetryAfter:   decision.RetryAfter,
		}, nil
	}

	unlock := s.locks.Lock(in.UserID)
	defer unlock()

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	var outcome engagement.Outcome
	attempt := 0
	res, err := backoff.Retry(ctx, func() (domainagg.ApplyEngagementEventResult, error) {
		attempt++
		r, err := s.agg.ApplyEvent(ctx, domainagg.ApplyEngagementEventInput{
			UserID:      in.UserID,
			EventType:   eventType,
			OccurredAt:  occurredAt,
			RecentLimit: s.engine.Rules().RecentEventWindow,
			Mutate: func(p *types.EngagementProfile, recent []*types.EngagementEvent) (*types.EngagementEvent, error) {
				o, err := s.engine.Apply(p, recent, engagement.Input{
					EventType:  eventType,
					Metadata:   in.Metadata,
					OccurredAt: occurredAt,
				})
				if err != nil {
					return nil, err
				}
				outcome = o
				return o.Event, nil
			},
		})
		if err == nil {
			return r, nil
		}
		if domainagg.IsRetryable(err) {
			s.log.Debug("retrying engagement event", "user_id", in.UserID, "attempt", attempt, "error", err)
			return r, err
		}
		return r, backoff.Permanent(err)
	},
		backoff.WithBackOff(s.newBO()),
		backoff.WithMaxTries(uint(s.attempts)),
	)
	if err != nil {
		span.SetStatus(codes.Error, "apply failed")
		span.RecordError(err)
		s.metrics.IncEngagementEvent(eventType, "failed")
		if domainagg.IsCode(err, domainagg.CodeConflict) && !errors.Is(err, engagement.ErrConcurrentModification) {
			return nil, fmt.Errorf("%w: %v", engagement.ErrConcurrentModification, err)
		}
		return nil, err
	}

	s.metrics.IncEngagementEvent(eventType, "processed")
	s.metrics.AddExperience(eventType, outcome.Rewards.Experience)
	for _, c := range outcome.Rewards.Celebrations {
		s.metrics.IncCelebration(c.Type)
	}
	span.SetAttributes(
		attribute.Int("engagement.experience", outcome.Rewards.Experience),
		attribute.Int("engagement.attempts", attempt),
	)

	s.publish(ctx, res, outcome)

	return &ProcessEventResult{
		Rewards:      outcome.Rewards,
		Celebrations: outcome.Rewards.Celebrations,
		Profile:      res.Profile,
		Event:        res.Event,
	}, nil
}

// checkThrottle fails open: a broken store never blocks engagement.
func (s *engagementService) checkThrottle(ctx context.Context, userID uuid.UUID, eventType string) (throttle.Decision, bool) {
	if s.throttle == nil {
		return throttle.Decision{Allowed: true}, false
	}
	rule, ok := s.rules[eventType]
	if !ok || !rule.Enabled() {
		return throttle.Decision{Allowed: true}, false
	}
	key := "engagement:" + userID.String() + ":" + eventType
	d, err := s.throttle.Allow(ctx, key, rule.Limit, rule.Window)
	if err != nil {
		s.log.Warn("throttle store failed; allowing event", "user_id", userID, "event_type", eventType, "error", err)
		return throttle.Decision{Allowed: true}, false
	}
	return d, !d.Allowed
}

func (s *engagementService) publish(ctx context.Context, res domainagg.ApplyEngagementEventResult, o engagement.Outcome) {
	if len(o.Rewards.Celebrations) == 0 || res.Profile == nil || res.Event == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := s.bus.Publish(pubCtx, bus.Message{
		UserID:       res.Profile.UserID,
		EventID:      res.Event.ID,
		EventType:    res.Event.EventType,
		Level:        res.Profile.Level,
		Experience:   res.Profile.Experience,
		Celebrations: o.Rewards.Celebrations,
	})
	if err != nil {
		s.log.Warn("celebration publish failed", "user_id", res.Profile.UserID, "error", err)
	}
}

func (s *engagementService) GetProfile(ctx context.Context, userID uuid.UUID) (*types.EngagementProfile, error) {
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "engagement.get_profile", "user_id is required", nil)
	}
	v, err, _ := s.reads.Do(userID.String(), func() (any, error) {
		return s.profiles.GetByUserID(dbctx.Background(ctx), userID)
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(*types.EngagementProfile)
	if p == nil {
		return nil, engagement.ErrProfileNotFound
	}
	return p, nil
}

func (s *engagementService) ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*types.EngagementEvent, error) {
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "engagement.list_events", "user_id is required", nil)
	}
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > engagement.MaxRecentEventWindow {
		limit = engagement.MaxRecentEventWindow
	}
	return s.events.ListRecentByUser(dbctx.Background(ctx), userID, limit)
}

func emptyRewards() types.Rewards {
	return types.Rewards{Badges: []types.Badge{}, Unlocks: []string{}, Celebrations: []types.Celebration{}}
}
