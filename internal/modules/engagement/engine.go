package engagement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type Input struct {
	EventType  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Outcome is everything one activity did to a profile.
type Outcome struct {
	Rewards          types.Rewards
	Event            *types.EngagementEvent
	StreakUpdates    []StreakUpdate
	LevelBefore      int
	LevelAfter       int
	EvaluationFailed bool
}

// Engine applies activities to profiles in memory. It holds no state besides its rules and
// is safe for concurrent use on distinct profiles.
type Engine struct {
	log       *logger.Logger
	rules     Rules
	streaks   *StreakTracker
	leveling  *Leveling
	evaluator *Evaluator
	now       func() time.Time
}

type Option func(*Engine)

func WithEvaluator(ev *Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(log *logger.Logger, rules Rules, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		log:      log.With("component", "EngagementEngine"),
		rules:    rules,
		streaks:  NewStreakTracker(rules),
		leveling: NewLeveling(rules),
		now:      func() time.Time { return time.Now().UTC() },
	}
	e.evaluator = NewEvaluator(DefaultBadges(), DefaultAchievements(rules.Location()), rules.RecentEventWindow)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rules() Rules        { return e.rules }
func (e *Engine) Leveling() *Leveling { return e.leveling }

// ValidateEventType accepts caller-facing activity types only.
func ValidateEventType(eventType string) error {
	if types.IsActivityEventType(strings.TrimSpace(eventType)) {
		return nil
	}
	if types.IsSystemEventType(strings.TrimSpace(eventType)) {
		return fmt.Errorf("%w: %s is emitted by the engine", ErrInvalidEventType, eventType)
	}
	return fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
}

// Apply mutates p for one activity and returns the event row to append.
// recent is the user's newest-first history, excluding this activity.
func (e *Engine) Apply(p *types.EngagementProfile, recent []*types.EngagementEvent, in Input) (Outcome, error) {
	eventType := strings.TrimSpace(in.EventType)
	if err := ValidateEventType(eventType); err != nil {
		return Outcome{}, err
	}
	if err := checkMetadata(in.Metadata); err != nil {
		return Outcome{}, err
	}
	if p == nil {
		return Outcome{}, ErrProfileNotFound
	}
	now := in.OccurredAt
	if now.IsZero() {
		now = e.now()
	}
	now = now.UTC()
	meta := copyMetadata(in.Metadata)

	startLevel := max(p.Level, 1)
	rewards := types.Rewards{
		Badges:       []types.Badge{},
		Unlocks:      []string{},
		Celebrations: []types.Celebration{},
	}

	xp := e.rules.BaseXP(eventType, meta)

	updates := e.streaks.RecordActivity(p, eventType, now)
	streakImpact := false
	for _, u := range updates {
		if u.Changed {
			streakImpact = true
		}
		if u.MilestoneReached {
			rewards.Celebrations = append(rewards.Celebrations, streakCelebration(u))
		}
	}

	p.Experience += xp
	e.rules.ApplyCounters(p, eventType, meta)
	p.Level = e.leveling.LevelFor(p.Experience)

	current := &types.EngagementEvent{
		ID:         uuid.New(),
		UserID:     p.UserID,
		EventType:  eventType,
		OccurredAt: now,
		Metadata:   datatypes.NewJSONType(meta),
	}
	window := make([]*types.EngagementEvent, 0, len(recent)+1)
	window = append(window, current)
	window = append(window, recent...)

	failed := false
	completed, err := e.evaluator.UpdateAchievementProgress(p, window, now)
	if err != nil {
		failed = true
		e.log.Warn("no new badges this cycle", "stage", "achievement", "user_id", p.UserID, "error", err)
	}
	for _, a := range completed {
		bonus, badges, unlocks := e.evaluator.GrantAchievementRewards(p, a, now)
		xp += bonus
		rewards.Badges = append(rewards.Badges, badges...)
		rewards.Unlocks = unionStrings(rewards.Unlocks, unlocks...)
		rewards.Celebrations = append(rewards.Celebrations, types.Celebration{
			Type:          types.CelebrationAchievement,
			Title:         "Achievement complete!",
			Message:       fmt.Sprintf("You completed %s and earned %d XP.", e.evaluator.achievementName(a.ID), bonus),
			Value:         bonus,
			AchievementID: a.ID,
		})
		for _, b := range badges {
			rewards.Celebrations = append(rewards.Celebrations, badgeCelebration(b))
		}
	}

	if !failed {
		p.Level = e.leveling.LevelFor(p.Experience)
		badges, err := e.evaluator.CheckAndAwardBadges(p, window, now)
		if err != nil {
			failed = true
			e.log.Warn("no new badges this cycle", "stage", "badge", "user_id", p.UserID, "error", err)
		}
		for _, b := range badges {
			rewards.Badges = append(rewards.Badges, b)
			rewards.Celebrations = append(rewards.Celebrations, badgeCelebration(b))
		}
	}

	finalLevel := e.leveling.LevelFor(p.Experience)
	p.Level = finalLevel
	if finalLevel > startLevel {
		gained := e.leveling.NewUnlocks(startLevel, finalLevel)
		rewards.Unlocks = unionStrings(rewards.Unlocks, gained...)
		rewards.Celebrations = append(rewards.Celebrations, types.Celebration{
			Type:    types.CelebrationLevelUp,
			Title:   "Level up!",
			Message: fmt.Sprintf("You reached level %d.", finalLevel),
			Value:   finalLevel,
		})
	}
	features := unionStrings(p.UnlockedFeatures.Data(), e.leveling.UnlocksFor(finalLevel)...)
	features = unionStrings(features, rewards.Unlocks...)
	p.UnlockedFeatures = datatypes.NewJSONType(features)

	rewards.Experience = xp

	quality, _ := metaFloat(meta, MetaQualityScore)
	meta[MetaExperienceGained] = xp
	meta[MetaStreakImpact] = streakImpact
	meta[MetaQualityScore] = quality
	current.Metadata = datatypes.NewJSONType(meta)
	current.Rewards = datatypes.NewJSONType(rewards)
	current.Processed = true

	return Outcome{
		Rewards:          rewards,
		Event:            current,
		StreakUpdates:    updates,
		LevelBefore:      startLevel,
		LevelAfter:       finalLevel,
		EvaluationFailed: failed,
	}, nil
}

func streakCelebration(u StreakUpdate) types.Celebration {
	return types.Celebration{
		Type:       types.CelebrationStreakMilestone,
		Title:      fmt.Sprintf("%d day streak!", u.Milestone),
		Message:    fmt.Sprintf("Your %s streak reached %d days.", u.StreakType, u.Milestone),
		Value:      u.Milestone,
		StreakType: u.StreakType,
	}
}

func badgeCelebration(b types.Badge) types.Celebration {
	return types.Celebration{
		Type:    types.CelebrationBadgeEarned,
		Title:   "New badge: " + b.Name,
		Message: b.Description,
		BadgeID: b.ID,
	}
}
