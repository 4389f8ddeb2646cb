package engagement

import (
	"fmt"
	"runtime/debug"
	"time"

	"gorm.io/datatypes"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

// Evaluator runs the badge and achievement catalogs against a profile.
// A predicate that panics aborts the whole pass and leaves the profile untouched.
type Evaluator struct {
	badges       []BadgeDefinition
	badgeByID    map[string]BadgeDefinition
	achievements []AchievementDefinition
	window       int
}

func NewEvaluator(badges []BadgeDefinition, achievements []AchievementDefinition, window int) *Evaluator {
	if window <= 0 || window > MaxRecentEventWindow {
		window = MaxRecentEventWindow
	}
	byID := make(map[string]BadgeDefinition, len(badges))
	for _, b := range badges {
		byID[b.ID] = b
	}
	return &Evaluator{badges: badges, badgeByID: byID, achievements: achievements, window: window}
}

type EvaluationError struct {
	Stage string
	Rule  string
	Cause any
	Stack string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s %q: %v", e.Stage, e.Rule, e.Cause)
}

func (e *Evaluator) capEvents(events []*types.EngagementEvent) []*types.EngagementEvent {
	if len(events) > e.window {
		return events[:e.window]
	}
	return events
}

// CheckAndAwardBadges appends every badge whose predicate now holds and returns the new ones.
func (e *Evaluator) CheckAndAwardBadges(p *types.EngagementProfile, events []*types.EngagementEvent, now time.Time) (awarded []types.Badge, err error) {
	events = e.capEvents(events)
	rule := ""
	defer func() {
		if r := recover(); r != nil {
			awarded = nil
			err = &EvaluationError{Stage: "badge", Rule: rule, Cause: r, Stack: string(debug.Stack())}
		}
	}()

	var pending []BadgeDefinition
	for _, def := range e.badges {
		if def.Unlock == nil || p.HasBadge(def.ID) {
			continue
		}
		rule = def.ID
		if def.Unlock(p, events) {
			pending = append(pending, def)
		}
	}
	rule = ""
	if len(pending) == 0 {
		return []types.Badge{}, nil
	}
	owned := p.Badges.Data()
	awarded = make([]types.Badge, 0, len(pending))
	for _, def := range pending {
		b := def.award(types.Badge{UnlockedAt: now.UTC()})
		owned = append(owned, b)
		awarded = append(awarded, b)
	}
	p.Badges = datatypes.NewJSONType(owned)
	return awarded, nil
}

// UpdateAchievementProgress recomputes progress for every achievement and returns the ones
// completed by this pass. Completed achievements are frozen and progress never decreases.
func (e *Evaluator) UpdateAchievementProgress(p *types.EngagementProfile, events []*types.EngagementEvent, now time.Time) (completed []types.AchievementProgress, err error) {
	events = e.capEvents(events)
	rule := ""
	defer func() {
		if r := recover(); r != nil {
			completed = nil
			err = &EvaluationError{Stage: "achievement", Rule: rule, Cause: r, Stack: string(debug.Stack())}
		}
	}()

	current := p.Achievements.Data()
	staged := make(map[string]types.AchievementProgress, len(current)+len(e.achievements))
	for k, v := range current {
		staged[k] = v
	}
	completed = []types.AchievementProgress{}
	for _, def := range e.achievements {
		prev, ok := staged[def.ID]
		if ok && prev.Completed {
			continue
		}
		if !ok {
			prev = types.AchievementProgress{ID: def.ID, MaxProgress: def.MaxProgress, Rewards: def.Rewards}
		}
		rule = def.ID
		progress := 0
		if def.Progress != nil {
			progress = def.Progress(p, events, now)
		}
		progress = min(max(progress, 0), def.MaxProgress)
		if progress < prev.Progress {
			progress = prev.Progress
		}
		next := prev
		next.MaxProgress = def.MaxProgress
		next.Rewards = def.Rewards
		next.Progress = progress
		if def.MaxProgress > 0 && progress >= def.MaxProgress {
			at := now.UTC()
			next.Completed = true
			next.CompletedAt = &at
			completed = append(completed, next)
		}
		staged[def.ID] = next
	}
	p.Achievements = datatypes.NewJSONType(staged)
	return completed, nil
}

// GrantAchievementRewards credits a newly completed achievement: XP, reward badges the
// profile lacks and unlocks. Returns the XP, the badges granted and the unlocks that are new.
func (e *Evaluator) GrantAchievementRewards(p *types.EngagementProfile, a types.AchievementProgress, now time.Time) (int, []types.Badge, []string) {
	xp := max(a.Rewards.Experience, 0)
	p.Experience += xp

	granted := []types.Badge{}
	owned := p.Badges.Data()
	for _, id := range a.Rewards.Badges {
		if p.HasBadge(id) {
			continue
		}
		def, ok := e.badgeByID[id]
		if !ok {
			def = BadgeDefinition{ID: id, Name: id, Category: BadgeCategoryAchievement, Rarity: RarityRare}
		}
		b := def.award(types.Badge{UnlockedAt: now.UTC()})
		owned = append(owned, b)
		granted = append(granted, b)
		p.Badges = datatypes.NewJSONType(owned)
	}

	fresh := []string{}
	features := p.UnlockedFeatures.Data()
	for _, u := range a.Rewards.Unlocks {
		if !p.HasFeature(u) {
			features = append(features, u)
			p.UnlockedFeatures = datatypes.NewJSONType(features)
			fresh = append(fresh, u)
		}
	}
	return xp, granted, fresh
}

func (e *Evaluator) achievementName(id string) string {
	for _, a := range e.achievements {
		if a.ID == id {
			return a.Name
		}
	}
	return id
}
