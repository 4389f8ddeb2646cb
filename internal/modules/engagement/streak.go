package engagement

import (
	"time"

	"gorm.io/datatypes"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

// StreakUpdate reports what one activity did to one streak.
type StreakUpdate struct {
	StreakType       string
	NewStreakValue   int
	Changed          bool
	GraceUsed        bool
	Reset            bool
	MilestoneReached bool
	Milestone        int
}

type StreakTracker struct {
	rules Rules
}

func NewStreakTracker(rules Rules) *StreakTracker {
	return &StreakTracker{rules: rules}
}

// streakSlot binds a streak type to the profile field holding it.
type streakSlot struct {
	streakType string
	get        func(p *types.EngagementProfile) types.StreakState
	set        func(p *types.EngagementProfile, s types.StreakState)
}

var (
	postingSlot = streakSlot{
		streakType: types.StreakPosting,
		get:        func(p *types.EngagementProfile) types.StreakState { return p.PostingStreak.Data() },
		set:        func(p *types.EngagementProfile, s types.StreakState) { p.PostingStreak = datatypes.NewJSONType(s) },
	}
	diarySlot = streakSlot{
		streakType: types.StreakDiary,
		get:        func(p *types.EngagementProfile) types.StreakState { return p.DiaryStreak.Data() },
		set:        func(p *types.EngagementProfile, s types.StreakState) { p.DiaryStreak = datatypes.NewJSONType(s) },
	}
	communitySlot = streakSlot{
		streakType: types.StreakEngagement,
		get:        func(p *types.EngagementProfile) types.StreakState { return p.CommunityStreak.Data() },
		set:        func(p *types.EngagementProfile, s types.StreakState) { p.CommunityStreak = datatypes.NewJSONType(s) },
	}
	combinedSlot = streakSlot{
		streakType: types.StreakCombined,
		get:        func(p *types.EngagementProfile) types.StreakState { return p.CombinedStreak.Data() },
		set:        func(p *types.EngagementProfile, s types.StreakState) { p.CombinedStreak = datatypes.NewJSONType(s) },
	}
)

func slotsFor(eventType string) []streakSlot {
	switch eventType {
	case types.EventPostCreate:
		return []streakSlot{postingSlot, combinedSlot}
	case types.EventDiaryEntry:
		return []streakSlot{diarySlot, combinedSlot}
	case types.EventComment, types.EventLike, types.EventShare:
		return []streakSlot{communitySlot, combinedSlot}
	default:
		return nil
	}
}

// RecordActivity advances every streak implicated by eventType. Login touches none.
func (t *StreakTracker) RecordActivity(p *types.EngagementProfile, eventType string, now time.Time) []StreakUpdate {
	slots := slotsFor(eventType)
	out := make([]StreakUpdate, 0, len(slots))
	for _, slot := range slots {
		s := slot.get(p)
		if s.StreakType == "" {
			s.StreakType = slot.streakType
		}
		u := t.Advance(&s, now)
		slot.set(p, s)
		out = append(out, u)
	}
	return out
}

// Advance applies one day of activity to s.
func (t *StreakTracker) Advance(s *types.StreakState, now time.Time) StreakUpdate {
	u := StreakUpdate{StreakType: s.StreakType}
	stamp := now.UTC()

	if s.LastActivity == nil || s.CurrentStreak <= 0 {
		s.CurrentStreak = 1
		s.GracePeriodsUsed = 0
		s.LongestStreak = max(s.LongestStreak, 1)
		s.NextMilestone = t.NextMilestoneAfter(1)
		s.LastActivity = &stamp
		u.Changed = true
		u.NewStreakValue = 1
		return u
	}

	days := t.daysBetween(*s.LastActivity, now)
	switch {
	case days <= 0:
		// Same day repeats and out-of-order events leave the streak alone.
		u.NewStreakValue = s.CurrentStreak
		return u
	case days == 1:
		s.CurrentStreak++
		s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
		if t.IsMilestone(s.CurrentStreak) {
			u.MilestoneReached = true
			u.Milestone = s.CurrentStreak
		}
		s.NextMilestone = t.NextMilestoneAfter(s.CurrentStreak)
	default:
		missed := days - 1
		if missed <= t.rules.GraceWindowDays && s.GracePeriodsUsed < t.rules.MaxGracePeriods {
			s.GracePeriodsUsed++
			u.GraceUsed = true
		} else {
			s.CurrentStreak = 1
			s.GracePeriodsUsed = 0
			s.NextMilestone = t.NextMilestoneAfter(1)
			u.Reset = true
		}
	}
	s.LastActivity = &stamp
	u.Changed = true
	u.NewStreakValue = s.CurrentStreak
	return u
}

// IsMilestone reports whether n is in the milestone table or a step beyond its end.
func (t *StreakTracker) IsMilestone(n int) bool {
	ms := t.rules.Milestones
	for _, m := range ms {
		if m == n {
			return true
		}
	}
	last := ms[len(ms)-1]
	return n > last && (n-last)%t.rules.MilestoneStep == 0
}

// NextMilestoneAfter returns the smallest milestone strictly greater than n.
func (t *StreakTracker) NextMilestoneAfter(n int) int {
	ms := t.rules.Milestones
	for _, m := range ms {
		if m > n {
			return m
		}
	}
	last := ms[len(ms)-1]
	step := t.rules.MilestoneStep
	return last + ((n-last)/step+1)*step
}

func (t *StreakTracker) daysBetween(from, to time.Time) int {
	loc := t.rules.Location()
	return dayNumber(to.In(loc)) - dayNumber(from.In(loc))
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
