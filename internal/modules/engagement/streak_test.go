package engagement

import (
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestAdvanceFirstActivityStartsAtOne(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	s := types.NewStreakState(types.StreakPosting)
	u := tr.Advance(&s, day(0))
	if s.CurrentStreak != 1 || s.LongestStreak != 1 || !u.Changed {
		t.Fatalf("first activity: want current=1 longest=1 changed got=%+v %+v", s, u)
	}
	if s.NextMilestone != 7 {
		t.Fatalf("next milestone: want=7 got=%d", s.NextMilestone)
	}
}

func TestAdvanceSameDayIsIdempotent(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	s := types.NewStreakState(types.StreakDiary)
	tr.Advance(&s, day(0))
	before := s
	u := tr.Advance(&s, day(0).Add(5*time.Hour))
	if u.Changed {
		t.Fatalf("same day: want unchanged got=%+v", u)
	}
	if s.CurrentStreak != before.CurrentStreak || !s.LastActivity.Equal(*before.LastActivity) {
		t.Fatalf("same day mutated state: before=%+v after=%+v", before, s)
	}
}

func TestAdvanceConsecutiveDaysReachMilestone(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	s := types.NewStreakState(types.StreakPosting)
	var last StreakUpdate
	for i := 0; i < 7; i++ {
		last = tr.Advance(&s, day(i))
		if i < 6 && last.MilestoneReached {
			t.Fatalf("day %d: unexpected milestone", i+1)
		}
	}
	if s.CurrentStreak != 7 || s.LongestStreak != 7 {
		t.Fatalf("after 7 days: want=7 got current=%d longest=%d", s.CurrentStreak, s.LongestStreak)
	}
	if !last.MilestoneReached || last.Milestone != 7 {
		t.Fatalf("milestone: want=7 got=%+v", last)
	}
	if s.NextMilestone != 14 {
		t.Fatalf("next milestone: want=14 got=%d", s.NextMilestone)
	}
}

func TestAdvanceResetsAfterLongGap(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	s := types.NewStreakState(types.StreakPosting)
	for i := 0; i < 4; i++ {
		tr.Advance(&s, day(i))
	}
	u := tr.Advance(&s, day(3+5))
	if !u.Reset || s.CurrentStreak != 1 {
		t.Fatalf("gap of 5 days: want reset to 1 got=%+v %+v", u, s)
	}
	if s.LongestStreak != 4 {
		t.Fatalf("longest: want=4 got=%d", s.LongestStreak)
	}
	if s.GracePeriodsUsed != 0 || s.NextMilestone != 7 {
		t.Fatalf("reset state: got=%+v", s)
	}
}

func TestAdvanceGraceBudgetIsBounded(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	s := types.NewStreakState(types.StreakDiary)
	tr.Advance(&s, day(0))
	tr.Advance(&s, day(1))

	d := 1
	for i := 0; i < MaxGracePeriodsCap; i++ {
		d += 2
		u := tr.Advance(&s, day(d))
		if !u.GraceUsed || s.CurrentStreak != 2 {
			t.Fatalf("grace %d: want kept streak=2 got=%+v %+v", i+1, u, s)
		}
	}
	if s.GracePeriodsUsed != MaxGracePeriodsCap {
		t.Fatalf("grace used: want=%d got=%d", MaxGracePeriodsCap, s.GracePeriodsUsed)
	}
	d += 2
	u := tr.Advance(&s, day(d))
	if !u.Reset || s.CurrentStreak != 1 {
		t.Fatalf("exhausted grace: want reset got=%+v %+v", u, s)
	}
}

func TestAdvanceOutOfOrderIsNoop(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	s := types.NewStreakState(types.StreakPosting)
	tr.Advance(&s, day(4))
	tr.Advance(&s, day(5))
	u := tr.Advance(&s, day(3))
	if u.Changed || s.CurrentStreak != 2 || !s.LastActivity.Equal(day(5)) {
		t.Fatalf("out of order: want untouched got=%+v %+v", u, s)
	}
}

func TestMilestonesBeyondTable(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	cases := []struct {
		n    int
		ms   bool
		next int
	}{
		{1, false, 7},
		{7, true, 14},
		{99, false, 100},
		{365, true, 465},
		{400, false, 465},
		{465, true, 565},
		{466, false, 565},
	}
	for _, tc := range cases {
		if got := tr.IsMilestone(tc.n); got != tc.ms {
			t.Fatalf("IsMilestone(%d): want=%v got=%v", tc.n, tc.ms, got)
		}
		if got := tr.NextMilestoneAfter(tc.n); got != tc.next {
			t.Fatalf("NextMilestoneAfter(%d): want=%d got=%d", tc.n, tc.next, got)
		}
	}
}

func TestRecordActivityTouchesMappedStreaks(t *testing.T) {
	tr := NewStreakTracker(DefaultRules())
	p := types.NewEngagementProfile(uuid.New())

	ups := tr.RecordActivity(p, types.EventComment, day(0))
	if len(ups) != 2 || ups[0].StreakType != types.StreakEngagement || ups[1].StreakType != types.StreakCombined {
		t.Fatalf("comment streaks: got=%+v", ups)
	}
	if p.CommunityStreak.Data().CurrentStreak != 1 || p.CombinedStreak.Data().CurrentStreak != 1 {
		t.Fatalf("comment did not start streaks: %+v %+v", p.CommunityStreak.Data(), p.CombinedStreak.Data())
	}
	if p.PostingStreak.Data().CurrentStreak != 0 {
		t.Fatalf("posting streak touched by comment")
	}
	if ups := tr.RecordActivity(p, types.EventLogin, day(0)); len(ups) != 0 {
		t.Fatalf("login: want no streaks got=%+v", ups)
	}
}

func TestDayBoundariesFollowRulesTimezone(t *testing.T) {
	rules, err := DefaultRules().WithTimezone("America/New_York")
	if err != nil {
		t.Fatalf("WithTimezone: %v", err)
	}
	tr := NewStreakTracker(rules)
	s := types.NewStreakState(types.StreakDiary)
	// 03:00 UTC on Jan 2 is still Jan 1 in New York.
	tr.Advance(&s, time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC))
	u := tr.Advance(&s, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))
	if u.Changed {
		t.Fatalf("same local day: want unchanged got=%+v", u)
	}
}
