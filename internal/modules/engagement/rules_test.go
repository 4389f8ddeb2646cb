package engagement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	if r.XP["diary_entry"] != 15 || r.MaxGracePeriods != 3 || r.GraceWindowDays != 1 {
		t.Fatalf("defaults: got=%+v", r)
	}
	if r.Location().String() != "UTC" {
		t.Fatalf("location: want=UTC got=%s", r.Location())
	}
}

func TestParseRulesOverlaysDefaults(t *testing.T) {
	r, err := ParseRules([]byte("xp:\n  like: 4\nmax_grace_periods: 9\ngrace_window_days: 3\n"))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if r.XP["like"] != 4 || r.XP["post_create"] != 10 {
		t.Fatalf("xp overlay: got=%v", r.XP)
	}
	if r.MaxGracePeriods != MaxGracePeriodsCap {
		t.Fatalf("grace cap: want=%d got=%d", MaxGracePeriodsCap, r.MaxGracePeriods)
	}
	if r.GraceWindowDays != 3 {
		t.Fatalf("grace window: want=3 got=%d", r.GraceWindowDays)
	}
	if len(r.LevelThresholds) != 10 {
		t.Fatalf("thresholds kept: got=%v", r.LevelThresholds)
	}
}

func TestParseRulesExplicitZeroOverrides(t *testing.T) {
	r, err := ParseRules([]byte("grace_window_days: 0\nmax_grace_periods: 0\nemotional_context_bonus: 0\n"))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if r.GraceWindowDays != 0 || r.MaxGracePeriods != 0 || r.EmotionalContextBonus != 0 {
		t.Fatalf("zeros ignored: window=%d grace=%d bonus=%d", r.GraceWindowDays, r.MaxGracePeriods, r.EmotionalContextBonus)
	}
	if r.XP["diary_entry"] != 15 {
		t.Fatalf("unset keys should keep defaults: got=%v", r.XP)
	}
}

func TestZeroGraceRulesBreakStreakOnMissedDay(t *testing.T) {
	r, err := ParseRules([]byte("grace_window_days: 0\nmax_grace_periods: 0\n"))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	e := NewEngine(logger.Nop(), r)
	p := types.NewEngagementProfile(uuid.New())
	for _, d := range []int{0, 1, 3} {
		if _, err := e.Apply(p, nil, Input{EventType: types.EventDiaryEntry, OccurredAt: day(d)}); err != nil {
			t.Fatalf("day %d: %v", d, err)
		}
	}
	s := p.DiaryStreak.Data()
	if s.CurrentStreak != 1 || s.GracePeriodsUsed != 0 {
		t.Fatalf("diary streak: want current=1 grace=0 got=%+v", s)
	}
}

func TestParseRulesRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"thresholds not from zero": "level_thresholds: [10, 20]\n",
		"thresholds descending":    "level_thresholds: [0, 200, 100]\n",
		"milestones unsorted":      "milestones: [14, 7]\n",
		"negative xp":              "xp:\n  like: -1\n",
		"bad timezone":             "timezone: Mars/Olympus\n",
		"bad yaml":                 "xp: [\n",
	}
	for name, doc := range cases {
		if _, err := ParseRules([]byte(doc)); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("xp:\n  share: 8\nrecent_event_window: 500\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.XP["share"] != 8 {
		t.Fatalf("share: want=8 got=%d", r.XP["share"])
	}
	if r.RecentEventWindow != MaxRecentEventWindow {
		t.Fatalf("window cap: want=%d got=%d", MaxRecentEventWindow, r.RecentEventWindow)
	}
	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file: want error")
	}
	if r, err := LoadRules(""); err != nil || r.XP["post_create"] != 10 {
		t.Fatalf("empty path: want defaults got=%v err=%v", r.XP, err)
	}
}
