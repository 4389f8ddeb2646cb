package engagement

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// MaxGracePeriodsCap bounds the grace budget no matter what a rules file says.
const MaxGracePeriodsCap = 3

// MaxRecentEventWindow bounds how many past events any evaluation may read.
const MaxRecentEventWindow = 100

//go:embed rules.yaml
var rulesFS embed.FS

// Rules is the tunable scoring table.
type Rules struct {
	Version               int              `yaml:"version"`
	Timezone              string           `yaml:"timezone"`
	XP                    map[string]int   `yaml:"xp"`
	QualityThreshold      float64          `yaml:"quality_threshold"`
	QualityMultiplier     float64          `yaml:"quality_multiplier"`
	EmotionalContextBonus int              `yaml:"emotional_context_bonus"`
	LevelThresholds       []int            `yaml:"level_thresholds"`
	LevelUnlocks          map[int][]string `yaml:"level_unlocks"`
	Milestones            []int            `yaml:"milestones"`
	MilestoneStep         int              `yaml:"milestone_step"`
	MaxGracePeriods       int              `yaml:"max_grace_periods"`
	GraceWindowDays       int              `yaml:"grace_window_days"`
	RecentEventWindow     int              `yaml:"recent_event_window"`

	location *time.Location
}

// DefaultRules returns the embedded rule set.
func DefaultRules() Rules {
	data, err := rulesFS.ReadFile("rules.yaml")
	if err != nil {
		panic(fmt.Sprintf("engagement: embedded rules missing: %v", err))
	}
	r, err := ParseRules(data)
	if err != nil {
		panic(fmt.Sprintf("engagement: embedded rules invalid: %v", err))
	}
	return r
}

// LoadRules reads path when set, otherwise the embedded defaults.
// Keys missing from the file keep their default values.
func LoadRules(path string) (Rules, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules overlays data on the embedded defaults and validates the result.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if base, err := rulesFS.ReadFile("rules.yaml"); err == nil {
		if err := yaml.Unmarshal(base, &r); err != nil {
			return Rules{}, fmt.Errorf("parse default rules: %w", err)
		}
	}
	var overlay rulesOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	r.merge(overlay)
	if err := r.normalize(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// rulesOverlay mirrors Rules with nil meaning "not set", so an explicit zero overrides.
type rulesOverlay struct {
	Version               *int             `yaml:"version"`
	Timezone              *string          `yaml:"timezone"`
	XP                    map[string]int   `yaml:"xp"`
	QualityThreshold      *float64         `yaml:"quality_threshold"`
	QualityMultiplier     *float64         `yaml:"quality_multiplier"`
	EmotionalContextBonus *int             `yaml:"emotional_context_bonus"`
	LevelThresholds       []int            `yaml:"level_thresholds"`
	LevelUnlocks          map[int][]string `yaml:"level_unlocks"`
	Milestones            []int            `yaml:"milestones"`
	MilestoneStep         *int             `yaml:"milestone_step"`
	MaxGracePeriods       *int             `yaml:"max_grace_periods"`
	GraceWindowDays       *int             `yaml:"grace_window_days"`
	RecentEventWindow     *int             `yaml:"recent_event_window"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (r *Rules) merge(o rulesOverlay) {
	set(&r.Version, o.Version)
	set(&r.Timezone, o.Timezone)
	if len(o.XP) > 0 {
		if r.XP == nil {
			r.XP = map[string]int{}
		}
		for k, v := range o.XP {
			r.XP[k] = v
		}
	}
	set(&r.QualityThreshold, o.QualityThreshold)
	set(&r.QualityMultiplier, o.QualityMultiplier)
	set(&r.EmotionalContextBonus, o.EmotionalContextBonus)
	if len(o.LevelThresholds) > 0 {
		r.LevelThresholds = o.LevelThresholds
	}
	if len(o.LevelUnlocks) > 0 {
		r.LevelUnlocks = o.LevelUnlocks
	}
	if len(o.Milestones) > 0 {
		r.Milestones = o.Milestones
	}
	set(&r.MilestoneStep, o.MilestoneStep)
	set(&r.MaxGracePeriods, o.MaxGracePeriods)
	set(&r.GraceWindowDays, o.GraceWindowDays)
	set(&r.RecentEventWindow, o.RecentEventWindow)
}

func (r *Rules) normalize() error {
	if len(r.LevelThresholds) == 0 || r.LevelThresholds[0] != 0 {
		return errors.New("rules: level_thresholds must start at 0")
	}
	for i := 1; i < len(r.LevelThresholds); i++ {
		if r.LevelThresholds[i] <= r.LevelThresholds[i-1] {
			return fmt.Errorf("rules: level_thresholds must be strictly ascending at index %d", i)
		}
	}
	if len(r.Milestones) == 0 {
		return errors.New("rules: milestones must not be empty")
	}
	if !sort.IntsAreSorted(r.Milestones) || r.Milestones[0] <= 1 {
		return errors.New("rules: milestones must be ascending and greater than 1")
	}
	if r.MilestoneStep <= 0 {
		return errors.New("rules: milestone_step must be positive")
	}
	for k, v := range r.XP {
		if v < 0 {
			return fmt.Errorf("rules: xp for %s must not be negative", k)
		}
	}
	if r.QualityMultiplier < 1 {
		return errors.New("rules: quality_multiplier must be >= 1")
	}
	if r.EmotionalContextBonus < 0 {
		return errors.New("rules: emotional_context_bonus must not be negative")
	}
	if r.MaxGracePeriods < 0 {
		r.MaxGracePeriods = 0
	}
	if r.MaxGracePeriods > MaxGracePeriodsCap {
		r.MaxGracePeriods = MaxGracePeriodsCap
	}
	if r.GraceWindowDays < 0 {
		r.GraceWindowDays = 0
	}
	if r.RecentEventWindow <= 0 || r.RecentEventWindow > MaxRecentEventWindow {
		r.RecentEventWindow = MaxRecentEventWindow
	}
	tz := strings.TrimSpace(r.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("rules: timezone %q: %w", tz, err)
	}
	r.Timezone = tz
	r.location = loc
	return nil
}

// Location is the calendar used for streak day boundaries.
func (r Rules) Location() *time.Location {
	if r.location == nil {
		return time.UTC
	}
	return r.location
}

// WithTimezone returns a copy using tz for day boundaries.
func (r Rules) WithTimezone(tz string) (Rules, error) {
	r.Timezone = tz
	if err := r.normalize(); err != nil {
		return Rules{}, err
	}
	return r, nil
}
