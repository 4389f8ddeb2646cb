package engagement

import "sort"

type Leveling struct {
	thresholds []int
	unlocks    map[int][]string
}

func NewLeveling(rules Rules) *Leveling {
	return &Leveling{thresholds: rules.LevelThresholds, unlocks: rules.LevelUnlocks}
}

// LevelFor is 1 + the index of the largest threshold <= experience.
func (l *Leveling) LevelFor(experience int) int {
	if experience < 0 {
		experience = 0
	}
	idx := sort.Search(len(l.thresholds), func(i int) bool { return l.thresholds[i] > experience })
	if idx == 0 {
		return 1
	}
	return idx
}

// MaxLevel is the level reached at the last threshold.
func (l *Leveling) MaxLevel() int {
	return len(l.thresholds)
}

// UnlocksFor returns the cumulative unlocks of every level <= level, lowest level first.
func (l *Leveling) UnlocksFor(level int) []string {
	return l.NewUnlocks(0, level)
}

// NewUnlocks returns the unlocks gained moving from level `from` to level `to`.
func (l *Leveling) NewUnlocks(from, to int) []string {
	out := []string{}
	if to <= from {
		return out
	}
	levels := make([]int, 0, len(l.unlocks))
	for lvl := range l.unlocks {
		if lvl > from && lvl <= to {
			levels = append(levels, lvl)
		}
	}
	sort.Ints(levels)
	for _, lvl := range levels {
		out = append(out, l.unlocks[lvl]...)
	}
	return out
}

// Progress reports experience needed for the next level. At max level next is -1.
func (l *Leveling) Progress(experience int) (level, current, next int) {
	level = l.LevelFor(experience)
	current = l.thresholds[level-1]
	if level >= len(l.thresholds) {
		return level, current, -1
	}
	return level, current, l.thresholds[level]
}
