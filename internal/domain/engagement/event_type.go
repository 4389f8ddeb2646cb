package engagement

// Activity event types reported by collaborators.
const (
	EventPostCreate = "post_create"
	EventDiaryEntry = "diary_entry"
	EventLike       = "like"
	EventComment    = "comment"
	EventShare      = "share"
	EventLogin      = "login"
)

// System event types. They exist in the event log vocabulary but are never accepted from callers.
const (
	EventAchievement     = "achievement"
	EventStreakMilestone = "streak_milestone"
	EventLevelUp         = "level_up"
	EventBadgeUnlock     = "badge_unlock"
)

var activityEventTypes = map[string]struct{}{
	EventPostCreate: {},
	EventDiaryEntry: {},
	EventLike:       {},
	EventComment:    {},
	EventShare:      {},
	EventLogin:      {},
}

var systemEventTypes = map[string]struct{}{
	EventAchievement:     {},
	EventStreakMilestone: {},
	EventLevelUp:         {},
	EventBadgeUnlock:     {},
}

func IsActivityEventType(t string) bool {
	_, ok := activityEventTypes[t]
	return ok
}

func IsSystemEventType(t string) bool {
	_, ok := systemEventTypes[t]
	return ok
}

// Streak types as stored on StreakState.StreakType.
const (
	StreakPosting    = "posting"
	StreakDiary      = "diary"
	StreakEngagement = "engagement"
	StreakCombined   = "combined"
)

// Celebration types.
const (
	CelebrationLevelUp         = "level_up"
	CelebrationStreakMilestone = "streak_milestone"
	CelebrationBadgeEarned     = "badge_earned"
	CelebrationAchievement     = "achievement_completed"
)

// ActivityEventTypes lists the caller-facing event types in a stable order.
func ActivityEventTypes() []string {
	return []string{EventPostCreate, EventDiaryEntry, EventLike, EventComment, EventShare, EventLogin}
}
