package engagement

import (
	"math"

	"gorm.io/datatypes"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

// BaseXP returns the experience an activity earns before achievement bonuses.
// System event types earn nothing.
func (r Rules) BaseXP(eventType string, meta map[string]any) int {
	if !types.IsActivityEventType(eventType) {
		return 0
	}
	xp := r.XP[eventType]
	switch eventType {
	case types.EventPostCreate:
		if q, ok := metaFloat(meta, MetaQualityScore); ok && q >= r.QualityThreshold {
			xp = int(math.Floor(float64(xp) * r.QualityMultiplier))
		}
	case types.EventDiaryEntry:
		if metaString(meta, MetaEmotionalContext) != "" {
			xp += r.EmotionalContextBonus
		}
	}
	return xp
}

// ApplyCounters bumps the profile's aggregate counters for one activity.
func (r Rules) ApplyCounters(p *types.EngagementProfile, eventType string, meta map[string]any) {
	content := p.ContentCreated.Data()
	social := p.SocialImpact.Data()
	growth := p.EmotionalGrowth.Data()

	switch eventType {
	case types.EventPostCreate:
		content.Posts++
		if q, ok := metaFloat(meta, MetaQualityScore); ok && q >= r.QualityThreshold {
			p.HighQualityPosts++
		}
	case types.EventDiaryEntry:
		content.DiaryEntries++
		if mood := metaString(meta, MetaMood); mood != "" {
			growth.MoodEntries++
			growth.MoodsSeen = addUnique(growth.MoodsSeen, mood)
		}
		growth.ReflectionWords += metaInt(meta, MetaWordCount)
		if s, ok := metaFloat(meta, MetaSentiment); ok && s > 0 {
			growth.PositiveEntries++
		}
		if metaString(meta, MetaEmotionalContext) != "" {
			growth.EmotionalContextEntries++
		}
	case types.EventComment:
		content.Comments++
		social.CommentsGiven++
		social.CommunityContributions++
	case types.EventLike:
		social.LikesGiven++
	case types.EventShare:
		social.SharesGiven++
		social.CommunityContributions++
	case types.EventLogin:
		p.TotalSessions++
		dur, _ := metaFloat(meta, MetaSessionDuration)
		dur = math.Max(0, math.Min(dur, maxSessionDuration))
		n := float64(p.TotalSessions)
		p.AverageSessionDuration = (p.AverageSessionDuration*(n-1) + dur) / n
	}

	if growth.MoodsSeen == nil {
		growth.MoodsSeen = []string{}
	}
	p.ContentCreated = datatypes.NewJSONType(content)
	p.SocialImpact = datatypes.NewJSONType(social)
	p.EmotionalGrowth = datatypes.NewJSONType(growth)
}

func addUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func unionStrings(base []string, add ...string) []string {
	out := append([]string{}, base...)
	for _, v := range add {
		out = addUnique(out, v)
	}
	return out
}
