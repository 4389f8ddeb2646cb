package engagement

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MetaQualityScore     = "quality_score"
	MetaEmotionalContext = "emotional_context"
	MetaMood             = "mood"
	MetaWordCount        = "word_count"
	MetaSentiment        = "sentiment"
	MetaSessionDuration  = "session_duration"

	MetaExperienceGained = "experience_gained"
	MetaStreakImpact     = "streak_impact"
)

const (
	// maxMetaCount caps count-like values such as word_count for a single event.
	maxMetaCount = 100_000
	// maxSessionDuration caps one login's session_duration (a day, in seconds).
	maxSessionDuration = 86_400.0
)

// numericMetaKeys are parsed as numbers even when sent as strings.
var numericMetaKeys = map[string]bool{
	MetaQualityScore:    true,
	MetaWordCount:       true,
	MetaSentiment:       true,
	MetaSessionDuration: true,
}

// Metadata values arrive from JSON bodies and from direct Go callers, so numbers may be
// float64, int, json.Number or numeric strings.
func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// metaFloat reports ok=false for missing, unparseable and non-finite values.
func metaFloat(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	f, ok := numberOf(m[key])
	if !ok || !finite(f) {
		return 0, false
	}
	return f, true
}

// metaInt clamps to [0, maxMetaCount].
func metaInt(m map[string]any, key string) int {
	f, ok := metaFloat(m, key)
	if !ok || f < 0 {
		return 0
	}
	if f > maxMetaCount {
		return maxMetaCount
	}
	return int(f)
}

// checkMetadata rejects non-finite numbers: they cannot be stored as JSON and would poison
// running averages. Free-text keys are only checked when they hold a real number.
func checkMetadata(m map[string]any) error {
	for k, v := range m {
		if _, isText := v.(string); isText && !numericMetaKeys[k] {
			continue
		}
		if f, ok := numberOf(v); ok && !finite(f) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidMetadata, k)
		}
	}
	return nil
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+3)
	for k, v := range m {
		out[k] = v
	}
	return out
}
