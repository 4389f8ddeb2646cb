package recall

import (
	"fmt"
	"math"

	types "github.com/introvirght/engagement-backend/internal/domain"
)

// ValidateMetadata checks the numeric fields a stored entry carries.
func ValidateMetadata(m types.DiaryMetadata) error {
	if math.IsNaN(m.Sentiment) || m.Sentiment < -1 || m.Sentiment > 1 {
		return fmt.Errorf("sentiment must be within [-1,1], got %v", m.Sentiment)
	}
	if m.WordCount < 0 {
		return fmt.Errorf("word_count must not be negative, got %d", m.WordCount)
	}
	return nil
}
