package throttle

import (
	"context"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Store counts hits per key over a sliding window. Implementations own their TTL and
// eviction; callers never see the underlying maps.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
	Reset(ctx context.Context, key string) error
}

// Rule is a limit applied to one key family.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) Enabled() bool { return r.Limit > 0 && r.Window > 0 }
