package throttle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreLimitsWithinWindow(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clk.Now))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := s.Allow(ctx, "u1:login", 2, time.Hour)
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: want allowed got=%+v err=%v", i, d, err)
		}
	}
	d, _ := s.Allow(ctx, "u1:login", 2, time.Hour)
	if d.Allowed {
		t.Fatalf("third hit: want denied")
	}
	if d.RetryAfter != time.Hour {
		t.Fatalf("retry after: want=1h got=%s", d.RetryAfter)
	}

	clk.Advance(time.Hour + time.Second)
	d, _ = s.Allow(ctx, "u1:login", 2, time.Hour)
	if !d.Allowed {
		t.Fatalf("after window: want allowed got=%+v", d)
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if d, _ := s.Allow(ctx, "a", 1, time.Minute); !d.Allowed {
		t.Fatalf("a first: want allowed")
	}
	if d, _ := s.Allow(ctx, "b", 1, time.Minute); !d.Allowed {
		t.Fatalf("b first: want allowed")
	}
	if d, _ := s.Allow(ctx, "a", 1, time.Minute); d.Allowed {
		t.Fatalf("a second: want denied")
	}
}

func TestMemoryStoreSweepEvictsExpired(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clk.Now))
	ctx := context.Background()
	_, _ = s.Allow(ctx, "a", 5, time.Minute)
	_, _ = s.Allow(ctx, "b", 5, time.Hour)

	clk.Advance(2 * time.Minute)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("sweep: want=1 got=%d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("len: want=1 got=%d", s.Len())
	}
}

func TestMemoryStoreCapacityEviction(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clk.Now), WithMaxKeys(4))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		clk.Advance(time.Second)
		_, _ = s.Allow(ctx, fmt.Sprintf("k%d", i), 1, time.Hour)
	}
	if s.Len() > 4 {
		t.Fatalf("len: want<=4 got=%d", s.Len())
	}
}

func TestMemoryStoreDisabledRuleAlwaysAllows(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if d, _ := s.Allow(context.Background(), "x", 0, time.Minute); !d.Allowed {
			t.Fatalf("disabled: want allowed")
		}
	}
	if s.Len() != 0 {
		t.Fatalf("disabled rule should not track keys")
	}
}

func TestMemoryStoreReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Allow(ctx, "x", 1, time.Minute)
	_ = s.Reset(ctx, "x")
	if d, _ := s.Allow(ctx, "x", 1, time.Minute); !d.Allowed {
		t.Fatalf("after reset: want allowed")
	}
}
