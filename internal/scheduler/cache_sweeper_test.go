package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/portico/internal/cache"
	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

func TestCacheSweeper_Sweep(t *testing.T) {
	log := logger.New("error", false)

	now := time.Now()
	clock := func() time.Time { return now }
	c := cache.NewValidationCache(cache.WithClock(clock))

	c.Put("fresh", domain.Identity{ID: "1"}, time.Hour)
	c.Put("expiring", domain.Identity{ID: "2"}, time.Minute)
	c.Put("stale", domain.Identity{ID: "3"}, time.Second)

	now = now.Add(2 * time.Minute)

	cs := NewCacheSweeper(c, log, time.Hour)
	if removed := cs.Sweep(); removed != 2 {
		t.Errorf("Expected 2 entries removed, got %d", removed)
	}

	if c.Len() != 1 {
		t.Errorf("Expected 1 entry after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("Fresh entry was incorrectly removed")
	}
}

func TestCacheSweeper_StartStop(t *testing.T) {
	now := time.Now()
	var clock = func() time.Time { return now }
	c := cache.NewValidationCache(cache.WithClock(clock))
	c.Put("stale", domain.Identity{ID: "1"}, time.Nanosecond)
	now = now.Add(time.Second)

	cs := NewCacheSweeper(c, logger.NewNop(), 10*time.Millisecond)
	if err := cs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer cs.Stop()

	deadline := time.After(2 * time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never evicted the stale entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
