package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/portico/internal/logger"
)

// Sweeper removes expired entries and reports how many went away.
type Sweeper interface {
	Sweep() int
	Len() int
}

// CacheSweeper evicts expired validation results on a fixed interval,
// independently of request traffic.
type CacheSweeper struct {
	cache    Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCacheSweeper creates a new cache sweeper
func NewCacheSweeper(cache Sweeper, log logger.Logger, interval time.Duration) *CacheSweeper {
	return &CacheSweeper{
		cache:    cache,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (cs *CacheSweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(cs.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cs.Sweep()
			case <-cs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper
func (cs *CacheSweeper) Stop() {
	close(cs.stopCh)
}

// Sweep runs one eviction pass.
func (cs *CacheSweeper) Sweep() int {
	removed := cs.cache.Sweep()
	if removed > 0 {
		cs.logger.Info("validation cache swept",
			logger.Int("removed", removed),
			logger.Int("remaining", cs.cache.Len()))
	} else {
		cs.logger.Debug("no expired validation entries")
	}
	return removed
}
