package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/portico/internal/compose"
	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
	"github.com/MrSnakeDoc/portico/internal/readiness"
)

// CompositionPoller drives the composer on a fixed interval and reports
// every outcome to the readiness state machine. It keeps the last good
// supergraph so a transient failure does not lose it.
type CompositionPoller struct {
	composer  compose.Composer
	endpoints []domain.ServiceEndpoint
	machine   *readiness.Machine
	logger    logger.Logger
	interval  time.Duration
	stopCh    chan struct{}
	done      chan struct{}

	mu      sync.RWMutex
	current compose.Supergraph
	ok      bool
}

// NewCompositionPoller creates a new composition poller
func NewCompositionPoller(
	composer compose.Composer,
	endpoints []domain.ServiceEndpoint,
	machine *readiness.Machine,
	log logger.Logger,
	interval time.Duration,
) *CompositionPoller {
	return &CompositionPoller{
		composer:  composer,
		endpoints: endpoints,
		machine:   machine,
		logger:    log,
		interval:  interval,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the loop; the first composition runs right away.
func (cp *CompositionPoller) Start(ctx context.Context) error {
	go func() {
		defer close(cp.done)

		if !cp.Compose(ctx) {
			return
		}

		ticker := time.NewTicker(cp.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !cp.Compose(ctx) {
					return
				}
			case <-cp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the poller and waits for an in-flight composition.
func (cp *CompositionPoller) Stop() {
	close(cp.stopCh)
	<-cp.done
}

// Compose runs one composition. It returns false once the failure is fatal
// and polling must stop.
func (cp *CompositionPoller) Compose(ctx context.Context) bool {
	sg, err := cp.composer.Compose(ctx, cp.endpoints)
	if err != nil {
		cp.machine.CompositionFailed(err)
		if !compose.IsConnectivityError(err) {
			return false
		}
		cp.logger.Warn("composition failed, will retry",
			logger.Duration("retry_in", cp.interval),
			logger.Error(err))
		return true
	}

	cp.mu.Lock()
	changed := !cp.ok || cp.current.SDL != sg.SDL
	cp.current = sg
	cp.ok = true
	cp.mu.Unlock()

	if changed {
		cp.logger.Info("supergraph composed",
			logger.Strings("subgraphs", sg.Subgraphs),
			logger.Int("sdl_bytes", len(sg.SDL)))
	}
	cp.machine.SchemaComposed()
	return true
}

// Current returns the last successfully composed supergraph.
func (cp *CompositionPoller) Current() (compose.Supergraph, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.current, cp.ok
}
