package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
	"github.com/MrSnakeDoc/portico/internal/readiness"
)

// Checker probes the downstream services.
type Checker interface {
	CheckAll(ctx context.Context) []domain.ServiceHealthStatus
}

// HealthPoller feeds probe results into the readiness state machine on a
// fixed interval, or immediately when manualTrigger fires.
type HealthPoller struct {
	checker       Checker
	machine       *readiness.Machine
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewHealthPoller creates a new health poller. manualTrigger may be nil.
func NewHealthPoller(
	checker Checker,
	machine *readiness.Machine,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *HealthPoller {
	return &HealthPoller{
		checker:       checker,
		machine:       machine,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start launches the polling loop. The first check runs right away in the
// background so a slow service never delays boot.
func (hp *HealthPoller) Start(ctx context.Context) error {
	go func() {
		defer close(hp.done)

		hp.Poll(ctx)

		ticker := time.NewTicker(hp.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hp.Poll(ctx)
			case <-hp.manualTrigger:
				hp.logger.Info("manual health check triggered")
				hp.Poll(ctx)
			case <-hp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the poller and waits for an in-flight check to finish.
func (hp *HealthPoller) Stop() {
	close(hp.stopCh)
	<-hp.done
}

// Poll runs one round of probes and publishes the result.
func (hp *HealthPoller) Poll(ctx context.Context) {
	statuses := hp.checker.CheckAll(ctx)
	hp.machine.UpdateServices(statuses)

	available, unavailable := domain.SplitByReachability(statuses)
	hp.logger.Debug("health check completed",
		logger.Int("available", len(available)),
		logger.Int("unavailable", len(unavailable)))
}
