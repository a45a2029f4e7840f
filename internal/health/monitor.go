// Package health probes the downstream services the gateway fronts.
package health

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

const (
	// DefaultConcurrency of 0 probes every endpoint at once.
	DefaultConcurrency = 0
	// DefaultFailureLogCap is how many consecutive failures of one service get logged.
	DefaultFailureLogCap = 3

	probeQuery = `{"query":"{ __typename }"}`
)

// ProbeRecorder receives one observation per probed endpoint.
type ProbeRecorder interface {
	ObserveProbe(service string, reachable bool, elapsed time.Duration)
}

type nopProbeRecorder struct{}

func (nopProbeRecorder) ObserveProbe(string, bool, time.Duration) {}

// Monitor checks every configured endpoint and keeps the last results.
type Monitor struct {
	endpoints   []domain.ServiceEndpoint
	client      *http.Client
	concurrency int
	logCap      int
	log         logger.Logger
	recorder    ProbeRecorder
	now         func() time.Time

	mu        sync.RWMutex
	statuses  []domain.ServiceHealthStatus
	failures  map[string]int // consecutive failures per service
	lastCheck time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithHTTPClient(c *http.Client) Option { return func(m *Monitor) { m.client = c } }
func WithConcurrency(n int) Option          { return func(m *Monitor) { m.concurrency = n } }
func WithFailureLogCap(n int) Option        { return func(m *Monitor) { m.logCap = n } }
func WithRecorder(r ProbeRecorder) Option   { return func(m *Monitor) { m.recorder = r } }
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// NewMonitor creates a monitor for endpoints. The slice is copied.
func NewMonitor(endpoints []domain.ServiceEndpoint, log logger.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		endpoints:   append([]domain.ServiceEndpoint(nil), endpoints...),
		client:      &http.Client{},
		concurrency: DefaultConcurrency,
		logCap:      DefaultFailureLogCap,
		log:         log,
		recorder:    nopProbeRecorder{},
		now:         time.Now,
		failures:    make(map[string]int, len(endpoints)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency < 0 {
		m.concurrency = 0
	}
	return m
}

// Endpoints returns the configured endpoints.
func (m *Monitor) Endpoints() []domain.ServiceEndpoint {
	return append([]domain.ServiceEndpoint(nil), m.endpoints...)
}

// CheckAll probes every endpoint concurrently and returns one status per
// endpoint, in configuration order. A slow or failing endpoint never
// delays the others beyond its own timeout.
func (m *Monitor) CheckAll(ctx context.Context) []domain.ServiceHealthStatus {
	results := make([]domain.ServiceHealthStatus, len(m.endpoints))

	var g errgroup.Group
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for i, ep := range m.endpoints {
		g.Go(func() error {
			start := time.Now()
			results[i] = m.probe(ctx, ep)
			m.recorder.ObserveProbe(ep.Name, results[i].Reachable, time.Since(start))
			return nil
		})
	}
	_ = g.Wait() // probes report failure as data

	m.record(results)
	return append([]domain.ServiceHealthStatus(nil), results...)
}

// Statuses returns the results of the last CheckAll.
func (m *Monitor) Statuses() []domain.ServiceHealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ServiceHealthStatus(nil), m.statuses...)
}

// LastCheck returns when CheckAll last completed, zero if never.
func (m *Monitor) LastCheck() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCheck
}

func (m *Monitor) probe(ctx context.Context, ep domain.ServiceEndpoint) domain.ServiceHealthStatus {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultProbeTimeout
	}

	var err error
	for attempt := 0; attempt <= ep.MaxRetries; attempt++ {
		if err = m.attempt(ctx, ep.URL, timeout); err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	status := domain.ServiceHealthStatus{
		Name:          ep.Name,
		Reachable:     err == nil,
		LastCheckedAt: m.now(),
	}
	if err != nil {
		status.LastError = err.Error()
	}
	return status
}

func (m *Monitor) attempt(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(probeQuery))
	if err != nil {
		return fmt.Errorf("failed to create probe: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// record stores results and logs transitions. Consecutive failure logs are
// capped per service and resume after the service recovers.
func (m *Monitor) record(results []domain.ServiceHealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range results {
		prev := m.failures[s.Name]
		if s.Reachable {
			if prev > 0 {
				m.log.Info("service recovered",
					logger.String("service", s.Name),
					logger.Int("failed_checks", prev))
			}
			delete(m.failures, s.Name)
			continue
		}

		n := prev + 1
		m.failures[s.Name] = n
		switch {
		case n < m.logCap:
			m.log.Warn("service unreachable",
				logger.String("service", s.Name),
				logger.Int("consecutive_failures", n),
				logger.String("error", s.LastError))
		case n == m.logCap:
			m.log.Warn("service unreachable, suppressing further logs until it recovers",
				logger.String("service", s.Name),
				logger.Int("consecutive_failures", n),
				logger.String("error", s.LastError))
		}
	}

	m.statuses = results
	m.lastCheck = m.now()
}
