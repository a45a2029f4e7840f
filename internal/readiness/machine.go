// Package readiness tracks whether the gateway can serve data plane traffic.
package readiness

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/portico/internal/compose"
	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

// State is the gateway lifecycle state reported by /health/detailed.
type State string

const (
	StateUnstarted       State = "unstarted"
	StateStarting        State = "starting"
	StateDegraded        State = "degraded"
	StateReady           State = "ready"
	StateFailedTransient State = "failed_transient"
)

// Snapshot is a consistent copy of the readiness aggregate.
type Snapshot struct {
	State           State
	SchemaReady     bool
	ServerStarted   bool
	Available       []string
	Unavailable     []string
	TotalConfigured int
	LastError       string
	ChangedAt       time.Time
}

// AllHealthy reports whether every configured service answered the last probe.
func (s Snapshot) AllHealthy() bool {
	return s.TotalConfigured > 0 && len(s.Unavailable) == 0
}

// PartiallyHealthy reports whether some but not all services are reachable.
func (s Snapshot) PartiallyHealthy() bool {
	return len(s.Available) > 0 && len(s.Unavailable) > 0
}

// ReadyForRequests reports whether the data plane can be served.
func (s Snapshot) ReadyForRequests() bool {
	return s.SchemaReady && s.ServerStarted
}

// Machine owns the readiness aggregate. All writes go through its methods.
//
// FailedTransient is terminal: once reached, the error is delivered on Fatal
// and every later event is ignored.
type Machine struct {
	log logger.Logger
	now func() time.Time

	mu          sync.RWMutex
	state       State
	schemaReady bool
	started     bool
	available   []string
	unavailable []string
	total       int
	lastErr     string
	changedAt   time.Time

	fatal     chan error
	fatalOnce sync.Once
}

// NewMachine creates a machine for totalConfigured services, in StateUnstarted.
func NewMachine(totalConfigured int, log logger.Logger) *Machine {
	return &Machine{
		log:         log,
		now:         time.Now,
		state:       StateUnstarted,
		available:   []string{},
		unavailable: []string{},
		total:       totalConfigured,
		fatal:       make(chan error, 1),
	}
}

// Fatal delivers exactly one error when the machine enters FailedTransient.
func (m *Machine) Fatal() <-chan error {
	return m.fatal
}

// Begin moves Unstarted to Starting.
func (m *Machine) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnstarted {
		return
	}
	m.transitionLocked(StateStarting)
}

// SchemaComposed records a successful (re)composition.
func (m *Machine) SchemaComposed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFailedTransient {
		return
	}
	m.schemaReady = true
	m.lastErr = ""
	if m.state != StateReady {
		m.transitionLocked(StateReady)
	}
}

// CompositionFailed records a failed composition. Connectivity failures
// degrade the gateway; anything else is fatal.
func (m *Machine) CompositionFailed(err error) {
	if err == nil {
		return
	}

	m.mu.Lock()
	if m.state == StateFailedTransient {
		m.mu.Unlock()
		return
	}
	m.schemaReady = false
	m.lastErr = err.Error()

	if compose.IsConnectivityError(err) {
		if m.state != StateDegraded {
			m.transitionLocked(StateDegraded)
		}
		m.mu.Unlock()
		return
	}

	m.transitionLocked(StateFailedTransient)
	m.mu.Unlock()

	m.fatalOnce.Do(func() {
		m.log.Error("fatal composition error, restart required", logger.Error(err))
		m.fatal <- err
	})
}

// ServerStarted records that the HTTP listener is accepting connections.
func (m *Machine) ServerStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

// UpdateServices replaces the available and unavailable sets.
func (m *Machine) UpdateServices(statuses []domain.ServiceHealthStatus) {
	available, unavailable := domain.SplitByReachability(statuses)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFailedTransient {
		return
	}
	m.available = available
	m.unavailable = unavailable
}

// Snapshot returns a copy safe to read without locking.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:           m.state,
		SchemaReady:     m.schemaReady,
		ServerStarted:   m.started,
		Available:       append([]string{}, m.available...),
		Unavailable:     append([]string{}, m.unavailable...),
		TotalConfigured: m.total,
		LastError:       m.lastErr,
		ChangedAt:       m.changedAt,
	}
}

func (m *Machine) transitionLocked(to State) {
	from := m.state
	m.state = to
	m.changedAt = m.now()
	m.log.Info("readiness state changed",
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.Bool("schema_ready", m.schemaReady))
}
