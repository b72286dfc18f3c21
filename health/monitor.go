package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check reports the current status of one subsystem. Checks run on every
// health request, so they must be cheap and must not block on I/O.
type Check func() Status

// Monitor evaluates registered subsystem checks on demand.
type Monitor struct {
	mu      sync.RWMutex
	service string
	checks  map[string]Check
}

// NewMonitor creates a monitor for the named service.
func NewMonitor(service string) *Monitor {
	return &Monitor{
		service: service,
		checks:  make(map[string]Check),
	}
}

// Register adds or replaces the check for a subsystem.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Statuses evaluates all checks, ordered by subsystem name.
func (m *Monitor) Statuses() []Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make([]Check, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		checks = append(checks, m.checks[name])
	}
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(checks))
	for i, check := range checks {
		status := check()
		status.Component = names[i]
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Overall aggregates all subsystem checks into the service status.
func (m *Monitor) Overall() Status {
	return Aggregate(m.service, m.Statuses())
}

type report struct {
	Status     Status   `json:"status"`
	Subsystems []Status `json:"subsystems"`
}

// Handler serves the health report as JSON. A healthy or degraded
// service answers 200; an unhealthy one answers 503 so load balancers
// can pull it from rotation.
func (m *Monitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		subsystems := m.Statuses()
		rep := report{
			Status:     Aggregate(m.service, subsystems),
			Subsystems: subsystems,
		}

		code := http.StatusOK
		if rep.Status.State == StateUnhealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(rep)
	})
}
