// Package health tracks the liveness of the daemon's subsystems (store
// provider, NATS connection, gateway) and serves an aggregate report over
// HTTP alongside the metrics endpoint.
package health

import (
	"regexp"
	"time"
)

// Component states, from best to worst.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status messages may embed upstream error text. These patterns strip
// endpoints and credentials before the text leaves the process.
var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?::\d{2,5})?\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)\s*[:=]\s*[^,\s}]+`)
)

// Status is the health of one subsystem at a point in time.
type Status struct {
	Component string         `json:"component"`
	State     string         `json:"state"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Healthy reports whether the subsystem is fully operational.
func (s Status) Healthy() bool {
	return s.State == StateHealthy
}

// WithDetails returns a copy of the status carrying extra fields.
func (s Status) WithDetails(details map[string]any) Status {
	s.Details = details
	return s
}

// Healthy creates a healthy status for a subsystem.
func Healthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// Degraded creates a degraded status: the subsystem works but with
// reduced capability, such as a gateway running without its cache.
func Degraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// Unhealthy creates an unhealthy status for a subsystem.
func Unhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		State:     state,
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// Sanitize removes endpoints, addresses, and credentials from a message so
// error text can be exposed on the health endpoint without leaking
// deployment details.
func Sanitize(message string) string {
	message = credentialRegex.ReplaceAllString(message, "$1=[redacted]")
	message = urlRegex.ReplaceAllString(message, "[endpoint]")
	message = ipAddrRegex.ReplaceAllString(message, "[address]")
	return message
}

// Aggregate folds subsystem statuses into one overall status. Any
// unhealthy subsystem makes the aggregate unhealthy; otherwise any
// degraded subsystem makes it degraded.
func Aggregate(component string, statuses []Status) Status {
	if len(statuses) == 0 {
		return Healthy(component, "no subsystems registered")
	}

	state := StateHealthy
	message := "all subsystems healthy"
	for _, s := range statuses {
		switch s.State {
		case StateUnhealthy:
			return newStatus(component, StateUnhealthy, s.Component+": "+s.Message)
		case StateDegraded:
			if state == StateHealthy {
				state = StateDegraded
				message = s.Component + ": " + s.Message
			}
		}
	}
	return newStatus(component, state, message)
}
