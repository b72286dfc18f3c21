package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	healthy := Healthy("nats", "connected")
	assert.Equal(t, StateHealthy, healthy.State)
	assert.True(t, healthy.Healthy())
	assert.False(t, healthy.Timestamp.IsZero())

	degraded := Degraded("gateway", "cache unavailable")
	assert.Equal(t, StateDegraded, degraded.State)
	assert.False(t, degraded.Healthy())

	unhealthy := Unhealthy("provider", "catalog fetch failed")
	assert.Equal(t, StateUnhealthy, unhealthy.State)
	assert.False(t, unhealthy.Healthy())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"http url",
			"request to https://s3.gfz-potsdam.de/api/v1/query failed",
			"request to [endpoint] failed",
		},
		{
			"nats url",
			"dial nats://broker:4222 refused",
			"dial [endpoint] refused",
		},
		{
			"ip address with port",
			"connect 10.0.0.5:4222 timed out",
			"connect [address] timed out",
		},
		{
			"credential",
			"auth failed: token=abc123 rejected",
			"auth failed: token=[redacted] rejected",
		},
		{
			"plain message untouched",
			"catalog is empty",
			"catalog is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestAggregate(t *testing.T) {
	t.Run("empty is healthy", func(t *testing.T) {
		status := Aggregate("gedistored", nil)
		assert.Equal(t, StateHealthy, status.State)
	})

	t.Run("all healthy", func(t *testing.T) {
		status := Aggregate("gedistored", []Status{
			Healthy("nats", "connected"),
			Healthy("gateway", "running"),
		})
		assert.Equal(t, StateHealthy, status.State)
	})

	t.Run("degraded wins over healthy", func(t *testing.T) {
		status := Aggregate("gedistored", []Status{
			Healthy("nats", "connected"),
			Degraded("gateway", "cache unavailable"),
		})
		assert.Equal(t, StateDegraded, status.State)
		assert.Contains(t, status.Message, "gateway")
	})

	t.Run("unhealthy wins over degraded", func(t *testing.T) {
		status := Aggregate("gedistored", []Status{
			Degraded("gateway", "cache unavailable"),
			Unhealthy("nats", "disconnected"),
		})
		assert.Equal(t, StateUnhealthy, status.State)
		assert.Contains(t, status.Message, "nats")
	})
}

func TestMonitorStatuses(t *testing.T) {
	monitor := NewMonitor("gedistored")
	monitor.Register("nats", func() Status { return Healthy("", "connected") })
	monitor.Register("gateway", func() Status { return Degraded("", "cache unavailable") })

	statuses := monitor.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "gateway", statuses[0].Component)
	assert.Equal(t, "nats", statuses[1].Component)

	overall := monitor.Overall()
	assert.Equal(t, StateDegraded, overall.State)
}

func TestMonitorRegisterReplaces(t *testing.T) {
	monitor := NewMonitor("gedistored")
	monitor.Register("nats", func() Status { return Unhealthy("", "disconnected") })
	monitor.Register("nats", func() Status { return Healthy("", "reconnected") })

	statuses := monitor.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, StateHealthy, statuses[0].State)
}

func TestMonitorHandler(t *testing.T) {
	monitor := NewMonitor("gedistored")
	monitor.Register("nats", func() Status { return Healthy("", "connected") })

	rec := httptest.NewRecorder()
	monitor.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rep struct {
		Status     Status   `json:"status"`
		Subsystems []Status `json:"subsystems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, StateHealthy, rep.Status.State)
	require.Len(t, rep.Subsystems, 1)
	assert.Equal(t, "nats", rep.Subsystems[0].Component)
}

func TestMonitorHandlerUnhealthy(t *testing.T) {
	monitor := NewMonitor("gedistored")
	monitor.Register("nats", func() Status { return Unhealthy("", "disconnected") })

	rec := httptest.NewRecorder()
	monitor.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
