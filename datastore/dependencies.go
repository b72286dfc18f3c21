package datastore

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/xcube-dev/xcube-gedidb/metric"
)

// Dependencies provides all external dependencies needed by store
// factories. Stores receive structured dependencies rather than
// individual fields so new dependencies don't churn factory signatures.
type Dependencies struct {
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	HTTPClient      *http.Client            // HTTP client for backend requests (can be nil)
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithStore returns a logger configured with store context
func (d *Dependencies) GetLoggerWithStore(storeName string) *slog.Logger {
	return d.GetLogger().With("store", storeName)
}

// GetHTTPClient returns the configured HTTP client or a client with a
// conservative default timeout.
func (d *Dependencies) GetHTTPClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
