// Package gateway serves a registered data store to other processes over
// NATS request/reply. Each store operation maps to one subject
// (store.<name>.catalog, .describe, .open, .search); requests and replies
// are JSON. Describe replies can be cached in a shared JetStream KV
// bucket so repeated metadata lookups do not re-hit the upstream catalog.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/metric"
	"github.com/xcube-dev/xcube-gedidb/natsclient"
)

// Operation names, used in subjects and metric labels.
const (
	OpCatalog  = "catalog"
	OpDescribe = "describe"
	OpOpen     = "open"
	OpSearch   = "search"
)

// DefaultQueueGroup is the queue group gateway instances subscribe under,
// so replicas share the request load.
const DefaultQueueGroup = "gateway"

// Config holds the gateway settings.
type Config struct {
	// StoreName is the registered store identifier the subjects are
	// derived from.
	StoreName string
	// QueueGroup for the subscriptions; defaults to DefaultQueueGroup.
	QueueGroup string
	// CacheBucket names the JetStream KV bucket for describe replies.
	// Empty disables the shared cache.
	CacheBucket string
	// CacheTTL is the per-entry TTL of the describe cache.
	CacheTTL time.Duration
}

// Validate checks the gateway configuration.
func (c *Config) Validate() error {
	if c.StoreName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Gateway", "Validate", "store name check")
	}
	if err := datastore.ValidateStoreName(c.StoreName); err != nil {
		return err
	}
	if c.CacheBucket != "" && c.CacheTTL <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cache bucket set without a TTL", errors.ErrInvalidConfig),
			"Gateway", "Validate", "cache config check")
	}
	return nil
}

// descriptorCache is the slice of the KV bucket API the describe cache
// needs; *natsclient.KVStore satisfies it.
type descriptorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

var _ descriptorCache = (*natsclient.KVStore)(nil)

// Gateway exposes one data store over NATS request/reply.
type Gateway struct {
	config  Config
	store   datastore.DataStore
	client  *natsclient.Client
	cache   descriptorCache
	logger  *slog.Logger
	metrics *metric.Metrics

	running atomic.Bool

	mu        sync.RWMutex
	startTime time.Time

	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
}

// Option is a functional option for configuring the Gateway
type Option func(*Gateway)

// WithLogger sets a custom structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics enables per-operation request metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New creates a gateway for the given store.
func New(config Config, store datastore.DataStore, client *natsclient.Client, opts ...Option) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig,
			"Gateway", "New", "store is required")
	}
	if config.QueueGroup == "" {
		config.QueueGroup = DefaultQueueGroup
	}

	g := &Gateway{
		config: config,
		store:  store,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("gateway", config.StoreName)

	return g, nil
}

// Subject returns the full subject for an operation.
func (g *Gateway) Subject(operation string) string {
	return fmt.Sprintf("store.%s.%s", g.config.StoreName, operation)
}

// Start subscribes the request handlers and opens the describe cache
// bucket when configured. The context scopes in-flight request handling.
func (g *Gateway) Start(ctx context.Context) error {
	if g.running.Load() {
		return errors.WrapFatal(
			fmt.Errorf("gateway already running"),
			"Gateway", "Start", "state check")
	}
	if g.client == nil {
		return errors.WrapFatal(errors.ErrMissingConfig,
			"Gateway", "Start", "NATS client is required")
	}

	if g.config.CacheBucket != "" {
		cache, err := g.client.KeyValue(ctx, g.config.CacheBucket, g.config.CacheTTL)
		if err != nil {
			// The gateway stays functional without the shared cache.
			g.logger.Warn("describe cache unavailable", "bucket", g.config.CacheBucket, "error", err)
		} else {
			g.cache = cache
		}
	}

	handlers := map[string]natsclient.Handler{
		OpCatalog:  g.handleCatalog,
		OpDescribe: g.handleDescribe,
		OpOpen:     g.handleOpen,
		OpSearch:   g.handleSearch,
	}
	for op, handler := range handlers {
		if err := g.client.Serve(ctx, g.Subject(op), g.config.QueueGroup, handler); err != nil {
			return errors.Wrap(err, "Gateway", "Start", "subject subscription")
		}
	}

	g.mu.Lock()
	g.running.Store(true)
	g.startTime = time.Now()
	g.mu.Unlock()

	g.logger.Info("gateway started",
		"subjects", fmt.Sprintf("store.%s.{catalog,describe,open,search}", g.config.StoreName),
		"queue", g.config.QueueGroup)

	return nil
}

// Stop marks the gateway as stopped. Subscriptions are drained by the
// NATS client on Close.
func (g *Gateway) Stop() {
	g.running.Store(false)
	g.logger.Info("gateway stopped")
}

// Health is a point-in-time snapshot of the gateway state.
type Health struct {
	Running        bool          `json:"running"`
	Uptime         time.Duration `json:"uptime"`
	RequestsTotal  uint64        `json:"requests_total"`
	RequestsFailed uint64        `json:"requests_failed"`
	NATSHealthy    bool          `json:"nats_healthy"`
}

// GetHealth returns the gateway health snapshot.
func (g *Gateway) GetHealth() Health {
	g.mu.RLock()
	startTime := g.startTime
	g.mu.RUnlock()

	health := Health{
		Running:        g.running.Load(),
		RequestsTotal:  g.requestsTotal.Load(),
		RequestsFailed: g.requestsFailed.Load(),
	}
	if health.Running {
		health.Uptime = time.Since(startTime)
	}
	if g.client != nil {
		health.NATSHealthy = g.client.IsHealthy()
	}
	return health
}

// observe records one handled request.
func (g *Gateway) observe(operation, status string, start time.Time) {
	g.requestsTotal.Add(1)
	if status != "ok" {
		g.requestsFailed.Add(1)
	}
	if g.metrics == nil {
		return
	}
	g.metrics.GatewayRequests.WithLabelValues(operation, status).Inc()
	g.metrics.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
