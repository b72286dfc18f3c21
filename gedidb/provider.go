// Package gedidb is a client for the gedidb observation database service,
// which serves processed GEDI lidar granules from TileDB arrays behind an
// S3-compatible endpoint. It mirrors the upstream GEDIProvider API surface:
// a variable catalog per product level and bounding-box or nearest-shot
// data queries.
package gedidb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	pkgerrors "github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/metric"
	"github.com/xcube-dev/xcube-gedidb/pkg/cache"
	"github.com/xcube-dev/xcube-gedidb/pkg/retry"
)

// Default provider endpoints. The GEDI TileDB archive is hosted on the
// GFZ Potsdam S3 service.
const (
	DefaultStorageType = "s3"
	DefaultBucket      = "dog.gedidb.org"
	DefaultBaseURL     = "https://s3.gfz-potsdam.de"

	variablesPath = "/api/v1/variables"
	queryPath     = "/api/v1/query"

	catalogCacheKey = "variables"
	catalogCacheTTL = 15 * time.Minute
)

// Variable describes one retrievable variable in the gedidb catalog.
type Variable struct {
	Name         string `json:"name"`
	ProductLevel string `json:"product_level"`
	Description  string `json:"description"`
	Units        string `json:"units,omitempty"`
}

// Provider is a client for the gedidb service. It is safe for
// concurrent use.
type Provider struct {
	storageType string
	bucket      string
	baseURL     string

	httpClient *http.Client
	logger     *slog.Logger
	retryCfg   retry.Config
	metrics    *metric.Metrics

	catalog cache.Cache[[]Variable]
}

// Option is a functional option for configuring the Provider
type Option func(*Provider) error

// WithStorageType sets the storage backend type (default "s3")
func WithStorageType(storageType string) Option {
	return func(p *Provider) error {
		if storageType != "s3" && storageType != "local" {
			return pkgerrors.WrapInvalid(
				fmt.Errorf("unknown storage type %q", storageType),
				"Provider", "WithStorageType", "storage type validation")
		}
		p.storageType = storageType
		return nil
	}
}

// WithBucket sets the S3 bucket name holding the TileDB arrays
func WithBucket(bucket string) Option {
	return func(p *Provider) error {
		p.bucket = bucket
		return nil
	}
}

// WithBaseURL sets the service base URL
func WithBaseURL(url string) Option {
	return func(p *Provider) error {
		if url == "" {
			return pkgerrors.WrapInvalid(
				pkgerrors.ErrInvalidConfig,
				"Provider", "WithBaseURL", "empty base URL")
		}
		p.baseURL = url
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) error {
		if client != nil {
			p.httpClient = client
		}
		return nil
	}
}

// WithLogger sets a custom structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithRetryConfig sets the retry policy for backend requests
func WithRetryConfig(cfg retry.Config) Option {
	return func(p *Provider) error {
		p.retryCfg = cfg
		return nil
	}
}

// WithMetrics enables provider request metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Provider) error {
		p.metrics = m
		return nil
	}
}

// NewProvider creates a gedidb client. The variable catalog is fetched
// lazily on first use and cached with a TTL.
func NewProvider(ctx context.Context, opts ...Option) (*Provider, error) {
	p := &Provider{
		storageType: DefaultStorageType,
		bucket:      DefaultBucket,
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      slog.Default(),
		retryCfg:    retry.DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	catalog, err := cache.NewTTL[[]Variable](ctx, catalogCacheTTL, time.Minute)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Provider", "NewProvider", "catalog cache creation")
	}
	p.catalog = catalog

	return p, nil
}

// Close releases provider resources.
func (p *Provider) Close() error {
	return p.catalog.Close()
}

// AvailableVariables returns the variable catalog of the gedidb archive.
// Results are cached; concurrent callers may trigger duplicate fetches
// but the catalog endpoint is cheap and idempotent.
func (p *Provider) AvailableVariables(ctx context.Context) ([]Variable, error) {
	if vars, ok := p.catalog.Get(catalogCacheKey); ok {
		p.countCache("catalog", true)
		return vars, nil
	}
	p.countCache("catalog", false)

	url := fmt.Sprintf("%s%s?bucket=%s", p.baseURL, variablesPath, p.bucket)

	var response struct {
		Variables []Variable `json:"variables"`
	}
	if err := p.getJSON(ctx, "variables", url, &response); err != nil {
		return nil, pkgerrors.Wrap(err, "Provider", "AvailableVariables", "catalog fetch")
	}

	if len(response.Variables) == 0 {
		return nil, pkgerrors.WrapInvalid(
			pkgerrors.ErrNoMetadata,
			"Provider", "AvailableVariables", "catalog decoding")
	}

	if _, err := p.catalog.Set(catalogCacheKey, response.Variables); err != nil {
		p.logger.Warn("failed to cache variable catalog", "error", err)
	}

	return response.Variables, nil
}

// getJSON performs a GET with retry and decodes the JSON response.
func (p *Provider) getJSON(ctx context.Context, endpoint, url string, out any) error {
	body, err := retry.DoWithResult(ctx, p.retryCfg, func() ([]byte, error) {
		return p.roundTrip(ctx, endpoint, http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.WrapInvalid(err, "Provider", "getJSON", "response decoding")
	}
	return nil
}

// postJSON performs a POST with retry and decodes the JSON response.
func (p *Provider) postJSON(ctx context.Context, endpoint, url string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.WrapInvalid(err, "Provider", "postJSON", "request encoding")
	}

	body, err := retry.DoWithResult(ctx, p.retryCfg, func() ([]byte, error) {
		return p.roundTrip(ctx, endpoint, http.MethodPost, url, encoded)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.WrapInvalid(err, "Provider", "postJSON", "response decoding")
	}
	return nil
}

// roundTrip executes one HTTP request and classifies the outcome: 5xx and
// 429 are retryable, other non-2xx responses are not.
func (p *Provider) roundTrip(ctx context.Context, endpoint, method, url string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, retry.NonRetryable(
			pkgerrors.WrapInvalid(err, "Provider", "roundTrip", "request creation"))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.observe(endpoint, "error", start)
		return nil, pkgerrors.WrapTransient(err, "Provider", "roundTrip", "request execution")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.observe(endpoint, "error", start)
		return nil, pkgerrors.WrapTransient(err, "Provider", "roundTrip", "response read")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p.observe(endpoint, "ok", start)
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		p.observe(endpoint, "rate_limited", start)
		return nil, pkgerrors.WrapTransient(
			pkgerrors.ErrRateLimited, "Provider", "roundTrip", "backend request")
	case resp.StatusCode >= 500:
		p.observe(endpoint, "error", start)
		return nil, pkgerrors.WrapTransient(
			fmt.Errorf("%w: HTTP %d", pkgerrors.ErrProviderUnavailable, resp.StatusCode),
			"Provider", "roundTrip", "backend request")
	default:
		p.observe(endpoint, "error", start)
		return nil, retry.NonRetryable(pkgerrors.WrapInvalid(
			fmt.Errorf("%w: HTTP %d", pkgerrors.ErrRequestFailed, resp.StatusCode),
			"Provider", "roundTrip", "backend request"))
	}
}

// observe records request metrics if metrics are enabled.
func (p *Provider) observe(endpoint, status string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.ProviderRequests.WithLabelValues(endpoint, status).Inc()
	p.metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// countCache records catalog cache effectiveness if metrics are enabled.
func (p *Provider) countCache(name string, hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.CacheHits.WithLabelValues(name).Inc()
	} else {
		p.metrics.CacheMisses.WithLabelValues(name).Inc()
	}
}
