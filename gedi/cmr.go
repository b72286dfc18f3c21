package gedi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/pkg/cache"
	"github.com/xcube-dev/xcube-gedidb/pkg/retry"
)

// DefaultCMRURL is the NASA Common Metadata Repository collection search
// endpoint used to resolve product-level spatial and temporal coverage.
const DefaultCMRURL = "https://cmr.earthdata.nasa.gov/search/collections.json"

const cmrCacheTTL = time.Hour

// collectionMetadata is the coverage extracted from one CMR collection.
type collectionMetadata struct {
	// BBox is [xmin, ymin, xmax, ymax] in WGS84 degrees.
	BBox [4]float64
	// TimeRange is [start, end] as ISO timestamps.
	TimeRange [2]string
}

// cmrClient fetches collection metadata from the CMR endpoint by concept
// ID, with retry and a TTL cache per concept ID.
type cmrClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	retryCfg   retry.Config
	metadata   cache.Cache[collectionMetadata]
}

func newCMRClient(ctx context.Context, url string, httpClient *http.Client, logger *slog.Logger, retryCfg retry.Config) (*cmrClient, error) {
	metadata, err := cache.NewTTL[collectionMetadata](ctx, cmrCacheTTL, 5*time.Minute)
	if err != nil {
		return nil, errors.Wrap(err, "cmrClient", "newCMRClient", "metadata cache creation")
	}
	return &cmrClient{
		url:        url,
		httpClient: httpClient,
		logger:     logger,
		retryCfg:   retryCfg,
		metadata:   metadata,
	}, nil
}

func (c *cmrClient) Close() error {
	return c.metadata.Close()
}

// CollectionMetadata returns spatial and temporal coverage for a CMR
// concept ID.
func (c *cmrClient) CollectionMetadata(ctx context.Context, conceptID string) (collectionMetadata, error) {
	if meta, ok := c.metadata.Get(conceptID); ok {
		return meta, nil
	}

	url := fmt.Sprintf("%s?concept_id=%s", c.url, conceptID)

	body, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]byte, error) {
		return c.fetch(ctx, url)
	})
	if err != nil {
		return collectionMetadata{}, errors.Wrap(err, "cmrClient", "CollectionMetadata", "collection fetch")
	}

	meta, err := parseCollectionResponse(body)
	if err != nil {
		return collectionMetadata{}, errors.Wrap(err, "cmrClient", "CollectionMetadata", "response parsing")
	}

	if _, err := c.metadata.Set(conceptID, meta); err != nil {
		c.logger.Warn("failed to cache collection metadata", "concept_id", conceptID, "error", err)
	}

	return meta, nil
}

// fetch performs one GET against the CMR endpoint. Server-side failures
// are retryable, client-side failures are not.
func (c *cmrClient) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.NonRetryable(
			errors.WrapInvalid(err, "cmrClient", "fetch", "request creation"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "cmrClient", "fetch", "request execution")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(err, "cmrClient", "fetch", "response read")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: HTTP %d", errors.ErrProviderUnavailable, resp.StatusCode),
			"cmrClient", "fetch", "metadata request")
	default:
		return nil, retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("%w: HTTP %d", errors.ErrRequestFailed, resp.StatusCode),
			"cmrClient", "fetch", "metadata request"))
	}
}

// parseCollectionResponse extracts coverage from a CMR collection search
// response. CMR boxes are "south west north east"; the bbox is reordered
// to [xmin, ymin, xmax, ymax].
func parseCollectionResponse(body []byte) (collectionMetadata, error) {
	var response struct {
		Feed struct {
			Entry []struct {
				Boxes     []string `json:"boxes"`
				TimeStart string   `json:"time_start"`
				TimeEnd   string   `json:"time_end"`
			} `json:"entry"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return collectionMetadata{}, errors.WrapInvalid(
			err, "cmrClient", "parseCollectionResponse", "JSON decoding")
	}

	if len(response.Feed.Entry) == 0 {
		return collectionMetadata{}, errors.WrapInvalid(
			errors.ErrNoMetadata, "cmrClient", "parseCollectionResponse", "entry lookup")
	}
	entry := response.Feed.Entry[0]

	if len(entry.Boxes) == 0 {
		return collectionMetadata{}, errors.WrapInvalid(
			fmt.Errorf("%w: collection has no bounding box", errors.ErrNoMetadata),
			"cmrClient", "parseCollectionResponse", "box lookup")
	}

	fields := strings.Fields(entry.Boxes[0])
	if len(fields) != 4 {
		return collectionMetadata{}, errors.WrapInvalid(
			fmt.Errorf("%w: malformed box %q", errors.ErrParsingFailed, entry.Boxes[0]),
			"cmrClient", "parseCollectionResponse", "box parsing")
	}

	var swne [4]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return collectionMetadata{}, errors.WrapInvalid(
				fmt.Errorf("%w: malformed box %q", errors.ErrParsingFailed, entry.Boxes[0]),
				"cmrClient", "parseCollectionResponse", "box parsing")
		}
		swne[i] = v
	}

	return collectionMetadata{
		BBox:      [4]float64{swne[1], swne[0], swne[3], swne[2]},
		TimeRange: [2]string{entry.TimeStart, entry.TimeEnd},
	}, nil
}
