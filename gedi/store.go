// Package gedi implements the "gedi" data store: a plugin exposing GEDI
// spaceborne lidar products (canopy structure and biomass) through the
// datastore contract, backed by the gedidb archive for data retrieval and
// NASA CMR for collection metadata.
package gedi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/gedidb"
	"github.com/xcube-dev/xcube-gedidb/metric"
)

// DataIDAll selects variables across all product levels in one open call.
const DataIDAll = "all"

// Open parameter defaults for nearest-shot queries.
const (
	DefaultNumShots = 10
	DefaultRadius   = 0.1
)

// productLevel describes one GEDI product level served by the store.
type productLevel struct {
	// ConceptID identifies the collection in the NASA CMR catalog.
	ConceptID string
	// CatalogLevel is the level tag used in the gedidb variable catalog.
	CatalogLevel string
	Description  string
}

// productLevels maps data IDs to their product level metadata.
var productLevels = map[string]productLevel{
	"L2A": {
		ConceptID:    "C2142771958-LPCLOUD",
		CatalogLevel: "level2A",
		Description:  "Elevation and relative height metrics",
	},
	"L2B": {
		ConceptID:    "C2142776747-LPCLOUD",
		CatalogLevel: "level2B",
		Description:  "Canopy cover and vertical profile metrics",
	},
	"L4A": {
		ConceptID:    "C2237824918-ORNL_CLOUD",
		CatalogLevel: "level4A",
		Description:  "Footprint level aboveground biomass density",
	},
	"L4C": {
		ConceptID:    "C3049900163-ORNL_CLOUD",
		CatalogLevel: "level4C",
		Description:  "Footprint level waveform structural complexity index",
	},
}

// Store is the "gedi" data store. It serves one data ID per product
// level plus the "all" pseudo-ID and opens datasets by querying the
// gedidb archive. Safe for concurrent use.
type Store struct {
	cfg      Config
	provider *gedidb.Provider
	cmr      *cmrClient
	logger   *slog.Logger
	metrics  *metric.Metrics
}

var _ datastore.DataStore = (*Store)(nil)

// NewStore creates a gedi store from a parsed configuration.
func NewStore(ctx context.Context, cfg Config, deps datastore.Dependencies) (*Store, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.GetLoggerWithStore(StoreName)
	httpClient := deps.GetHTTPClient()

	retryCfg := cfg.retryConfig()

	providerOpts := []gedidb.Option{
		gedidb.WithStorageType(cfg.StorageType),
		gedidb.WithBucket(cfg.Bucket),
		gedidb.WithBaseURL(cfg.URL),
		gedidb.WithHTTPClient(httpClient),
		gedidb.WithLogger(logger),
		gedidb.WithRetryConfig(retryCfg),
	}
	var metrics *metric.Metrics
	if deps.MetricsRegistry != nil {
		metrics = deps.MetricsRegistry.Metrics
		providerOpts = append(providerOpts, gedidb.WithMetrics(metrics))
	}

	provider, err := gedidb.NewProvider(ctx, providerOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "NewStore", "provider creation")
	}

	cmr, err := newCMRClient(ctx, cfg.CMRURL, httpClient, logger, retryCfg)
	if err != nil {
		_ = provider.Close()
		return nil, errors.Wrap(err, "Store", "NewStore", "CMR client creation")
	}

	return &Store{
		cfg:      cfg,
		provider: provider,
		cmr:      cmr,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// countOp records one store operation and, on failure, its error class.
func (s *Store) countOp(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreOps.WithLabelValues(StoreName, operation).Inc()
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues(StoreName, operation, errors.Classify(err).String()).Inc()
	}
}

// Close releases the store's provider and metadata clients.
func (s *Store) Close() error {
	err := s.provider.Close()
	if cerr := s.cmr.Close(); err == nil {
		err = cerr
	}
	return err
}

// DataTypes returns the data types this store serves.
func (s *Store) DataTypes() []datastore.DataType {
	return []datastore.DataType{datastore.TypeDataset}
}

// DataIDs returns the product level IDs plus the "all" pseudo-ID.
func (s *Store) DataIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(productLevels)+1)
	for id := range productLevels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return append(ids, DataIDAll), nil
}

// HasData reports whether dataID names a known product level or "all".
func (s *Store) HasData(ctx context.Context, dataID string) (bool, error) {
	if dataID == DataIDAll {
		return true, nil
	}
	_, ok := productLevels[dataID]
	return ok, nil
}

// DescribeData returns the spatial and temporal coverage of a product
// level, resolved from the NASA CMR catalog. The "all" pseudo-ID has no
// collection of its own and cannot be described.
func (s *Store) DescribeData(ctx context.Context, dataID string) (_ *datastore.DataDescriptor, err error) {
	defer func() { s.countOp("describe", err) }()

	if dataID == DataIDAll {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q is a placeholder without collection metadata", errors.ErrInvalidParams, DataIDAll),
			"Store", "DescribeData", "data ID check")
	}
	level, ok := productLevels[dataID]
	if !ok {
		return nil, unknownDataID("DescribeData", dataID)
	}

	meta, err := s.cmr.CollectionMetadata(ctx, level.ConceptID)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "DescribeData", "metadata lookup")
	}

	return &datastore.DataDescriptor{
		DataID:    dataID,
		DataType:  datastore.TypeDataset,
		BBox:      meta.BBox[:],
		TimeRange: meta.TimeRange,
		Attrs: map[string]string{
			"description": level.Description,
			"concept_id":  level.ConceptID,
		},
	}, nil
}

// OpenDataParamsSchema returns the open parameter schema for a data ID:
// a required variables list, enumerated from the catalog for the level,
// plus either a bounding-box query or a nearest-shot query.
func (s *Store) OpenDataParamsSchema(ctx context.Context, dataID string) (datastore.ParamsSchema, error) {
	if dataID != DataIDAll {
		if _, err := s.levelFor("OpenDataParamsSchema", dataID); err != nil {
			return datastore.ParamsSchema{}, err
		}
	}

	names, err := s.catalogVariables(ctx, dataID)
	if err != nil {
		return datastore.ParamsSchema{}, errors.Wrap(err, "Store", "OpenDataParamsSchema", "catalog fetch")
	}

	schema := openParamsSchema
	props := make(map[string]datastore.PropertySchema, len(schema.Properties))
	for name, prop := range schema.Properties {
		props[name] = prop
	}
	variables := props["variables"]
	variables.Enum = names
	props["variables"] = variables
	schema.Properties = props
	return schema, nil
}

// openParamsSchema is the schema skeleton shared across data IDs;
// OpenDataParamsSchema fills the variables enum from the catalog, and
// membership is re-checked against the live catalog at open time.
var openParamsSchema = datastore.ParamsSchema{
	Properties: map[string]datastore.PropertySchema{
		"variables": {
			Type:        "array",
			Description: "Names of the variables to retrieve",
			MinItems:    intPtr(1),
		},
		"time_range": {
			Type:        "array",
			Description: "Start and end time as ISO dates",
			MinItems:    intPtr(2),
			MaxItems:    intPtr(2),
		},
	},
	Required: []string{"variables"},
	OneOf: []datastore.ParamGroup{
		{
			Name: "bbox_query",
			Properties: map[string]datastore.PropertySchema{
				"bbox": {
					Type:        "array",
					Description: "Bounding box as [xmin ymin xmax ymax]",
					MinItems:    intPtr(4),
					MaxItems:    intPtr(4),
				},
			},
			Required: []string{"bbox"},
		},
		{
			Name: "nearest_query",
			Properties: map[string]datastore.PropertySchema{
				"point": {
					Type:        "array",
					Description: "Query point as [lon lat]",
					MinItems:    intPtr(2),
					MaxItems:    intPtr(2),
				},
				"num_shots": {
					Type:        "int",
					Description: "Number of nearest shots to return",
					Default:     DefaultNumShots,
					Minimum:     intPtr(1),
				},
				"radius": {
					Type:        "float",
					Description: "Search radius in degrees",
					Default:     DefaultRadius,
				},
			},
			Required: []string{"point"},
		},
	},
}

// OpenData validates the open parameters, checks the requested variables
// against the catalog for the data ID, and dispatches either a
// bounding-box or a nearest-shot query to the archive. When both bbox
// and point are given, bbox takes precedence and the point parameters
// are ignored with a warning.
func (s *Store) OpenData(ctx context.Context, dataID string, params map[string]any) (_ *datastore.Dataset, err error) {
	defer func() { s.countOp("open", err) }()

	if ok, _ := s.HasData(ctx, dataID); !ok {
		return nil, unknownDataID("OpenData", dataID)
	}

	params = resolveGeometryConflict(params, s.logger)

	if verrs := datastore.ValidateParams(params, openParamsSchema); len(verrs) > 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidParams, verrs[0].Message),
			"Store", "OpenData", "params validation")
	}

	variables, err := toStringSlice("variables", params["variables"])
	if err != nil {
		return nil, err
	}
	if err := s.checkVariables(ctx, dataID, variables); err != nil {
		return nil, err
	}

	query := gedidb.Query{Variables: variables}

	if raw, ok := params["time_range"]; ok {
		timeRange, err := toStringSlice("time_range", raw)
		if err != nil {
			return nil, err
		}
		query.StartTime = timeRange[0]
		query.EndTime = timeRange[1]
	}

	if raw, ok := params["bbox"]; ok {
		bbox, err := toFloatSlice("bbox", raw)
		if err != nil {
			return nil, err
		}
		if query.StartTime == "" || query.EndTime == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: bounding-box queries require time_range", errors.ErrMissingParams),
				"Store", "OpenData", "time range check")
		}
		query.Type = gedidb.QueryBoundingBox
		query.Geometry = bboxToPolygon([4]float64{bbox[0], bbox[1], bbox[2], bbox[3]})
	} else {
		point, err := toFloatSlice("point", params["point"])
		if err != nil {
			return nil, err
		}
		numShots, err := intParam(params, "num_shots", DefaultNumShots)
		if err != nil {
			return nil, err
		}
		radius, err := floatParam(params, "radius", DefaultRadius)
		if err != nil {
			return nil, err
		}
		query.Type = gedidb.QueryNearest
		query.Point = [2]float64{point[0], point[1]}
		query.NumShots = numShots
		query.Radius = radius
	}

	s.logger.Info("opening dataset",
		"data_id", dataID,
		"query_type", query.Type,
		"variables", len(variables))

	ds, err := s.provider.GetData(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "OpenData", "data retrieval")
	}
	ds.Attrs["data_id"] = dataID
	return ds, nil
}

// SearchDataParamsSchema returns an empty schema: the store has no
// search capability.
func (s *Store) SearchDataParamsSchema() datastore.ParamsSchema {
	return datastore.ParamsSchema{Properties: map[string]datastore.PropertySchema{}}
}

// SearchData is not supported by this store.
func (s *Store) SearchData(ctx context.Context, params map[string]any) ([]*datastore.DataDescriptor, error) {
	return nil, errors.WrapInvalid(
		fmt.Errorf("%w: search is not available for GEDI products", errors.ErrNotSupported),
		"Store", "SearchData", "capability check")
}

// catalogVariables lists the catalog variable names visible to a data ID,
// sorted. Concrete level IDs restrict the catalog to that level; "all"
// sees every level.
func (s *Store) catalogVariables(ctx context.Context, dataID string) ([]string, error) {
	catalog, err := s.provider.AvailableVariables(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(catalog))
	for _, v := range catalog {
		if dataID == DataIDAll || matchesLevel(v.ProductLevel, dataID) {
			names = append(names, v.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// checkVariables verifies every requested variable exists in the catalog
// for the given data ID.
func (s *Store) checkVariables(ctx context.Context, dataID string, requested []string) error {
	names, err := s.catalogVariables(ctx, dataID)
	if err != nil {
		return errors.Wrap(err, "Store", "checkVariables", "catalog fetch")
	}

	available := make(map[string]bool, len(names))
	for _, name := range names {
		available[name] = true
	}

	for _, name := range requested {
		if !available[name] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %q is not available for %q", errors.ErrUnknownVariable, name, dataID),
				"Store", "checkVariables", "variable lookup")
		}
	}
	return nil
}

// matchesLevel reports whether a catalog product level tag belongs to a
// data ID, accepting both the short form ("L2A") and the catalog form
// ("level2A").
func matchesLevel(catalogLevel, dataID string) bool {
	level, ok := productLevels[dataID]
	if !ok {
		return false
	}
	return strings.EqualFold(catalogLevel, level.CatalogLevel) ||
		strings.EqualFold(catalogLevel, dataID)
}

// resolveGeometryConflict drops the nearest-query parameters when a bbox
// is also present, so a caller supplying both gets the bounding-box
// behavior instead of a validation failure.
func resolveGeometryConflict(params map[string]any, logger *slog.Logger) map[string]any {
	_, hasBBox := params["bbox"]
	_, hasPoint := params["point"]
	if !hasBBox || !hasPoint {
		return params
	}

	logger.Warn("both bbox and point given; using bbox and ignoring point parameters")

	resolved := make(map[string]any, len(params))
	for k, v := range params {
		switch k {
		case "point", "num_shots", "radius":
			continue
		}
		resolved[k] = v
	}
	return resolved
}

// levelFor resolves a concrete product level for a data ID.
func (s *Store) levelFor(method, dataID string) (productLevel, error) {
	level, ok := productLevels[dataID]
	if !ok {
		return productLevel{}, unknownDataID(method, dataID)
	}
	return level, nil
}

func unknownDataID(method, dataID string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %q", errors.ErrUnknownDataID, dataID),
		"Store", method, "data ID check")
}

func intPtr(n int) *int { return &n }
