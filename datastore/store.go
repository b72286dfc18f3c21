// Package datastore defines the data store contract and registration
// machinery for dataset plugins: named stores that can list, describe,
// and open datasets from a remote backend.
package datastore

import (
	"context"
)

// DataType identifies the kind of data object a store returns.
type DataType string

const (
	// TypeDataset is the in-memory labeled-array dataset type.
	TypeDataset DataType = "dataset"
)

// DataStore is the interface every registered store implements. A store
// exposes a catalog of data IDs and opens datasets from its backend.
//
// Implementations must be safe for concurrent use.
type DataStore interface {
	// DataTypes returns the data types this store can serve.
	DataTypes() []DataType

	// DataIDs returns the identifiers of all datasets in the store's catalog.
	DataIDs(ctx context.Context) ([]string, error)

	// HasData reports whether the store's catalog contains dataID.
	HasData(ctx context.Context, dataID string) (bool, error)

	// DescribeData returns metadata (spatial extent, temporal coverage)
	// for the given data ID.
	DescribeData(ctx context.Context, dataID string) (*DataDescriptor, error)

	// OpenDataParamsSchema returns the parameter schema accepted by
	// OpenData for the given data ID. Building the schema may consult the
	// store's backend catalog, for example to enumerate valid variable
	// names.
	OpenDataParamsSchema(ctx context.Context, dataID string) (ParamsSchema, error)

	// OpenData retrieves a dataset. The params are validated against the
	// schema returned by OpenDataParamsSchema before any backend request.
	OpenData(ctx context.Context, dataID string, params map[string]any) (*Dataset, error)

	// SearchDataParamsSchema returns the parameter schema accepted by SearchData.
	SearchDataParamsSchema() ParamsSchema

	// SearchData searches the catalog for datasets matching the given
	// parameters. Stores without search support return ErrNotSupported.
	SearchData(ctx context.Context, params map[string]any) ([]*DataDescriptor, error)
}

// DataDescriptor holds discovery metadata for a single dataset.
type DataDescriptor struct {
	DataID    string            `json:"data_id"`
	DataType  DataType          `json:"data_type"`
	BBox      []float64         `json:"bbox,omitempty"`       // [xmin, ymin, xmax, ymax]
	TimeRange [2]string         `json:"time_range,omitempty"` // [start, end], ISO timestamps
	Attrs     map[string]string `json:"attrs,omitempty"`
}
