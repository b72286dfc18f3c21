package gedi

import (
	"context"
	"encoding/json"

	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/errors"
)

// StoreName is the identifier the store is registered under.
const StoreName = "gedi"

// Version of the gedi store plugin.
const Version = "0.2.0"

// Register adds the gedi store to a registry under the "gedi" identifier.
func Register(registry *datastore.Registry) error {
	return registry.RegisterWithConfig(datastore.RegistrationConfig{
		Name:        StoreName,
		Description: "GEDI spaceborne lidar products from the gedidb archive",
		Version:     Version,
		Schema:      configSchema,
		Factory:     factory,
	})
}

// factory parses the raw store parameters and builds a Store. The
// background context scopes the store's internal caches; callers stop
// them through Close.
func factory(rawParams json.RawMessage, deps datastore.Dependencies) (datastore.DataStore, error) {
	var cfg Config
	if err := datastore.SafeUnmarshal(rawParams, &cfg); err != nil {
		return nil, errors.Wrap(err, "Store", "factory", "params parsing")
	}

	store, err := NewStore(context.Background(), cfg, deps)
	if err != nil {
		return nil, err
	}
	return store, nil
}
