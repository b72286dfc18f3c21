package datastore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// Info holds metadata about an available store type
type Info struct {
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Factory creates a store instance from raw JSON parameters and injected
// dependencies. The factory parses its own parameters and returns a fully
// initialized store. Network I/O belongs in the store's methods, not in
// the factory.
type Factory func(rawParams json.RawMessage, deps Dependencies) (DataStore, error)

// Registration holds the factory and metadata for a store type
type Registration struct {
	Name        string       `json:"name"`        // Store identifier (e.g., "gedi")
	Description string       `json:"description"` // Human-readable description
	Version     string       `json:"version"`     // Store version
	Schema      ParamsSchema `json:"schema"`      // Store parameter schema as static metadata
	Factory     Factory      `json:"-"`           // Factory function (not serializable)
}

// RegistrationConfig provides a clean API for store registration.
// It maps 1:1 to Registration struct fields.
type RegistrationConfig struct {
	Name        string       // Store identifier (e.g., "gedi")
	Factory     Factory      // Factory function to create store instances
	Schema      ParamsSchema // Parameter schema for validation and discovery
	Description string       // Human-readable description of the store
	Version     string       // Store version (semver recommended)
}

// Registry manages store factories. It provides thread-safe registration
// and lookup of stores by their string identifier.
type Registry struct {
	stores map[string]*Registration
	mu     sync.RWMutex
}

// NewRegistry creates a new empty store registry
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]*Registration),
	}
}

// RegisterStore registers a store factory under the given identifier.
// Returns an error if a store with the same identifier is already registered.
func (r *Registry) RegisterStore(name string, registration *Registration) error {
	if err := ValidateStoreName(name); err != nil {
		return errors.Wrap(err, "Registry", "RegisterStore", "store name validation")
	}
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterStore", "registration validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterStore", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		msg := fmt.Errorf("store '%s': %w", name, errors.ErrDuplicateStore)
		return errors.WrapInvalid(msg, "Registry", "RegisterStore", "duplicate store check")
	}

	r.stores[name] = registration
	return nil
}

// RegisterWithConfig registers a store from a RegistrationConfig
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	registration := &Registration{
		Name:        config.Name,
		Factory:     config.Factory,
		Schema:      config.Schema,
		Description: config.Description,
		Version:     config.Version,
	}

	return r.RegisterStore(config.Name, registration)
}

// NewStore creates a store instance by identifier. The raw parameters are
// security-validated and checked against the registered parameter schema
// before the factory runs.
func (r *Registry) NewStore(name string, rawParams json.RawMessage, deps Dependencies) (DataStore, error) {
	if err := ValidateStoreName(name); err != nil {
		return nil, errors.Wrap(err, "Registry", "NewStore", "store name validation")
	}
	if err := ValidateRawParams(rawParams); err != nil {
		return nil, errors.Wrap(err, "Registry", "NewStore", "params security validation")
	}

	r.mu.RLock()
	registration, exists := r.stores[name]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("'%s': %w", name, errors.ErrStoreNotRegistered)
		return nil, errors.WrapInvalid(msg, "Registry", "NewStore", "store lookup")
	}

	// Schema validation of the decoded params
	if len(rawParams) > 0 {
		var params map[string]any
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, errors.WrapInvalid(err, "Registry", "NewStore", "params decoding")
		}
		if verrs := ValidateParams(params, registration.Schema); len(verrs) > 0 {
			msg := fmt.Errorf("%w: %s", errors.ErrInvalidParams, verrs[0].Message)
			return nil, errors.WrapInvalid(msg, "Registry", "NewStore", "params schema validation")
		}
	}

	store, err := registration.Factory(rawParams, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "NewStore", "factory execution")
	}

	return store, nil
}

// StoreParamsSchema retrieves a store's parameter schema directly from its
// registration metadata, without instantiating the store.
func (r *Registry) StoreParamsSchema(name string) (ParamsSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.stores[name]
	if !exists {
		return ParamsSchema{}, errors.WrapInvalid(
			fmt.Errorf("'%s': %w", name, errors.ErrStoreNotRegistered),
			"Registry", "StoreParamsSchema", "store lookup")
	}

	return registration.Schema, nil
}

// HasStore reports whether a store is registered under the given identifier
func (r *Registry) HasStore(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.stores[name]
	return exists
}

// ListStores returns the identifiers of all registered stores, sorted
func (r *Registry) ListStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ListAvailable returns metadata about all registered store types
func (r *Registry) ListAvailable() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Info, len(r.stores))
	for name, registration := range r.stores {
		result[name] = Info{
			Description: registration.Description,
			Version:     registration.Version,
		}
	}

	return result
}
