package datastore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// stubStore is a no-op DataStore for registry tests.
type stubStore struct {
	bucket string
}

func (s *stubStore) DataTypes() []DataType { return []DataType{TypeDataset} }
func (s *stubStore) DataIDs(ctx context.Context) ([]string, error) {
	return []string{"A"}, nil
}
func (s *stubStore) HasData(ctx context.Context, dataID string) (bool, error) {
	return dataID == "A", nil
}
func (s *stubStore) DescribeData(ctx context.Context, dataID string) (*DataDescriptor, error) {
	return &DataDescriptor{DataID: dataID, DataType: TypeDataset}, nil
}
func (s *stubStore) OpenDataParamsSchema(ctx context.Context, dataID string) (ParamsSchema, error) {
	return ParamsSchema{}, nil
}
func (s *stubStore) OpenData(ctx context.Context, dataID string, params map[string]any) (*Dataset, error) {
	return NewDataset(), nil
}
func (s *stubStore) SearchDataParamsSchema() ParamsSchema { return ParamsSchema{} }
func (s *stubStore) SearchData(ctx context.Context, params map[string]any) ([]*DataDescriptor, error) {
	return nil, errors.ErrNotSupported
}

func stubRegistration() *Registration {
	return &Registration{
		Name:        "stub",
		Description: "stub store",
		Version:     "1.0.0",
		Schema: ParamsSchema{
			Properties: map[string]PropertySchema{
				"bucket": {Type: "string", Description: "bucket name"},
			},
		},
		Factory: func(rawParams json.RawMessage, deps Dependencies) (DataStore, error) {
			var cfg struct {
				Bucket string `json:"bucket"`
			}
			if err := SafeUnmarshal(rawParams, &cfg); err != nil {
				return nil, err
			}
			return &stubStore{bucket: cfg.Bucket}, nil
		},
	}
}

func TestRegisterStore(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.RegisterStore("stub", stubRegistration()))
	assert.True(t, registry.HasStore("stub"))
	assert.Equal(t, []string{"stub"}, registry.ListStores())
}

func TestRegisterStore_Duplicate(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterStore("stub", stubRegistration()))

	err := registry.RegisterStore("stub", stubRegistration())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateStore)
}

func TestRegisterStore_Invalid(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.RegisterStore("", stubRegistration()))
	assert.Error(t, registry.RegisterStore("bad name", stubRegistration()))
	assert.Error(t, registry.RegisterStore("stub", nil))

	noFactory := stubRegistration()
	noFactory.Factory = nil
	assert.Error(t, registry.RegisterStore("stub", noFactory))
}

func TestRegisterWithConfig(t *testing.T) {
	registry := NewRegistry()
	reg := stubRegistration()

	err := registry.RegisterWithConfig(RegistrationConfig{
		Name:        "stub",
		Factory:     reg.Factory,
		Schema:      reg.Schema,
		Description: "stub store",
		Version:     "1.0.0",
	})
	require.NoError(t, err)

	available := registry.ListAvailable()
	require.Contains(t, available, "stub")
	assert.Equal(t, "stub store", available["stub"].Description)
	assert.Equal(t, "1.0.0", available["stub"].Version)
}

func TestNewStore(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterStore("stub", stubRegistration()))

	store, err := registry.NewStore("stub", []byte(`{"bucket": "b1"}`), Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "b1", store.(*stubStore).bucket)
}

func TestNewStore_EmptyParams(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterStore("stub", stubRegistration()))

	_, err := registry.NewStore("stub", nil, Dependencies{})
	assert.NoError(t, err)
}

func TestNewStore_NotRegistered(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.NewStore("missing", nil, Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreNotRegistered)
}

func TestNewStore_SchemaValidation(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterStore("stub", stubRegistration()))

	// bucket must be a string per the registered schema.
	_, err := registry.NewStore("stub", []byte(`{"bucket": 42}`), Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidParams)

	// Unknown params are rejected.
	_, err = registry.NewStore("stub", []byte(`{"region": "eu"}`), Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestStoreParamsSchema(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterStore("stub", stubRegistration()))

	schema, err := registry.StoreParamsSchema("stub")
	require.NoError(t, err)
	assert.Contains(t, schema.Properties, "bucket")

	_, err = registry.StoreParamsSchema("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreNotRegistered)
}

func TestListStores_Sorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg := stubRegistration()
		reg.Name = name
		require.NoError(t, registry.RegisterStore(name, reg))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, registry.ListStores())
}
