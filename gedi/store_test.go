package gedi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/gedidb"
	"github.com/xcube-dev/xcube-gedidb/pkg/retry"
)

const catalogFixture = `{
	"variables": [
		{"name": "rh", "product_level": "level2A", "description": "Relative height metrics", "units": "m"},
		{"name": "cover", "product_level": "level2B", "description": "Total canopy cover"},
		{"name": "agbd", "product_level": "level4A", "description": "Aboveground biomass density", "units": "Mg/ha"},
		{"name": "wsci", "product_level": "level4C", "description": "Waveform structural complexity index"}
	]
}`

const shotsFixture = `{
	"shots": [
		{
			"shot_number": "29700110300295502",
			"latitude": 42.18,
			"longitude": 11.52,
			"time": "2020-06-15T10:30:00Z",
			"values": {"agbd": {"scalar": 120.5}}
		}
	]
}`

// newTestStore wires a store against fixture servers for both the gedidb
// archive and the CMR catalog.
func newTestStore(t *testing.T, provider, cmr http.Handler) *Store {
	t.Helper()

	providerServer := httptest.NewServer(provider)
	t.Cleanup(providerServer.Close)
	cmrServer := httptest.NewServer(cmr)
	t.Cleanup(cmrServer.Close)

	store, err := NewStore(context.Background(), Config{
		URL:         providerServer.URL,
		CMRURL:      cmrServer.URL,
		RetryPolicy: RetryPolicyQuick,
	}, datastore.Dependencies{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func fixtureProvider(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/variables", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogFixture))
	})
	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(shotsFixture))
	})
	return mux
}

func fixtureCMR(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cmrL4AFixture))
	})
}

func TestStore_DataIDs(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	ids, err := store.DataIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"L2A", "L2B", "L4A", "L4C", "all"}, ids)
}

func TestStore_HasData(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))
	ctx := context.Background()

	for _, id := range []string{"L2A", "L2B", "L4A", "L4C", "all"} {
		ok, err := store.HasData(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}

	ok, err := store.HasData(ctx, "L3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DescribeData(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	desc, err := store.DescribeData(context.Background(), "L4A")
	require.NoError(t, err)

	assert.Equal(t, "L4A", desc.DataID)
	assert.Equal(t, datastore.TypeDataset, desc.DataType)
	assert.Equal(t, []float64{-180.0, -53.0, 180.0, 55.7983}, desc.BBox)
	assert.Equal(t, [2]string{"2019-04-17T00:00:00.000Z", "2024-11-27T23:59:59.999Z"}, desc.TimeRange)
	assert.Equal(t, "C2237824918-ORNL_CLOUD", desc.Attrs["concept_id"])
}

func TestStore_DescribeData_RejectsAll(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	_, err := store.DescribeData(context.Background(), "all")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_DescribeData_UnknownID(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	_, err := store.DescribeData(context.Background(), "L5X")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownDataID)
}

func TestStore_OpenData_BBox(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	ds, err := store.OpenData(context.Background(), "L4A", map[string]any{
		"variables":  []any{"agbd"},
		"bbox":       []any{11.0, 42.0, 12.0, 43.0},
		"time_range": []any{"2020-06-01", "2020-06-30"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, ds.Dims[gedidb.DimShotNumber])
	assert.Equal(t, []float64{120.5}, ds.Vars["agbd"].Values)
	assert.Equal(t, "L4A", ds.Attrs["data_id"])
}

func TestStore_OpenData_Nearest(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	ds, err := store.OpenData(context.Background(), "L4A", map[string]any{
		"variables": []any{"agbd"},
		"point":     []any{11.5, 42.2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Dims[gedidb.DimShotNumber])
}

func TestStore_OpenData_AllLevels(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	// "all" accepts variables from different product levels in one call.
	_, err := store.OpenData(context.Background(), "all", map[string]any{
		"variables": []any{"rh", "agbd"},
		"point":     []any{11.5, 42.2},
	})
	require.NoError(t, err)
}

func TestStore_OpenData_VariableNotInLevel(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	// rh belongs to L2A, not L4A.
	_, err := store.OpenData(context.Background(), "L4A", map[string]any{
		"variables": []any{"rh"},
		"point":     []any{11.5, 42.2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownVariable)
}

func TestStore_OpenData_BBoxWinsOverPoint(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	ds, err := store.OpenData(context.Background(), "L4A", map[string]any{
		"variables":  []any{"agbd"},
		"bbox":       []any{11.0, 42.0, 12.0, 43.0},
		"time_range": []any{"2020-06-01", "2020-06-30"},
		"point":      []any{11.5, 42.2},
		"num_shots":  float64(5),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Dims[gedidb.DimShotNumber])
}

func TestStore_OpenData_InvalidParams(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing variables", map[string]any{
			"point": []any{11.5, 42.2},
		}},
		{"no geometry", map[string]any{
			"variables": []any{"agbd"},
		}},
		{"short bbox", map[string]any{
			"variables":  []any{"agbd"},
			"bbox":       []any{11.0, 42.0},
			"time_range": []any{"2020-06-01", "2020-06-30"},
		}},
		{"bbox without time range", map[string]any{
			"variables": []any{"agbd"},
			"bbox":      []any{11.0, 42.0, 12.0, 43.0},
		}},
		{"unknown parameter", map[string]any{
			"variables": []any{"agbd"},
			"point":     []any{11.5, 42.2},
			"spline":    true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.OpenData(ctx, "L4A", tt.params)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestStore_SearchData_NotSupported(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	_, err := store.SearchData(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotSupported)
}

func TestStore_OpenDataParamsSchema(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))
	ctx := context.Background()

	schema, err := store.OpenDataParamsSchema(ctx, "L2A")
	require.NoError(t, err)
	assert.Contains(t, schema.Required, "variables")
	require.Len(t, schema.OneOf, 2)

	// The variables enum lists only the level's catalog variables.
	assert.Equal(t, []string{"rh"}, schema.Properties["variables"].Enum)

	schema, err = store.OpenDataParamsSchema(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"agbd", "cover", "rh", "wsci"}, schema.Properties["variables"].Enum)

	_, err = store.OpenDataParamsSchema(ctx, "L5X")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownDataID)
}

func TestStore_OpenDataParamsSchema_EnumPerLevel(t *testing.T) {
	store := newTestStore(t, fixtureProvider(t), fixtureCMR(t))

	for dataID, want := range map[string][]string{
		"L2B": {"cover"},
		"L4A": {"agbd"},
		"L4C": {"wsci"},
	} {
		schema, err := store.OpenDataParamsSchema(context.Background(), dataID)
		require.NoError(t, err)
		assert.Equal(t, want, schema.Properties["variables"].Enum, dataID)
	}
}

func TestBBoxToPolygon(t *testing.T) {
	ring := bboxToPolygon([4]float64{11.0, 42.0, 12.0, 43.0})

	require.Len(t, ring, 5)
	assert.Equal(t, [2]float64{11.0, 42.0}, ring[0])
	assert.Equal(t, [2]float64{12.0, 42.0}, ring[1])
	assert.Equal(t, [2]float64{12.0, 43.0}, ring[2])
	assert.Equal(t, [2]float64{11.0, 43.0}, ring[3])
	assert.Equal(t, ring[0], ring[4], "ring should be closed")
}

func TestRegister(t *testing.T) {
	registry := datastore.NewRegistry()
	require.NoError(t, Register(registry))

	assert.True(t, registry.HasStore(StoreName))
	assert.Equal(t, []string{StoreName}, registry.ListStores())

	// Duplicate registration is rejected.
	err := Register(registry)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateStore)

	schema, err := registry.StoreParamsSchema(StoreName)
	require.NoError(t, err)
	assert.Contains(t, schema.Properties, "bucket")
	assert.Contains(t, schema.Properties, "cmr_url")
	assert.Empty(t, schema.Required)
}

func TestRegistry_NewStore_NoParams(t *testing.T) {
	registry := datastore.NewRegistry()
	require.NoError(t, Register(registry))

	store, err := registry.NewStore(StoreName, nil, datastore.Dependencies{})
	require.NoError(t, err)
	defer func() {
		if closer, ok := store.(*Store); ok {
			_ = closer.Close()
		}
	}()

	assert.Equal(t, []datastore.DataType{datastore.TypeDataset}, store.DataTypes())
}

func TestRegistry_NewStore_RejectsBadConfig(t *testing.T) {
	registry := datastore.NewRegistry()
	require.NoError(t, Register(registry))

	tests := []struct {
		name   string
		params string
	}{
		{"bad storage type", `{"storage_type": "ftp"}`},
		{"bad retry policy", `{"retry_policy": "forever"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.NewStore(StoreName, []byte(tt.params), datastore.Dependencies{})
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_RetryPolicy(t *testing.T) {
	tests := []struct {
		policy       string
		wantAttempts int
	}{
		{"", retry.DefaultConfig().MaxAttempts},
		{RetryPolicyDefault, retry.DefaultConfig().MaxAttempts},
		{RetryPolicyQuick, retry.Quick().MaxAttempts},
		{RetryPolicyPersistent, retry.Persistent().MaxAttempts},
	}

	for _, tt := range tests {
		cfg := Config{RetryPolicy: tt.policy}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, tt.wantAttempts, cfg.retryConfig().MaxAttempts, tt.policy)
	}
}
