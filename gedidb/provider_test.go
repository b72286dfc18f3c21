package gedidb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/pkg/retry"
)

const variablesFixture = `{
	"variables": [
		{"name": "rh", "product_level": "level2A", "description": "Relative height metrics", "units": "m"},
		{"name": "agbd", "product_level": "level4A", "description": "Aboveground biomass density", "units": "Mg/ha"},
		{"name": "cover", "product_level": "level2B", "description": "Total canopy cover"}
	]
}`

const queryFixture = `{
	"shots": [
		{
			"shot_number": "29700110300295502",
			"latitude": 42.18,
			"longitude": 11.52,
			"time": "2020-06-15T10:30:00Z",
			"values": {
				"agbd": {"scalar": 120.5},
				"rh": {"profile": [1.2, 3.4, 5.6]}
			}
		},
		{
			"shot_number": "29700110300295503",
			"latitude": 42.19,
			"longitude": 11.53,
			"time": "2020-06-15T10:30:01Z",
			"values": {
				"agbd": {"scalar": 98.1},
				"rh": {"profile": [0.8, 2.1]}
			}
		}
	],
	"attrs": {"product": "GEDI"}
}`

func newTestProvider(t *testing.T, handler http.Handler) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewProvider(context.Background(),
		WithBaseURL(server.URL),
		WithRetryConfig(retry.Quick()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	return provider, server
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider(context.Background())
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, DefaultStorageType, p.storageType)
	assert.Equal(t, DefaultBucket, p.bucket)
	assert.Equal(t, DefaultBaseURL, p.baseURL)
}

func TestNewProvider_InvalidStorageType(t *testing.T) {
	_, err := NewProvider(context.Background(), WithStorageType("ftp"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestAvailableVariables(t *testing.T) {
	var calls atomic.Int32
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, variablesPath, r.URL.Path)
		assert.Equal(t, DefaultBucket, r.URL.Query().Get("bucket"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(variablesFixture))
	}))

	vars, err := p.AvailableVariables(context.Background())
	require.NoError(t, err)
	require.Len(t, vars, 3)
	assert.Equal(t, "rh", vars[0].Name)
	assert.Equal(t, "level2A", vars[0].ProductLevel)
	assert.Equal(t, "Mg/ha", vars[1].Units)

	// Second call is served from cache.
	_, err = p.AvailableVariables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAvailableVariables_EmptyCatalog(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"variables": []}`))
	}))

	_, err := p.AvailableVariables(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoMetadata)
}

func TestGetData_BoundingBox(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, queryPath, r.URL.Path)

		var query Query
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		assert.Equal(t, QueryBoundingBox, query.Type)
		assert.Equal(t, []string{"agbd", "rh"}, query.Variables)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(queryFixture))
	}))

	ds, err := p.GetData(context.Background(), Query{
		Variables: []string{"agbd", "rh"},
		Type:      QueryBoundingBox,
		Geometry: [][2]float64{
			{11.0, 42.0}, {12.0, 42.0}, {12.0, 43.0}, {11.0, 43.0}, {11.0, 42.0},
		},
		StartTime: "2020-06-01",
		EndTime:   "2020-06-30",
	})
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.Equal(t, 2, ds.Dims[DimShotNumber])
	assert.Equal(t, 3, ds.Dims[DimProfilePoints])
	assert.Equal(t, "GEDI", ds.Attrs["product"])

	lat := ds.Coords[CoordLatitude]
	assert.Equal(t, []float64{42.18, 42.19}, lat.Values)

	tc := ds.Coords[CoordTime]
	assert.Equal(t, "seconds since 1970-01-01", tc.Attrs["units"])
	assert.Equal(t, float64(1592217000), tc.Values[0])

	agbd := ds.Vars["agbd"]
	assert.Equal(t, []string{DimShotNumber}, agbd.Dims)
	assert.Equal(t, []float64{120.5, 98.1}, agbd.Values)

	// The second shot's profile is shorter and gets fill-value padding.
	rh := ds.Vars["rh"]
	assert.Equal(t, []string{DimShotNumber, DimProfilePoints}, rh.Dims)
	assert.Equal(t, []float64{1.2, 3.4, 5.6}, rh.Values[:3])
	assert.Equal(t, []float64{0.8, 2.1}, rh.Values[3:5])
	assert.True(t, rh.Values[5] != rh.Values[5], "padding should be NaN")
}

func TestGetData_AllProfilesEmpty(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shots": [
			{"shot_number": "1", "latitude": 42.18, "longitude": 11.52,
				"time": "2020-06-15T10:30:00Z", "values": {"rh": {"profile": []}}},
			{"shot_number": "2", "latitude": 42.19, "longitude": 11.53,
				"time": "2020-06-15T10:30:01Z", "values": {"rh": {"profile": []}}}
		]}`))
	}))

	// A variable whose profiles are all empty has no vertical extent; it
	// must come back as fill values, not an error.
	ds, err := p.GetData(context.Background(), Query{
		Variables: []string{"rh"},
		Type:      QueryNearest,
		Point:     [2]float64{11.5, 42.2},
		NumShots:  2,
		Radius:    0.1,
	})
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	_, hasProfileDim := ds.Dims[DimProfilePoints]
	assert.False(t, hasProfileDim)

	rh := ds.Vars["rh"]
	assert.Equal(t, []string{DimShotNumber}, rh.Dims)
	require.Len(t, rh.Values, 2)
	for _, v := range rh.Values {
		assert.True(t, v != v, "missing values should be NaN")
	}
}

func TestGetData_ValidatesQuery(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for invalid queries")
	}))

	tests := []struct {
		name  string
		query Query
	}{
		{"no variables", Query{Type: QueryBoundingBox}},
		{"unknown type", Query{Variables: []string{"agbd"}, Type: "spiral"}},
		{"open polygon", Query{Variables: []string{"agbd"}, Type: QueryBoundingBox,
			Geometry: [][2]float64{{0, 0}, {1, 1}}}},
		{"nearest without num_shots", Query{Variables: []string{"agbd"}, Type: QueryNearest,
			Point: [2]float64{11.5, 42.2}, Radius: 0.1}},
		{"nearest without radius", Query{Variables: []string{"agbd"}, Type: QueryNearest,
			Point: [2]float64{11.5, 42.2}, NumShots: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GetData(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestGetData_ServerErrorRetries(t *testing.T) {
	var calls atomic.Int32
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"shots": []}`))
	}))

	ds, err := p.GetData(context.Background(), Query{
		Variables: []string{"agbd"},
		Type:      QueryNearest,
		Point:     [2]float64{11.5, 42.2},
		NumShots:  10,
		Radius:    0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Dims[DimShotNumber])
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestGetData_ClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := p.GetData(context.Background(), Query{
		Variables: []string{"agbd"},
		Type:      QueryNearest,
		Point:     [2]float64{11.5, 42.2},
		NumShots:  10,
		Radius:    0.1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRequestFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetData_BadShotTime(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shots": [
			{"shot_number": "1", "latitude": 0, "longitude": 0, "time": "yesterday", "values": {}}
		]}`))
	}))

	_, err := p.GetData(context.Background(), Query{
		Variables: []string{"agbd"},
		Type:      QueryNearest,
		Point:     [2]float64{0, 0},
		NumShots:  1,
		Radius:    0.1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParsingFailed)
}
