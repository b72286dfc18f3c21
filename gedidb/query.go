package gedidb

import (
	"context"
	"fmt"
	"time"

	"github.com/xcube-dev/xcube-gedidb/datastore"
	pkgerrors "github.com/xcube-dev/xcube-gedidb/errors"
)

// Query types supported by the gedidb service.
const (
	QueryBoundingBox = "bounding_box"
	QueryNearest     = "nearest"
)

// Dataset dimension and coordinate names.
const (
	DimShotNumber    = "shot_number"
	DimProfilePoints = "profile_points"

	CoordLatitude  = "latitude"
	CoordLongitude = "longitude"
	CoordTime      = "time"

	timeUnits = "seconds since 1970-01-01"
)

// Query describes a data request against the gedidb archive. Exactly one
// of the bounding-box or nearest-shot geometries applies, selected by Type.
type Query struct {
	Variables []string `json:"variables"`
	Type      string   `json:"query_type"`

	// Bounding-box queries: WGS84 polygon given as a closed ring of
	// [lon, lat] pairs.
	Geometry [][2]float64 `json:"geometry,omitempty"`

	// Nearest-shot queries.
	Point    [2]float64 `json:"point,omitempty"`
	NumShots int        `json:"num_shots,omitempty"`
	Radius   float64    `json:"radius,omitempty"`

	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// shot is one GEDI footprint in a query response. Scalar variables carry a
// single value, profile variables carry one value per vertical step.
type shot struct {
	ShotNumber string                `json:"shot_number"`
	Latitude   float64               `json:"latitude"`
	Longitude  float64               `json:"longitude"`
	Time       string                `json:"time"`
	Values     map[string]shotValues `json:"values"`
	Attrs      map[string]string     `json:"attrs,omitempty"`
}

// shotValues holds either a scalar or a profile for one variable.
type shotValues struct {
	Scalar  *float64  `json:"scalar,omitempty"`
	Profile []float64 `json:"profile,omitempty"`
}

type queryResponse struct {
	Shots []shot            `json:"shots"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Validate checks query consistency before submission.
func (q Query) Validate() error {
	if len(q.Variables) == 0 {
		return pkgerrors.WrapInvalid(
			pkgerrors.ErrMissingParams, "Query", "Validate", "variables check")
	}
	switch q.Type {
	case QueryBoundingBox:
		if len(q.Geometry) < 4 {
			return pkgerrors.WrapInvalid(
				fmt.Errorf("%w: bounding-box query needs a closed polygon ring", pkgerrors.ErrInvalidParams),
				"Query", "Validate", "geometry check")
		}
	case QueryNearest:
		if q.NumShots <= 0 {
			return pkgerrors.WrapInvalid(
				fmt.Errorf("%w: num_shots must be positive", pkgerrors.ErrInvalidParams),
				"Query", "Validate", "num_shots check")
		}
		if q.Radius <= 0 {
			return pkgerrors.WrapInvalid(
				fmt.Errorf("%w: radius must be positive", pkgerrors.ErrInvalidParams),
				"Query", "Validate", "radius check")
		}
	default:
		return pkgerrors.WrapInvalid(
			fmt.Errorf("%w: unknown query type %q", pkgerrors.ErrInvalidParams, q.Type),
			"Query", "Validate", "query type check")
	}
	return nil
}

// GetData runs a query against the archive and assembles the matching
// shots into a dataset. Shots form the shot_number dimension; profile
// variables add a profile_points dimension padded with the fill value
// where individual profiles are shorter than the longest one returned.
func (p *Provider) GetData(ctx context.Context, query Query) (*datastore.Dataset, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s?bucket=%s", p.baseURL, queryPath, p.bucket)

	var response queryResponse
	if err := p.postJSON(ctx, "query", url, query, &response); err != nil {
		return nil, pkgerrors.Wrap(err, "Provider", "GetData", "query execution")
	}

	ds, err := assembleDataset(query.Variables, response)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Provider", "GetData", "dataset assembly")
	}

	p.logger.Debug("query completed",
		"query_type", query.Type,
		"variables", len(query.Variables),
		"shots", len(response.Shots))

	return ds, nil
}

// assembleDataset turns a shot list into a dataset with CF-style time
// coordinates.
func assembleDataset(variables []string, response queryResponse) (*datastore.Dataset, error) {
	shots := response.Shots
	n := len(shots)

	ds := datastore.NewDataset()
	ds.SetDim(DimShotNumber, n)
	for k, v := range response.Attrs {
		ds.Attrs[k] = v
	}

	lats := make([]float64, n)
	lons := make([]float64, n)
	times := make([]float64, n)
	for i, s := range shots {
		lats[i] = s.Latitude
		lons[i] = s.Longitude
		t, err := time.Parse(time.RFC3339, s.Time)
		if err != nil {
			return nil, pkgerrors.WrapInvalid(
				fmt.Errorf("%w: shot %s time %q", pkgerrors.ErrParsingFailed, s.ShotNumber, s.Time),
				"Provider", "assembleDataset", "time parsing")
		}
		times[i] = float64(t.Unix())
	}

	coords := []struct {
		name string
		arr  datastore.Array
	}{
		{CoordLatitude, datastore.Array{
			Dims:   []string{DimShotNumber},
			Values: lats,
			Attrs:  map[string]string{"units": "degrees_north"},
		}},
		{CoordLongitude, datastore.Array{
			Dims:   []string{DimShotNumber},
			Values: lons,
			Attrs:  map[string]string{"units": "degrees_east"},
		}},
		{CoordTime, datastore.Array{
			Dims:   []string{DimShotNumber},
			Values: times,
			Attrs:  map[string]string{"units": timeUnits},
		}},
	}
	for _, c := range coords {
		if err := ds.AddCoord(c.name, c.arr); err != nil {
			return nil, err
		}
	}

	profileLen := maxProfileLen(variables, shots)
	if profileLen > 0 {
		ds.SetDim(DimProfilePoints, profileLen)
	}

	for _, name := range variables {
		arr, err := assembleVariable(name, shots, profileLen)
		if err != nil {
			return nil, err
		}
		if err := ds.AddVar(name, arr); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// maxProfileLen returns the longest profile across all requested variables,
// or zero when every variable is scalar.
func maxProfileLen(variables []string, shots []shot) int {
	longest := 0
	for _, name := range variables {
		for _, s := range shots {
			if v, ok := s.Values[name]; ok && len(v.Profile) > longest {
				longest = len(v.Profile)
			}
		}
	}
	return longest
}

// assembleVariable builds a scalar or profile array for one variable.
// Missing values and short profiles are padded with the fill value. A
// variable whose profiles are all empty has no vertical extent to shape,
// so it degrades to a scalar array of fill values.
func assembleVariable(name string, shots []shot, profileLen int) (datastore.Array, error) {
	isProfile := false
	for _, s := range shots {
		if v, ok := s.Values[name]; ok && len(v.Profile) > 0 {
			isProfile = true
			break
		}
	}

	if !isProfile {
		values := make([]float64, len(shots))
		for i, s := range shots {
			v, ok := s.Values[name]
			if !ok || v.Scalar == nil {
				values[i] = datastore.FillValue
				continue
			}
			values[i] = *v.Scalar
		}
		return datastore.Array{
			Dims:   []string{DimShotNumber},
			Values: values,
		}, nil
	}

	values := make([]float64, len(shots)*profileLen)
	for i := range values {
		values[i] = datastore.FillValue
	}
	for i, s := range shots {
		v, ok := s.Values[name]
		if !ok {
			continue
		}
		copy(values[i*profileLen:(i+1)*profileLen], v.Profile)
	}
	return datastore.Array{
		Dims:   []string{DimShotNumber, DimProfilePoints},
		Values: values,
	}, nil
}
