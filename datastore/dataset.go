package datastore

import (
	"fmt"
	"math"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// FillValue marks missing observations in dataset arrays. Partial or
// missing granules from the backend are represented with this value
// rather than surfaced as errors.
var FillValue = math.NaN()

// Array is a single labeled array: a flat value buffer plus the names of
// the dimensions it spans, in row-major order.
type Array struct {
	Dims   []string          `json:"dims"`
	Values []float64         `json:"values"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// Dataset is the in-memory result of OpenData: named data variables over
// shared dimensions, with coordinate arrays labeling those dimensions.
// Time coordinates follow the CF convention ("seconds since 1970-01-01")
// so the structure stays plain JSON on the wire.
type Dataset struct {
	Dims   map[string]int    `json:"dims"`
	Coords map[string]Array  `json:"coords"`
	Vars   map[string]Array  `json:"vars"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// NewDataset creates an empty dataset with initialized maps.
func NewDataset() *Dataset {
	return &Dataset{
		Dims:   make(map[string]int),
		Coords: make(map[string]Array),
		Vars:   make(map[string]Array),
		Attrs:  make(map[string]string),
	}
}

// SetDim declares a dimension and its length.
func (ds *Dataset) SetDim(name string, length int) {
	ds.Dims[name] = length
}

// AddCoord attaches a coordinate array to the dataset.
func (ds *Dataset) AddCoord(name string, arr Array) error {
	if err := ds.checkShape(name, arr); err != nil {
		return err
	}
	ds.Coords[name] = arr
	return nil
}

// AddVar attaches a data variable to the dataset.
func (ds *Dataset) AddVar(name string, arr Array) error {
	if err := ds.checkShape(name, arr); err != nil {
		return err
	}
	ds.Vars[name] = arr
	return nil
}

// checkShape verifies the array's dims are declared and its value count
// matches the product of their lengths.
func (ds *Dataset) checkShape(name string, arr Array) error {
	want := 1
	for _, dim := range arr.Dims {
		length, ok := ds.Dims[dim]
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("array %q references undeclared dimension %q", name, dim),
				"Dataset", "checkShape", "dimension lookup")
		}
		want *= length
	}
	if len(arr.Values) != want {
		return errors.WrapInvalid(
			fmt.Errorf("array %q has %d values, want %d", name, len(arr.Values), want),
			"Dataset", "checkShape", "shape validation")
	}
	return nil
}

// Validate checks consistency of all arrays against the declared dims.
func (ds *Dataset) Validate() error {
	for name, arr := range ds.Coords {
		if err := ds.checkShape(name, arr); err != nil {
			return err
		}
	}
	for name, arr := range ds.Vars {
		if err := ds.checkShape(name, arr); err != nil {
			return err
		}
	}
	return nil
}

// VarNames returns the data variable names in unspecified order.
func (ds *Dataset) VarNames() []string {
	names := make([]string, 0, len(ds.Vars))
	for name := range ds.Vars {
		names = append(names, name)
	}
	return names
}
