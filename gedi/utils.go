package gedi

import (
	"fmt"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// bboxToPolygon converts a [xmin, ymin, xmax, ymax] bounding box into a
// closed polygon ring of [lon, lat] corner points, the geometry form the
// gedidb query interface expects.
func bboxToPolygon(bbox [4]float64) [][2]float64 {
	xmin, ymin, xmax, ymax := bbox[0], bbox[1], bbox[2], bbox[3]
	return [][2]float64{
		{xmin, ymin},
		{xmax, ymin},
		{xmax, ymax},
		{xmin, ymax},
		{xmin, ymin},
	}
}

// toStringSlice coerces a decoded JSON array into strings.
func toStringSlice(name string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: %s[%d] is not a string", errors.ErrInvalidParams, name, i),
					"Store", "toStringSlice", "param coercion")
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s is not an array", errors.ErrInvalidParams, name),
			"Store", "toStringSlice", "param coercion")
	}
}

// toFloatSlice coerces a decoded JSON array into floats.
func toFloatSlice(name string, value any) ([]float64, error) {
	switch v := value.(type) {
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, len(v))
		for i, item := range v {
			f, ok := toNumber(item)
			if !ok {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: %s[%d] is not a number", errors.ErrInvalidParams, name, i),
					"Store", "toFloatSlice", "param coercion")
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s is not an array", errors.ErrInvalidParams, name),
			"Store", "toFloatSlice", "param coercion")
	}
}

// toNumber unwraps the numeric types JSON decoding can produce.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// intParam extracts an optional integer parameter, falling back to a
// default when absent.
func intParam(params map[string]any, name string, fallback int) (int, error) {
	value, ok := params[name]
	if !ok {
		return fallback, nil
	}
	f, ok := toNumber(value)
	if !ok {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %s is not a number", errors.ErrInvalidParams, name),
			"Store", "intParam", "param coercion")
	}
	return int(f), nil
}

// floatParam extracts an optional float parameter, falling back to a
// default when absent.
func floatParam(params map[string]any, name string, fallback float64) (float64, error) {
	value, ok := params[name]
	if !ok {
		return fallback, nil
	}
	f, ok := toNumber(value)
	if !ok {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %s is not a number", errors.ErrInvalidParams, name),
			"Store", "floatParam", "param coercion")
	}
	return f, nil
}
