package datastore

import (
	"fmt"
	"sort"
)

// ParamsSchema describes the parameters accepted by a store factory or by
// an open/search operation. Besides flat properties it supports mutually
// exclusive parameter groups (OneOf): parameters must satisfy exactly one
// group in addition to the top-level properties.
type ParamsSchema struct {
	Properties           map[string]PropertySchema `json:"properties"`
	Required             []string                  `json:"required,omitempty"`
	OneOf                []ParamGroup              `json:"oneOf,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// ParamGroup is one branch of a OneOf split: a named set of properties
// with its own required list.
type ParamGroup struct {
	Name       string                    `json:"name"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a single parameter.
type PropertySchema struct {
	Type        string   `json:"type"` // "string", "int", "bool", "float", "enum", "array"
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`     // Valid string values
	Minimum     *int     `json:"minimum,omitempty"`  // For numeric types
	Maximum     *int     `json:"maximum,omitempty"`  // For numeric types
	MinItems    *int     `json:"minItems,omitempty"` // For array types
	MaxItems    *int     `json:"maxItems,omitempty"` // For array types
}

// ValidationError represents a validation error for a specific parameter.
// Error codes are standardized:
//   - "required": parameter is required but missing
//   - "min"/"max": numeric value outside bounds
//   - "minItems"/"maxItems": array length outside bounds
//   - "enum": value not in allowed enum values
//   - "type": value doesn't match expected type
//   - "unknown": parameter not defined by the schema
//   - "oneOf": parameters don't satisfy exactly one parameter group
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidateParams validates a parameter map against a ParamsSchema.
// It checks required fields, type constraints, bounds, enum values, and
// OneOf group membership. Unless AdditionalProperties is set, parameters
// not defined anywhere in the schema are rejected.
//
// Returns all validation failures found; an empty slice means valid.
func ValidateParams(params map[string]any, schema ParamsSchema) []ValidationError {
	var errs []ValidationError

	// Check required top-level fields
	for _, required := range schema.Required {
		if _, exists := params[required]; !exists {
			errs = append(errs, ValidationError{
				Field:   required,
				Message: fmt.Sprintf("Parameter %q is required", required),
				Code:    "required",
			})
		}
	}

	// Validate each provided parameter against whichever property schema
	// defines it (top-level first, then OneOf groups).
	for name, value := range params {
		propSchema, exists := schema.lookup(name)
		if !exists {
			if schema.AdditionalProperties {
				continue
			}
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Unknown parameter %q", name),
				Code:    "unknown",
			})
			continue
		}
		errs = append(errs, validateValue(name, value, propSchema)...)
	}

	// OneOf: exactly one group may be in play
	if len(schema.OneOf) > 0 {
		errs = append(errs, validateOneOf(params, schema.OneOf)...)
	}

	return errs
}

// lookup finds the property schema for a parameter name, searching the
// top-level properties and all OneOf groups.
func (s ParamsSchema) lookup(name string) (PropertySchema, bool) {
	if prop, ok := s.Properties[name]; ok {
		return prop, true
	}
	for _, group := range s.OneOf {
		if prop, ok := group.Properties[name]; ok {
			return prop, true
		}
	}
	return PropertySchema{}, false
}

// validateOneOf checks that the provided parameters belong to exactly one
// parameter group. A group is "touched" when any of its properties appear
// in params, and "satisfied" when all its required properties appear.
func validateOneOf(params map[string]any, groups []ParamGroup) []ValidationError {
	var touched []string
	var satisfied []string

	for _, group := range groups {
		anyPresent := false
		for name := range group.Properties {
			if _, ok := params[name]; ok {
				anyPresent = true
				break
			}
		}
		if anyPresent {
			touched = append(touched, group.Name)
		}

		allRequired := true
		for _, required := range group.Required {
			if _, ok := params[required]; !ok {
				allRequired = false
				break
			}
		}
		if anyPresent && allRequired {
			satisfied = append(satisfied, group.Name)
		}
	}

	switch {
	case len(touched) > 1:
		sort.Strings(touched)
		return []ValidationError{{
			Field:   "",
			Message: fmt.Sprintf("Parameters mix mutually exclusive groups: %v", touched),
			Code:    "oneOf",
		}}
	case len(satisfied) == 0:
		names := make([]string, 0, len(groups))
		for _, group := range groups {
			names = append(names, group.Name)
		}
		return []ValidationError{{
			Field:   "",
			Message: fmt.Sprintf("Parameters must satisfy exactly one of: %v", names),
			Code:    "oneOf",
		}}
	}
	return nil
}

// validateValue checks a single value against its property schema.
func validateValue(name string, value any, prop PropertySchema) []ValidationError {
	var errs []ValidationError

	if err := validateType(name, value, prop); err != nil {
		return []ValidationError{*err} // Skip further checks if type is wrong
	}

	if len(prop.Enum) > 0 {
		if err := validateEnum(name, value, prop.Enum); err != nil {
			errs = append(errs, *err)
		}
	}

	if prop.Type == "int" || prop.Type == "float" {
		if prop.Minimum != nil {
			if err := validateMin(name, value, *prop.Minimum); err != nil {
				errs = append(errs, *err)
			}
		}
		if prop.Maximum != nil {
			if err := validateMax(name, value, *prop.Maximum); err != nil {
				errs = append(errs, *err)
			}
		}
	}

	if prop.Type == "array" {
		length := arrayLen(value)
		if prop.MinItems != nil && length < *prop.MinItems {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must have at least %d items", name, *prop.MinItems),
				Code:    "minItems",
			})
		}
		if prop.MaxItems != nil && length > *prop.MaxItems {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must have at most %d items", name, *prop.MaxItems),
				Code:    "maxItems",
			})
		}
	}

	return errs
}

// validateType checks if the value matches the expected type
func validateType(name string, value any, prop PropertySchema) *ValidationError {
	switch prop.Type {
	case "string", "enum":
		if _, ok := value.(string); !ok {
			return &ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must be a string", name),
				Code:    "type",
			}
		}
	case "int":
		// Accept both int and float64 (JSON numbers)
		switch v := value.(type) {
		case int, int32, int64:
			// Valid
		case float64:
			if v != float64(int64(v)) {
				return &ValidationError{
					Field:   name,
					Message: fmt.Sprintf("Parameter %q must be an integer", name),
					Code:    "type",
				}
			}
		default:
			return &ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must be an integer", name),
				Code:    "type",
			}
		}
	case "float":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			// Valid
		default:
			return &ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must be a number", name),
				Code:    "type",
			}
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return &ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must be a boolean", name),
				Code:    "type",
			}
		}
	case "array":
		switch value.(type) {
		case []any, []string, []float64, []int:
			// Valid
		default:
			return &ValidationError{
				Field:   name,
				Message: fmt.Sprintf("Parameter %q must be an array", name),
				Code:    "type",
			}
		}
	}
	return nil
}

// validateEnum checks membership of string values in the enum list. Array
// values are checked element-wise, so a variables list can be constrained
// to the catalog.
func validateEnum(name string, value any, enum []string) *ValidationError {
	invalid := func(got any) *ValidationError {
		return &ValidationError{
			Field:   name,
			Message: fmt.Sprintf("Parameter %q has invalid value %v", name, got),
			Code:    "enum",
		}
	}

	contains := func(s string) bool {
		for _, e := range enum {
			if e == s {
				return true
			}
		}
		return false
	}

	switch v := value.(type) {
	case string:
		if !contains(v) {
			return invalid(v)
		}
	case []string:
		for _, elem := range v {
			if !contains(elem) {
				return invalid(elem)
			}
		}
	case []any:
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok || !contains(s) {
				return invalid(elem)
			}
		}
	}
	return nil
}

func validateMin(name string, value any, minVal int) *ValidationError {
	if num, ok := toFloat(value); ok && num < float64(minVal) {
		return &ValidationError{
			Field:   name,
			Message: fmt.Sprintf("Parameter %q must be >= %d", name, minVal),
			Code:    "min",
		}
	}
	return nil
}

func validateMax(name string, value any, maxVal int) *ValidationError {
	if num, ok := toFloat(value); ok && num > float64(maxVal) {
		return &ValidationError{
			Field:   name,
			Message: fmt.Sprintf("Parameter %q must be <= %d", name, maxVal),
			Code:    "max",
		}
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func arrayLen(value any) int {
	switch v := value.(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	case []float64:
		return len(v)
	case []int:
		return len(v)
	}
	return 0
}
