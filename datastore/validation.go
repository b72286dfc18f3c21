package datastore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// Validation limits for raw store parameters
const (
	MaxStringLength = 1024        // Maximum length for string values
	MaxJSONSize     = 1024 * 1024 // Maximum JSON size (1MB)
	MaxDepth        = 10          // Maximum JSON nesting depth
	MaxArraySize    = 1000        // Maximum JSON array size
)

// ParamsValidator provides secure validation for raw store parameters
// before they reach a store factory.
type ParamsValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
	maxJSONSize  int
}

// NewParamsValidator creates a validator with secure defaults
func NewParamsValidator() *ParamsValidator {
	return &ParamsValidator{
		maxDepth:     MaxDepth,
		maxArraySize: MaxArraySize,
		maxStringLen: MaxStringLength,
		maxJSONSize:  MaxJSONSize,
	}
}

// ValidateRaw performs comprehensive validation on raw JSON parameters.
// This prevents resource exhaustion and malformed input before any
// factory code runs.
func (v *ParamsValidator) ValidateRaw(rawParams json.RawMessage) error {
	if len(rawParams) > v.maxJSONSize {
		return errors.WrapInvalid(
			fmt.Errorf("params size %d exceeds maximum %d", len(rawParams), v.maxJSONSize),
			"ParamsValidator", "ValidateRaw", "size check")
	}

	// Empty params are valid (stores can have defaults)
	if len(rawParams) == 0 {
		return nil
	}

	var params any
	decoder := json.NewDecoder(strings.NewReader(string(rawParams)))
	decoder.UseNumber() // Prevent float overflow attacks

	if err := decoder.Decode(&params); err != nil {
		return errors.WrapInvalid(err, "ParamsValidator", "ValidateRaw", "JSON parsing")
	}

	if err := v.validateValue(params, 0); err != nil {
		return errors.Wrap(err, "ParamsValidator", "ValidateRaw", "deep validation")
	}

	return nil
}

// validateValue recursively validates a JSON value
func (v *ParamsValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapInvalid(
			fmt.Errorf("JSON depth %d exceeds maximum %d", depth, v.maxDepth),
			"ParamsValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		if len(val) > v.maxStringLen {
			return errors.WrapInvalid(
				fmt.Errorf("string length %d exceeds maximum %d", len(val), v.maxStringLen),
				"ParamsValidator", "validateValue", "string length check")
		}
		if err := v.validateStringContent(val); err != nil {
			return err
		}

	case json.Number:
		if _, err := val.Int64(); err != nil {
			if _, err := val.Float64(); err != nil {
				return errors.WrapInvalid(err, "ParamsValidator", "validateValue", "number validation")
			}
		}

	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapInvalid(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ParamsValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ParamsValidator", "validateValue",
					fmt.Sprintf("array element %d", i))
			}
		}

	case map[string]any:
		for key, elem := range val {
			if len(key) > v.maxStringLen {
				return errors.WrapInvalid(
					fmt.Errorf("key '%s' length exceeds maximum", key),
					"ParamsValidator", "validateValue", "key length check")
			}
			if err := v.validateStringContent(key); err != nil {
				return errors.Wrap(err, "ParamsValidator", "validateValue", "key validation")
			}
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ParamsValidator", "validateValue",
					fmt.Sprintf("object field '%s'", key))
			}
		}

	case bool, nil:
		// Always safe

	default:
		return errors.WrapInvalid(
			fmt.Errorf("unexpected type %T in params", value),
			"ParamsValidator", "validateValue", "type check")
	}

	return nil
}

// validateStringContent checks for dangerous patterns in strings
func (v *ParamsValidator) validateStringContent(s string) error {
	if strings.Contains(s, "\x00") {
		return errors.WrapInvalid(
			fmt.Errorf("string contains null byte"),
			"ParamsValidator", "validateStringContent", "null byte check")
	}

	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return errors.WrapInvalid(
				fmt.Errorf("string contains control character: 0x%02x", r),
				"ParamsValidator", "validateStringContent", "control character check")
		}
	}

	return nil
}

// ValidateRawParams performs validation before passing raw JSON to a
// store factory. This is the main security gate for store parameters.
func ValidateRawParams(rawParams json.RawMessage) error {
	validator := NewParamsValidator()
	return validator.ValidateRaw(rawParams)
}

// Validatable interface for parameter structs that can self-validate
type Validatable interface {
	Validate() error
}

// SafeUnmarshal performs validated unmarshaling into a target struct.
// Unknown fields are rejected so a mistyped parameter fails loudly instead
// of silently falling back to a default.
func SafeUnmarshal(rawParams json.RawMessage, target any) error {
	if err := ValidateRawParams(rawParams); err != nil {
		return errors.Wrap(err, "ParamsValidator", "SafeUnmarshal", "params validation")
	}

	// Empty params are valid - target keeps its defaults
	if len(rawParams) == 0 {
		return nil
	}

	targetType := reflect.TypeOf(target)
	if targetType.Kind() != reflect.Ptr {
		return errors.WrapInvalid(
			fmt.Errorf("target must be a pointer, got %T", target),
			"ParamsValidator", "SafeUnmarshal", "target type check")
	}

	decoder := json.NewDecoder(strings.NewReader(string(rawParams)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return errors.WrapInvalid(err, "ParamsValidator", "SafeUnmarshal", "JSON unmarshaling")
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.WrapInvalid(err, "ParamsValidator", "SafeUnmarshal", "struct validation")
		}
	}

	return nil
}

// ValidateStoreName validates store identifiers: non-empty, bounded, and
// limited to alphanumerics, dash, underscore, and dot.
func ValidateStoreName(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ParamsValidator", "ValidateStoreName", "empty name")
	}
	if len(name) > MaxStringLength {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ParamsValidator", "ValidateStoreName", "name too long")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				errors.ErrInvalidConfig, "ParamsValidator", "ValidateStoreName",
				"invalid name characters")
		}
	}
	return nil
}
