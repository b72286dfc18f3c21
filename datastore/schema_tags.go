// Schema tag parsing and generation for store parameter structs.
//
// The schema tag system eliminates duplication between parameter structs and
// ParamsSchema definitions by auto-generating schemas from struct tags,
// following Go stdlib patterns (similar to json tags).
//
// Define parameters with schema tags:
//
//	type StoreParams struct {
//	    Bucket  string `json:"bucket" schema:"type:string,description:S3 bucket name"`
//	    Timeout int    `json:"timeout" schema:"type:int,description:Request timeout,min:1,max:300,default:30"`
//	}
//
// Generate the schema once at init time:
//
//	var storeParamsSchema = datastore.GenerateParamsSchema(reflect.TypeOf(StoreParams{}))
//
// Tag syntax uses comma-separated directives with colon-separated key-value
// pairs: type (required), description, default, min, max, minItems,
// maxItems, enum (pipe-separated values), and the boolean flag required.
package datastore

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// SchemaDirectives represents parsed schema tag directives
type SchemaDirectives struct {
	Type        string // REQUIRED - parameter type
	Description string // Recommended
	Default     string // Stored as string, converted during schema generation
	Required    bool
	Min         *int
	Max         *int
	MinItems    *int
	MaxItems    *int
	Enum        []string // Valid enum values
}

// ParseSchemaTag parses a schema struct tag into directives.
func ParseSchemaTag(tag string) (SchemaDirectives, error) {
	directives := SchemaDirectives{}

	if tag == "" {
		return directives, errors.WrapInvalid(
			fmt.Errorf("empty schema tag"),
			"SchemaTag", "ParseSchemaTag", "tag validation")
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, ":") {
			if err := parseBooleanFlag(part, &directives); err != nil {
				return directives, err
			}
			continue
		}

		if err := parseKeyValueDirective(part, &directives); err != nil {
			return directives, err
		}
	}

	if directives.Type == "" {
		return directives, errors.WrapInvalid(
			fmt.Errorf("schema tag missing required 'type' directive"),
			"SchemaTag", "ParseSchemaTag", "type validation")
	}

	return directives, nil
}

// parseBooleanFlag parses flag directives (no colon) from schema tags
func parseBooleanFlag(flag string, directives *SchemaDirectives) error {
	switch flag {
	case "required":
		directives.Required = true
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown boolean flag: %s", flag),
			"SchemaTag", "parseBooleanFlag", "flag parsing")
	}
	return nil
}

// parseKeyValueDirective parses key:value directives from schema tags
func parseKeyValueDirective(part string, directives *SchemaDirectives) error {
	kv := strings.SplitN(part, ":", 2)
	key := strings.TrimSpace(kv[0])
	value := strings.TrimSpace(kv[1])

	if value == "" {
		return errors.WrapInvalid(
			fmt.Errorf("empty value for directive: %s", key),
			"SchemaTag", "parseKeyValueDirective", "value validation")
	}

	parseInt := func() (*int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("invalid %s value: %s", key, value),
				"SchemaTag", "parseKeyValueDirective", key+" parsing")
		}
		return &n, nil
	}

	switch key {
	case "type":
		if !isValidType(value) {
			return errors.WrapInvalid(
				fmt.Errorf("invalid type: %s", value),
				"SchemaTag", "parseKeyValueDirective", "type validation")
		}
		directives.Type = value

	case "description":
		directives.Description = value

	case "default":
		// Stored as string, converted to the field type during generation
		directives.Default = value

	case "min":
		n, err := parseInt()
		if err != nil {
			return err
		}
		directives.Min = n

	case "max":
		n, err := parseInt()
		if err != nil {
			return err
		}
		directives.Max = n

	case "minItems":
		n, err := parseInt()
		if err != nil {
			return err
		}
		directives.MinItems = n

	case "maxItems":
		n, err := parseInt()
		if err != nil {
			return err
		}
		directives.MaxItems = n

	case "enum":
		directives.Enum = strings.Split(value, "|")
		for i := range directives.Enum {
			directives.Enum[i] = strings.TrimSpace(directives.Enum[i])
		}

	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown directive: %s", key),
			"SchemaTag", "parseKeyValueDirective", "directive validation")
	}

	return nil
}

// isValidType checks if a type string is valid
func isValidType(t string) bool {
	switch t {
	case "string", "int", "bool", "float", "enum", "array":
		return true
	}
	return false
}

// GenerateParamsSchema generates a ParamsSchema from a struct type using
// reflection. Reflection runs once at initialization; cache the result in a
// package-level variable.
//
//   - Only exported fields with both 'json' and 'schema' tags are included
//   - json:"-" fields are skipped
//   - Invalid schema tags result in skipped fields (graceful degradation)
//   - Fields flagged required are added to the schema's Required list
//
// Pointer types are dereferenced; non-struct types yield an empty schema.
func GenerateParamsSchema(paramsType reflect.Type) ParamsSchema {
	schema := ParamsSchema{
		Properties: make(map[string]PropertySchema),
		Required:   []string{},
	}

	if paramsType.Kind() == reflect.Ptr {
		paramsType = paramsType.Elem()
	}
	if paramsType.Kind() != reflect.Struct {
		return schema
	}

	for i := 0; i < paramsType.NumField(); i++ {
		field := paramsType.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		fieldName := strings.Split(jsonTag, ",")[0]
		if fieldName == "" {
			continue
		}

		schemaTag := field.Tag.Get("schema")
		if schemaTag == "" {
			continue
		}

		directives, err := ParseSchemaTag(schemaTag)
		if err != nil {
			// Graceful degradation: skip fields with invalid tags
			continue
		}

		description := directives.Description
		if description == "" {
			description = fieldName
		}

		schema.Properties[fieldName] = PropertySchema{
			Type:        directives.Type,
			Description: description,
			Default:     convertDefault(directives.Default, directives.Type),
			Enum:        directives.Enum,
			Minimum:     directives.Min,
			Maximum:     directives.Max,
			MinItems:    directives.MinItems,
			MaxItems:    directives.MaxItems,
		}

		if directives.Required {
			schema.Required = append(schema.Required, fieldName)
		}
	}

	return schema
}

// convertDefault converts a string default from a tag to the value type
// matching the declared schema type. Unparseable defaults are dropped.
func convertDefault(value, schemaType string) any {
	if value == "" {
		return nil
	}

	switch schemaType {
	case "string", "enum":
		return value
	case "int":
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	case "float":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case "bool":
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}

	return nil
}
