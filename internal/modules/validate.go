package modules

import (
	"math"
	"slices"
	"strings"

	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
)

// ValidateParams checks params against InputSchema.
// - Required fields: returns error if missing
// - Type check: verifies value matches declared property type
// - Enum and range: checked when the property declares them
// - Type coercion: JSON numbers (float64) are kept as-is (handlers already expect float64)
// - Defaults: absent properties that declare a default are filled in
// Returns validated params (a copy) or an InvalidParams *jsonrpc.Error.
func ValidateParams(schema InputSchema, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = make(map[string]any)
	}

	// Check required fields
	var missing []string
	for _, key := range schema.Required {
		val, exists := params[key]
		if !exists || val == nil {
			missing = append(missing, key)
			continue
		}
		// Check for zero-value strings on required fields
		if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, jsonrpc.NewError(jsonrpc.InvalidParams, "missing required parameter(s): %s", strings.Join(missing, ", "))
	}

	// Type check provided params against schema properties
	for key, val := range params {
		prop, declared := schema.Properties[key]
		if !declared {
			// Extra params not in schema are passed through (lenient)
			continue
		}
		if val == nil {
			continue
		}
		if err := checkType(key, val, prop.Type); err != nil {
			return nil, err
		}
		if err := checkConstraints(key, val, prop); err != nil {
			return nil, err
		}
	}

	out := make(map[string]any, len(params)+len(schema.Properties))
	for key, val := range params {
		out[key] = val
	}
	for key, prop := range schema.Properties {
		if prop.Default == nil {
			continue
		}
		if val, ok := out[key]; !ok || val == nil {
			out[key] = prop.Default
		}
	}
	return out, nil
}

// checkType verifies that val matches the expected JSON Schema type.
func checkType(key string, val any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := val.(string); !ok {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected string, got %T", key, val)
		}
	case "number":
		// JSON numbers arrive as float64
		if _, ok := val.(float64); !ok {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected number, got %T", key, val)
		}
	case "integer":
		f, ok := val.(float64)
		if !ok {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected integer, got %T", key, val)
		}
		if f != math.Trunc(f) {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected integer, got %v", key, f)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected boolean, got %T", key, val)
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected array, got %T", key, val)
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: expected object, got %T", key, val)
		}
		// "" or unknown types: skip check (lenient)
	}
	return nil
}

// checkConstraints applies enum and minimum/maximum.
func checkConstraints(key string, val any, prop Property) error {
	if s, ok := val.(string); ok && len(prop.Enum) > 0 && !slices.Contains(prop.Enum, s) {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: must be one of %s, got %q", key, strings.Join(prop.Enum, ", "), s)
	}
	if f, ok := val.(float64); ok {
		if prop.Minimum != nil && f < *prop.Minimum {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: must be >= %v, got %v", key, *prop.Minimum, f)
		}
		if prop.Maximum != nil && f > *prop.Maximum {
			return jsonrpc.NewError(jsonrpc.InvalidParams, "parameter %q: must be <= %v, got %v", key, *prop.Maximum, f)
		}
	}
	return nil
}
