package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// ValidateJSON decodes raw and validates it against def.
func ValidateJSON(def map[string]interface{}, raw json.RawMessage) error {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	return Validate(def, value)
}

// Validate checks a decoded JSON value against a JSON schema subset:
// type (single or list), required, properties, items, minItems and enum.
// Optional properties may be null.
func Validate(def map[string]interface{}, value interface{}) error {
	return validateValue("$", def, value)
}

func validateValue(path string, def map[string]interface{}, value interface{}) error {
	if def == nil {
		return nil
	}

	types := typeNames(def["type"])
	if len(types) > 0 {
		matched := ""
		for _, t := range types {
			if matchesType(t, value) {
				matched = t
				break
			}
		}
		if matched == "" {
			return fmt.Errorf("field '%s' expected %s, got %s", path, joinTypes(types), jsonTypeName(value))
		}
	}

	if enum := enumValues(def["enum"]); enum != nil && value != nil {
		found := false
		for _, candidate := range enum {
			if reflect.DeepEqual(candidate, value) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("field '%s' value %v is not one of %v", path, value, enum)
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		return validateObject(path, def, v)
	case []interface{}:
		if minItems, ok := intValue(def["minItems"]); ok && len(v) < minItems {
			return fmt.Errorf("field '%s' expected at least %d items, got %d", path, minItems, len(v))
		}
		itemsDef, ok := def["items"].(map[string]interface{})
		if !ok {
			return nil
		}
		for i, item := range v {
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), itemsDef, item); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateObject(path string, def map[string]interface{}, obj map[string]interface{}) error {
	required := RequiredFields(def)
	requiredSet := make(map[string]struct{}, len(required))
	for _, field := range required {
		requiredSet[field] = struct{}{}
		value, exists := obj[field]
		if !exists {
			return fmt.Errorf("missing required field: %s", childPath(path, field))
		}
		if value == nil && !allowsNull(def, field) {
			return fmt.Errorf("required field %s is null", childPath(path, field))
		}
	}

	properties, ok := def["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	for key, value := range obj {
		propDef, ok := properties[key].(map[string]interface{})
		if !ok {
			continue
		}
		if value == nil {
			if _, isRequired := requiredSet[key]; !isRequired {
				continue
			}
		}
		if err := validateValue(childPath(path, key), propDef, value); err != nil {
			return err
		}
	}

	return nil
}

// RequiredFields returns the "required" list of an object schema.
func RequiredFields(def map[string]interface{}) []string {
	switch req := def["required"].(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, field := range req {
			if name, ok := field.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}

func allowsNull(def map[string]interface{}, field string) bool {
	properties, ok := def["properties"].(map[string]interface{})
	if !ok {
		return false
	}
	propDef, ok := properties[field].(map[string]interface{})
	if !ok {
		return false
	}
	for _, t := range typeNames(propDef["type"]) {
		if t == "null" {
			return true
		}
	}
	return false
}

func typeNames(raw interface{}) []string {
	switch t := raw.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if name, ok := item.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}

func enumValues(raw interface{}) []interface{} {
	switch e := raw.(type) {
	case []interface{}:
		return e
	case []string:
		out := make([]interface{}, len(e))
		for i, s := range e {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func matchesType(expected string, value interface{}) bool {
	switch expected {
	case "null":
		return value == nil
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}

func jsonTypeName(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func joinTypes(types []string) string {
	if len(types) == 1 {
		return types[0]
	}
	out := ""
	for i, t := range types {
		if i > 0 {
			out += " or "
		}
		out += t
	}
	return out
}

func intValue(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func childPath(parent, key string) string {
	if parent == "$" {
		return key
	}
	return parent + "." + key
}
