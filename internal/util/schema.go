// Package util holds small helpers shared by the provider adapters.
package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// ToolArgs is the single-argument payload every specialist tool accepts.
type ToolArgs struct {
	Prompt string `json:"prompt" description:"The user's request, passed through verbatim"`
}

// ToolArgsSchema is the parameter schema attached to specialist tool
// definitions, shared by the OpenAI and Anthropic adapters.
func ToolArgsSchema() map[string]any {
	return SchemaFor(ToolArgs{})
}

// ParseToolArgs decodes a provider tool-call argument blob into the prompt
// string forwarded to the tool handler.
func ParseToolArgs(raw []byte) (string, error) {
	var args ToolArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args.Prompt, nil
}

// SchemaFor builds a JSON schema from a Go struct using reflection. Field
// names follow json tags; fields tagged omitempty or typed as pointers are
// optional. A description struct tag becomes the property description.
func SchemaFor(v any) map[string]any {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			name = parts[0]
		}

		prop := map[string]any{"type": jsonType(field.Type)}
		if description := field.Tag.Get("description"); description != "" {
			prop["description"] = description
		}
		properties[name] = prop

		if !hasOmitEmpty(parts) && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tagParts []string) bool {
	for _, part := range tagParts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}
