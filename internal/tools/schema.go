package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	validator "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

// GenerateSchema derives an inline JSON schema from T. Fields without
// omitempty in their json tag are required.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

// resolveSchema compiles a reflected schema into a validator. Tool schemas
// are fixed at build time, so a failure here is a programming error.
func resolveSchema(schema *jsonschema.Schema) *validator.Resolved {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: encode schema: %v", err))
	}

	var s validator.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		panic(fmt.Sprintf("tools: decode schema: %v", err))
	}

	resolved, err := s.Resolve(&validator.ResolveOptions{})
	if err != nil {
		panic(fmt.Sprintf("tools: resolve schema: %v", err))
	}
	return resolved
}

// validateArgs checks raw against the tool schema. Empty or null arguments
// count as {}, and a null property counts as absent.
func validateArgs(resolved *validator.Resolved, raw json.RawMessage) error {
	instance, err := decodeArgs(raw)
	if err != nil {
		return err
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func decodeArgs(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	var instance any
	if err := json.Unmarshal(trimmed, &instance); err != nil {
		return nil, fmt.Errorf("%w: arguments are not valid JSON", ErrInvalidArguments)
	}

	if obj, ok := instance.(map[string]any); ok {
		for k, v := range obj {
			if v == nil {
				delete(obj, k)
			}
		}
	}
	return instance, nil
}
