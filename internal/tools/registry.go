// Package tools defines the note tools and dispatches calls to them.
//
// Includes:
//   - Tool: a closed set of variants, each with a typed argument struct,
//     a reflected JSON input schema and a handler.
//   - Dispatcher: validates arguments against the schema, then runs the
//     handler against the caller's tenant.
//   - JSON-RPC envelopes for tools/list and tools/call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	validator "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

var (
	// ErrUnknownTool is returned for a name outside the registry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when arguments do not satisfy the tool schema.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Name identifies a tool variant.
type Name string

const (
	SaveNote    Name = "save_note"
	SearchNotes Name = "search_notes"
	ListNotes   Name = "list_notes"
)

// Descriptor is the public description of a tool returned by tools/list.
type Descriptor struct {
	Name        Name               `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

type handler func(ctx context.Context, d *Dispatcher, tenantID string, raw json.RawMessage) (any, error)

// Tool is one registry entry.
type Tool struct {
	Descriptor
	validator *validator.Resolved
	handle    handler
}

// define binds a typed handler to its argument struct A.
func define[A any](name Name, description string, fn func(ctx context.Context, d *Dispatcher, tenantID string, args A) (any, error)) Tool {
	schema := GenerateSchema[A]()
	return Tool{
		Descriptor: Descriptor{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		validator: resolveSchema(schema),
		handle: func(ctx context.Context, d *Dispatcher, tenantID string, raw json.RawMessage) (any, error) {
			var args A
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
				}
			}
			return fn(ctx, d, tenantID, args)
		},
	}
}

// Registry returns the tools in the order tools/list reports them.
func Registry() []Tool {
	return []Tool{saveNoteTool, searchNotesTool, listNotesTool}
}
