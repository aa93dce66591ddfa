package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/storage"
)

// Limits bounds the note reads a tool call may perform.
type Limits struct {
	// SearchScanCap is how many notes search_notes reads before filtering.
	SearchScanCap int
	SearchDefault int
	ListDefault   int
	// MaxLimit caps any caller-supplied limit.
	MaxLimit int
}

func DefaultLimits() Limits {
	return Limits{
		SearchScanCap: 100,
		SearchDefault: 10,
		ListDefault:   20,
		MaxLimit:      100,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.SearchScanCap <= 0 {
		l.SearchScanCap = def.SearchScanCap
	}
	if l.SearchDefault <= 0 {
		l.SearchDefault = def.SearchDefault
	}
	if l.ListDefault <= 0 {
		l.ListDefault = def.ListDefault
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = def.MaxLimit
	}
	return l
}

func (l Limits) clamp(requested, fallback int) int {
	if requested <= 0 {
		requested = fallback
	}
	return min(requested, l.MaxLimit)
}

// Dispatcher runs tool calls against a tenant's notes.
type Dispatcher struct {
	notes  storage.NoteStore
	limits Limits
	tools  []Tool
	byName map[Name]Tool
	logger *zap.Logger
}

func NewDispatcher(notes storage.NoteStore, limits Limits, logger *zap.Logger) *Dispatcher {
	registry := Registry()
	byName := make(map[Name]Tool, len(registry))
	for _, t := range registry {
		byName[t.Name] = t
	}

	return &Dispatcher{
		notes:  notes,
		limits: limits.withDefaults(),
		tools:  registry,
		byName: byName,
		logger: logger,
	}
}

// ListTools describes every registered tool in registry order.
func (d *Dispatcher) ListTools() []Descriptor {
	descriptors := make([]Descriptor, len(d.tools))
	for i, t := range d.tools {
		descriptors[i] = t.Descriptor
	}
	return descriptors
}

// Call validates args against the named tool's schema and runs it for tenantID.
func (d *Dispatcher) Call(ctx context.Context, tenantID, name string, args json.RawMessage) (any, error) {
	tool, ok := d.byName[Name(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidArguments)
	}

	if err := validateArgs(tool.validator, args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	result, err := tool.handle(ctx, d, tenantID, args)
	if err != nil {
		d.logger.Error("Tool call failed",
			zap.Error(err),
			zap.String("tool", name),
			zap.String("tenant_id", tenantID))
		return nil, err
	}

	d.logger.Debug("Tool call completed",
		zap.String("tool", name),
		zap.String("tenant_id", tenantID))
	return result, nil
}
