// Package executor invokes named tools with validated, coerced
// parameters and converts every failure mode — unknown name, missing
// parameter, panicking tool — into an in-band StructuredToolResult so
// the agent loop never has to special-case a Go error return.
package executor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/holmesgpt/agentcore/pkg/registry"
	"github.com/holmesgpt/agentcore/pkg/tool"
)

// Executor invokes tools resolved through a ToolRegistry.
type Executor struct {
	registry *registry.ToolRegistry
}

// New builds an Executor bound to a registry snapshot. The registry is
// immutable once built; a background refresh produces a new *Executor
// rather than mutating this one in place.
func New(reg *registry.ToolRegistry) *Executor {
	return &Executor{registry: reg}
}

// Invoke resolves name against the registry, coerces params against the
// tool's declared schema, and calls it, recovering from panics. Duration
// is always measured, even on early-exit error paths, so callers can
// attach it to a tracing span.
func (e *Executor) Invoke(name string, params map[string]any) (result tool.StructuredToolResult, duration time.Duration) {
	start := time.Now()
	defer func() { duration = time.Since(start) }()

	t, ok := e.registry.Lookup(name)
	if !ok {
		return tool.StructuredToolResult{
			Status: tool.StatusError,
			Error:  fmt.Sprintf("no tool named %q", name),
			Params: params,
		}, 0
	}

	coerced, err := coerce(t.Parameters(), params)
	if err != nil {
		return tool.StructuredToolResult{
			Status: tool.StatusError,
			Error:  err.Error(),
			Params: params,
		}, 0
	}

	return e.safeInvoke(t, coerced), 0
}

// safeInvoke recovers a panicking tool into an ERROR result; a panic
// inside a tool must never take down the agent loop.
func (e *Executor) safeInvoke(t tool.Tool, params map[string]any) (result tool.StructuredToolResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "tool", t.Name(), "recovered", r)
			result = tool.StructuredToolResult{
				Status: tool.StatusError,
				Error:  fmt.Sprintf("tool %q panicked: %v", t.Name(), r),
				Params: params,
			}
		}
	}()
	return t.Invoke(params)
}

// coerce performs shallow type coercion of loosely-typed LLM-supplied
// arguments against a tool's declared parameter schema using
// mapstructure's WeaklyTypedInput decoding (e.g. numeric strings become
// numbers, "true"/"false" strings become bools). Missing required
// parameters produce a descriptive error without invoking the tool.
func coerce(schema map[string]tool.ParamSchema, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))

	for name, p := range schema {
		val, present := raw[name]
		if !present {
			if p.Required {
				return nil, fmt.Errorf("missing required parameter %q", name)
			}
			continue
		}

		coerced, err := coerceValue(p.Type, val)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = coerced
	}

	// Pass through any extra arguments the schema doesn't declare —
	// tools may accept loosely-typed extras without failing validation.
	for name, val := range raw {
		if _, declared := schema[name]; !declared {
			out[name] = val
		}
	}

	return out, nil
}

func coerceValue(wantType string, val any) (any, error) {
	switch wantType {
	case "string":
		var s string
		return decodeWeak(val, &s)
	case "number":
		var f float64
		return decodeWeak(val, &f)
	case "boolean":
		var b bool
		return decodeWeak(val, &b)
	case "array", "object":
		return val, nil
	default:
		return val, nil
	}
}

// decodeWeak runs mapstructure's weakly-typed decoder for scalar
// coercion and returns the dereferenced destination value.
func decodeWeak(val any, dst any) (any, error) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(val); err != nil {
		return nil, fmt.Errorf("cannot coerce value %v: %w", val, err)
	}
	switch d := dst.(type) {
	case *string:
		return *d, nil
	case *float64:
		return *d, nil
	case *bool:
		return *d, nil
	default:
		return val, nil
	}
}
