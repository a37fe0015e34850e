package registry

import (
	"log/slog"
	"sort"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// ToolRegistry is the flattened, lookup-ready view of every tool
// contributed by the enabled toolsets given to Register. Schemas are
// computed once at construction time and never recomputed per call.
// The tool map itself is a BaseRegistry[tool.Tool]; ToolRegistry layers
// toolset-aware population (logging suppression, override-with-warning)
// and the pre-computed schema view on top of it.
type ToolRegistry struct {
	base    *BaseRegistry[tool.Tool]
	schemas []tool.Definition
}

// Register builds a ToolRegistry from a set of toolsets. Only toolsets
// whose Status is ENABLED contribute tools. At most one logging toolset
// may be active: if the caller supplied their own (non-default) logging
// toolset, the built-in default-logging one is skipped — the core
// selects the first non-default ENABLED logging toolset. When two
// toolsets declare a tool with the same name, the later one in the
// slice wins and a warning is logged — mirroring the override-with-
// warning semantics the original tool executor used for toolset
// registration.
func Register(toolsets []tool.Toolset) *ToolRegistry {
	r := &ToolRegistry{base: NewBaseRegistry[tool.Tool]()}

	customLogging := ""
	for _, ts := range toolsets {
		if ts.Status() == tool.ToolsetEnabled && ts.IsLogging() && !ts.IsDefaultLogging() {
			customLogging = ts.Name()
			break
		}
	}

	for _, ts := range toolsets {
		if ts.Status() != tool.ToolsetEnabled {
			continue
		}
		if (ts.IsLogging() || ts.IsDefaultLogging()) && customLogging != "" && ts.Name() != customLogging {
			slog.Debug("skipping logging toolset, another one is active", "toolset", ts.Name(), "active", customLogging)
			continue
		}
		for _, t := range ts.Tools() {
			if _, exists := r.base.Get(t.Name()); exists {
				slog.Warn("tool name collision, later registration wins", "tool", t.Name(), "toolset", ts.Name())
				_ = r.base.Remove(t.Name())
			}
			_ = r.base.Register(t.Name(), t)
		}
	}

	tools := r.base.List()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	r.schemas = make([]tool.Definition, 0, len(tools))
	for _, t := range tools {
		r.schemas = append(r.schemas, tool.ToDefinition(t))
	}

	return r
}

// Lookup returns the tool registered under name, if any.
func (r *ToolRegistry) Lookup(name string) (tool.Tool, bool) {
	return r.base.Get(name)
}

// Schemas returns the pre-computed function-calling schema for every
// registered tool, in a stable (name-sorted) order.
func (r *ToolRegistry) Schemas() []tool.Definition {
	out := make([]tool.Definition, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Count returns the number of distinct tool names registered.
func (r *ToolRegistry) Count() int {
	return r.base.Count()
}
