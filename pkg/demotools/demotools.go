// Package demotools provides small, self-contained tools used by the
// CLI and REST demo entry points and by tests that need a real Toolset
// without standing up external infrastructure.
package demotools

import (
	"fmt"
	"time"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// echoTool returns its input unchanged, useful for smoke-testing a
// fresh deployment end to end without any backend dependency.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Returns the given text unchanged." }

func (echoTool) Parameters() map[string]tool.ParamSchema {
	return map[string]tool.ParamSchema{
		"text": {Type: "string", Required: true, Description: "Text to echo back."},
	}
}

func (echoTool) UserFacingTemplate() string { return "echo({text})" }

func (echoTool) Invoke(params map[string]any) tool.StructuredToolResult {
	text, _ := params["text"].(string)
	return tool.StructuredToolResult{Status: tool.StatusSuccess, Data: text, Params: params}
}

// sleepTool pauses for the requested duration before returning, useful
// for exercising the agent loop's parallel-dispatch and cancellation
// paths.
type sleepTool struct{}

func (sleepTool) Name() string        { return "sleep" }
func (sleepTool) Description() string { return "Sleeps for the given number of milliseconds, then returns." }

func (sleepTool) Parameters() map[string]tool.ParamSchema {
	return map[string]tool.ParamSchema{
		"duration_ms": {Type: "number", Required: true, Description: "How long to sleep, in milliseconds."},
	}
}

func (sleepTool) UserFacingTemplate() string { return "sleep({duration_ms}ms)" }

func (sleepTool) Invoke(params map[string]any) tool.StructuredToolResult {
	ms, _ := params["duration_ms"].(float64)
	if ms < 0 {
		return tool.StructuredToolResult{Status: tool.StatusError, Error: "duration_ms must be non-negative", Params: params}
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return tool.StructuredToolResult{
		Status: tool.StatusSuccess,
		Data:   fmt.Sprintf("slept %gms", ms),
		Params: params,
	}
}

// Toolset bundles echo and sleep as a single always-available toolset,
// enabled unconditionally — it has no external prerequisites to check.
type Toolset struct{}

func (Toolset) Name() string  { return "demo" }
func (Toolset) Enabled() bool { return true }
func (Toolset) Status() tool.ToolsetStatus {
	return tool.ToolsetEnabled
}

func (Toolset) Tools() []tool.Tool {
	return []tool.Tool{echoTool{}, sleepTool{}}
}

func (Toolset) CheckPrerequisites() (bool, string) { return true, "" }
func (Toolset) IsDefaultLogging() bool             { return false }
func (Toolset) IsLogging() bool                    { return false }
