package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/registry"
	"github.com/holmesgpt/agentcore/pkg/tool"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes text back" }
func (echoTool) Parameters() map[string]tool.ParamSchema {
	return map[string]tool.ParamSchema{
		"text": {Type: "string", Required: true, Description: "text to echo"},
	}
}
func (echoTool) UserFacingTemplate() string { return "echo {text}" }
func (echoTool) Invoke(params map[string]any) tool.StructuredToolResult {
	return tool.StructuredToolResult{Status: tool.StatusSuccess, Data: params["text"].(string), Params: params}
}

type panicTool struct{}

func (panicTool) Name() string                               { return "boom" }
func (panicTool) Description() string                        { return "always panics" }
func (panicTool) Parameters() map[string]tool.ParamSchema     { return nil }
func (panicTool) UserFacingTemplate() string                  { return "" }
func (panicTool) Invoke(params map[string]any) tool.StructuredToolResult {
	panic("kaboom")
}

type fakeToolset struct {
	name  string
	tools []tool.Tool
}

func (f fakeToolset) Name() string                          { return f.name }
func (f fakeToolset) Enabled() bool                          { return true }
func (f fakeToolset) Status() tool.ToolsetStatus             { return tool.ToolsetEnabled }
func (f fakeToolset) Tools() []tool.Tool                     { return f.tools }
func (f fakeToolset) CheckPrerequisites() (bool, string)     { return true, "" }
func (f fakeToolset) IsDefaultLogging() bool                 { return false }
func (f fakeToolset) IsLogging() bool                         { return false }

func newTestExecutor(tools ...tool.Tool) *Executor {
	reg := registry.Register([]tool.Toolset{fakeToolset{name: "test", tools: tools}})
	return New(reg)
}

func TestInvoke_UnknownTool(t *testing.T) {
	e := newTestExecutor()
	result, _ := e.Invoke("nope", nil)
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "no tool named")
}

func TestInvoke_MissingRequiredParam(t *testing.T) {
	e := newTestExecutor(echoTool{})
	result, _ := e.Invoke("echo", map[string]any{})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "missing required parameter")
}

func TestInvoke_Success(t *testing.T) {
	e := newTestExecutor(echoTool{})
	result, dur := e.Invoke("echo", map[string]any{"text": "hello"})
	require.Equal(t, tool.StatusSuccess, result.Status)
	assert.Equal(t, "hello", result.Data)
	assert.GreaterOrEqual(t, dur.Nanoseconds(), int64(0))
}

func TestInvoke_WeakCoercion(t *testing.T) {
	e := newTestExecutor(echoTool{})
	// text declared as string but arrives as a non-string scalar.
	result, _ := e.Invoke("echo", map[string]any{"text": 42})
	require.Equal(t, tool.StatusSuccess, result.Status)
	assert.Equal(t, "42", result.Data)
}

func TestInvoke_PanicRecovered(t *testing.T) {
	e := newTestExecutor(panicTool{})
	result, _ := e.Invoke("boom", map[string]any{})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "panicked")
}
