package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

type fakeTool struct {
	name string
}

func (f fakeTool) Name() string                       { return f.name }
func (f fakeTool) Description() string                { return "fake tool " + f.name }
func (f fakeTool) Parameters() map[string]tool.ParamSchema { return nil }
func (f fakeTool) UserFacingTemplate() string          { return "" }
func (f fakeTool) Invoke(params map[string]any) tool.StructuredToolResult {
	return tool.StructuredToolResult{Status: tool.StatusSuccess}
}

type fakeToolset struct {
	name            string
	tools           []tool.Tool
	status          tool.ToolsetStatus
	isDefaultLogging bool
	isLogging       bool
}

func (f fakeToolset) Name() string                    { return f.name }
func (f fakeToolset) Enabled() bool                    { return f.status == tool.ToolsetEnabled }
func (f fakeToolset) Status() tool.ToolsetStatus       { return f.status }
func (f fakeToolset) Tools() []tool.Tool               { return f.tools }
func (f fakeToolset) CheckPrerequisites() (bool, string) { return true, "" }
func (f fakeToolset) IsDefaultLogging() bool           { return f.isDefaultLogging }
func (f fakeToolset) IsLogging() bool                  { return f.isLogging }

func TestRegister_OnlyEnabledToolsetsContribute(t *testing.T) {
	enabled := fakeToolset{name: "a", status: tool.ToolsetEnabled, tools: []tool.Tool{fakeTool{name: "x"}}}
	disabled := fakeToolset{name: "b", status: tool.ToolsetDisabled, tools: []tool.Tool{fakeTool{name: "y"}}}

	reg := Register([]tool.Toolset{enabled, disabled})
	assert.Equal(t, 1, reg.Count())
	_, ok := reg.Lookup("y")
	assert.False(t, ok)
}

func TestRegister_LaterRegistrationWinsOnCollision(t *testing.T) {
	first := fakeToolset{name: "a", status: tool.ToolsetEnabled, tools: []tool.Tool{fakeTool{name: "shared"}}}
	second := fakeToolset{name: "b", status: tool.ToolsetEnabled, tools: []tool.Tool{fakeTool{name: "shared"}}}

	reg := Register([]tool.Toolset{first, second})
	assert.Equal(t, 1, reg.Count())
	got, ok := reg.Lookup("shared")
	assert.True(t, ok)
	assert.Equal(t, "fake tool shared", got.Description())
}

// A non-logging toolset being enabled must not suppress the default
// logging toolset — suppression only triggers on a genuine logging
// replacement.
func TestRegister_NonLoggingToolsetDoesNotSuppressDefaultLogging(t *testing.T) {
	defaultLogging := fakeToolset{
		name: "default-logging", status: tool.ToolsetEnabled,
		tools: []tool.Tool{fakeTool{name: "log_fetch"}},
		isDefaultLogging: true, isLogging: true,
	}
	unrelated := fakeToolset{name: "demo", status: tool.ToolsetEnabled, tools: []tool.Tool{fakeTool{name: "echo"}}}

	reg := Register([]tool.Toolset{defaultLogging, unrelated})
	_, ok := reg.Lookup("log_fetch")
	assert.True(t, ok, "default logging toolset must not be suppressed by an unrelated enabled toolset")
	_, ok = reg.Lookup("echo")
	assert.True(t, ok)
}

// A user-supplied (non-default) logging toolset does suppress the
// built-in default logging toolset.
func TestRegister_CustomLoggingSuppressesDefaultLogging(t *testing.T) {
	defaultLogging := fakeToolset{
		name: "default-logging", status: tool.ToolsetEnabled,
		tools: []tool.Tool{fakeTool{name: "log_fetch"}},
		isDefaultLogging: true, isLogging: true,
	}
	customLogging := fakeToolset{
		name: "custom-logging", status: tool.ToolsetEnabled,
		tools: []tool.Tool{fakeTool{name: "custom_log_fetch"}},
		isDefaultLogging: false, isLogging: true,
	}

	reg := Register([]tool.Toolset{defaultLogging, customLogging})
	_, ok := reg.Lookup("log_fetch")
	assert.False(t, ok, "default logging toolset should be suppressed once a custom logging toolset is present")
	_, ok = reg.Lookup("custom_log_fetch")
	assert.True(t, ok)
}

func TestRegister_SchemasAreNameSorted(t *testing.T) {
	ts := fakeToolset{name: "a", status: tool.ToolsetEnabled, tools: []tool.Tool{
		fakeTool{name: "zulu"}, fakeTool{name: "alpha"},
	}}
	reg := Register([]tool.Toolset{ts})
	schemas := reg.Schemas()
	if assert.Len(t, schemas, 2) {
		assert.Equal(t, "alpha", schemas[0].Name)
		assert.Equal(t, "zulu", schemas[1].Name)
	}
}
