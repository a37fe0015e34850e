package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

func TestContextWindow_KnownModel(t *testing.T) {
	a := New()
	assert.Equal(t, 128000, a.ContextWindow("gpt-4o"))
	assert.Equal(t, 16384, a.MaxOutput("gpt-4o"))
}

func TestContextWindow_UnknownModelFallsBackToDefault(t *testing.T) {
	a := New()
	assert.Equal(t, knownModels["default"].contextWindow, a.ContextWindow("some-unreleased-model"))
}

func TestContextWindow_StripsProviderPrefix(t *testing.T) {
	a := New()
	assert.Equal(t, a.ContextWindow("gpt-4o"), a.ContextWindow("openai/gpt-4o"))
	assert.Equal(t, a.ContextWindow("claude-3-5-sonnet"), a.ContextWindow("bedrock/claude-3-5-sonnet"))
}

func TestContextWindow_EnvOverride(t *testing.T) {
	t.Setenv("OVERRIDE_MAX_CONTENT_SIZE", "999")
	t.Setenv("OVERRIDE_MAX_OUTPUT_TOKEN", "111")
	a := New()
	assert.Equal(t, 999, a.ContextWindow("gpt-4o"))
	assert.Equal(t, 111, a.MaxOutput("gpt-4o"))
}

func TestCountMessages_Deterministic(t *testing.T) {
	a := New()
	msgs := []tool.Message{
		{Role: tool.RoleSystem, Content: "you are an assistant"},
		{Role: tool.RoleUser, Content: "hello there"},
	}
	c1, err := a.CountMessages("gpt-4o", msgs)
	require.NoError(t, err)
	c2, err := a.CountMessages("gpt-4o", msgs)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Greater(t, c1.Total, 0)
	assert.Greater(t, c1.System, 0)
	assert.Greater(t, c1.User, 0)
}

func TestCountMessages_Additive(t *testing.T) {
	a := New()
	base := []tool.Message{{Role: tool.RoleUser, Content: "hi"}}
	extended := append(base, tool.Message{Role: tool.RoleUser, Content: "again"})
	c1, _ := a.CountMessages("gpt-4o", base)
	c2, _ := a.CountMessages("gpt-4o", extended)
	assert.Greater(t, c2.Total, c1.Total)
}

func TestAvailable_NegativeWhenOverBudget(t *testing.T) {
	t.Setenv("OVERRIDE_MAX_CONTENT_SIZE", "100")
	t.Setenv("OVERRIDE_MAX_OUTPUT_TOKEN", "50")
	a := New()
	msgs := []tool.Message{{Role: tool.RoleUser, Content: "this message alone is short"}}
	avail, err := a.Available("gpt-4o", msgs)
	require.NoError(t, err)
	assert.Less(t, avail, 0)
}
