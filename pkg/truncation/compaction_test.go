package truncation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

type stubCompleter struct {
	summary string
	err     error
}

func (s stubCompleter) Completion(ctx context.Context, messages []tool.Message) (tool.Message, error) {
	if s.err != nil {
		return tool.Message{}, s.err
	}
	return tool.Message{Role: tool.RoleAssistant, Content: s.summary}, nil
}

func TestCompact_ProducesThreeMessages(t *testing.T) {
	history := []tool.Message{
		{Role: tool.RoleSystem, Content: "you are an SRE assistant"},
		{Role: tool.RoleUser, Content: "why is pod crashlooping"},
		{Role: tool.RoleAssistant, Content: "let me check", ToolCalls: []tool.ToolCall{{ID: "1", Name: "kubectl_get"}}},
		{Role: tool.RoleTool, Content: "pod OOMKilled", ToolCallID: "1", Name: "kubectl_get"},
	}
	out, err := Compact(context.Background(), stubCompleter{summary: "investigated OOM kill"}, history)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, tool.RoleSystem, out[0].Role)
	assert.Equal(t, "you are an SRE assistant", out[0].Content)
	assert.Equal(t, tool.RoleAssistant, out[1].Role)
	assert.Equal(t, "investigated OOM kill", out[1].Content)
	assert.Equal(t, tool.RoleSystem, out[2].Role)
	assert.Equal(t, compactionNotice, out[2].Content)
	assert.True(t, IsCompacted(out))
}

func TestCompact_LLMErrorReturnsOriginal(t *testing.T) {
	history := []tool.Message{
		{Role: tool.RoleSystem, Content: "sys"},
		{Role: tool.RoleUser, Content: "ask"},
	}
	out, err := Compact(context.Background(), stubCompleter{err: errors.New("provider down")}, history)
	require.Error(t, err)
	assert.Equal(t, history, out)
}

func TestCompact_Idempotent(t *testing.T) {
	history := []tool.Message{
		{Role: tool.RoleSystem, Content: "sys"},
		{Role: tool.RoleUser, Content: "ask"},
		{Role: tool.RoleAssistant, Content: "answer"},
	}
	once, err := Compact(context.Background(), stubCompleter{summary: "summary one"}, history)
	require.NoError(t, err)

	twice, err := Compact(context.Background(), stubCompleter{summary: "summary one"}, once)
	require.NoError(t, err)

	assert.Len(t, twice, len(once))
	assert.LessOrEqual(t, len(twice[1].Content), len(once[1].Content)+len("summary one"))
}
