package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/config"
	"github.com/holmesgpt/agentcore/pkg/demotools"
	"github.com/holmesgpt/agentcore/pkg/llmprovider"
	"github.com/holmesgpt/agentcore/pkg/tool"
)

func newTestRuntime(t *testing.T, responses ...llmprovider.CompletionResult) (*AgentRuntime, *llmprovider.Mock) {
	t.Helper()
	mock := llmprovider.NewMock("gpt-4o", responses...)
	rt, err := New(Config{
		LLM:              mock,
		Toolsets:         []tool.Toolset{demotools.Toolset{}},
		ToolsetCachePath: filepath.Join(t.TempDir(), "cache.json"),
	})
	require.NoError(t, err)
	return rt, mock
}

func TestRunAgent_SingleTurn(t *testing.T) {
	rt, _ := newTestRuntime(t, llmprovider.CompletionResult{
		Message: tool.Message{Role: tool.RoleAssistant, Content: "hello there"},
	})

	result, sid, err := rt.RunAgent(context.Background(), "", "hi", config.DefaultRunOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, sid)
	assert.Equal(t, "hello there", result.Result)
	assert.Equal(t, 2, rt.ToolCount())
}

func TestRunAgent_SessionContinuity(t *testing.T) {
	rt, mock := newTestRuntime(t,
		llmprovider.CompletionResult{Message: tool.Message{Role: tool.RoleAssistant, Content: "first answer"}},
		llmprovider.CompletionResult{Message: tool.Message{Role: tool.RoleAssistant, Content: "second answer"}},
	)

	_, sid, err := rt.RunAgent(context.Background(), "", "question one", config.DefaultRunOptions())
	require.NoError(t, err)

	_, sid2, err := rt.RunAgent(context.Background(), sid, "question two", config.DefaultRunOptions())
	require.NoError(t, err)
	assert.Equal(t, sid, sid2)

	// The second LLM call must have seen the first turn's history.
	require.Len(t, mock.Calls, 2)
	secondCallMessages := mock.Calls[1].Messages
	var sawFirstQuestion, sawFirstAnswer bool
	for _, m := range secondCallMessages {
		if m.Content == "question one" {
			sawFirstQuestion = true
		}
		if m.Content == "first answer" {
			sawFirstAnswer = true
		}
	}
	assert.True(t, sawFirstQuestion)
	assert.True(t, sawFirstAnswer)
}

func TestInvestigateIssue_RendersSections(t *testing.T) {
	rt, mock := newTestRuntime(t, llmprovider.CompletionResult{
		Message: tool.Message{Role: tool.RoleAssistant, Content: "report"},
	})

	_, _, err := rt.InvestigateIssue(context.Background(), "pod crashlooping", "check kubectl describe", []string{"Summary", "Root Cause"}, config.DefaultRunOptions())
	require.NoError(t, err)

	require.Len(t, mock.Calls, 1)
	var ask string
	for _, m := range mock.Calls[0].Messages {
		if m.Role == tool.RoleUser {
			ask = m.Content
		}
	}
	assert.Contains(t, ask, "pod crashlooping")
	assert.Contains(t, ask, "check kubectl describe")
	assert.Contains(t, ask, "Summary")
	assert.Contains(t, ask, "Root Cause")
}

func TestRefreshToolsets_SwapsRegistryWithoutBreakingInFlight(t *testing.T) {
	rt, _ := newTestRuntime(t, llmprovider.CompletionResult{
		Message: tool.Message{Role: tool.RoleAssistant, Content: "ok"},
	})

	before := rt.ToolCount()
	rt.RefreshToolsets()
	assert.Equal(t, before, rt.ToolCount())
}
