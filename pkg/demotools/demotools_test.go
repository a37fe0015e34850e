package demotools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

func TestEchoTool(t *testing.T) {
	result := echoTool{}.Invoke(map[string]any{"text": "hi"})
	assert.Equal(t, tool.StatusSuccess, result.Status)
	assert.Equal(t, "hi", result.Data)
}

func TestSleepTool_NegativeDuration(t *testing.T) {
	result := sleepTool{}.Invoke(map[string]any{"duration_ms": -1.0})
	assert.Equal(t, tool.StatusError, result.Status)
}

func TestSleepTool_Success(t *testing.T) {
	result := sleepTool{}.Invoke(map[string]any{"duration_ms": 1.0})
	assert.Equal(t, tool.StatusSuccess, result.Status)
}

func TestToolset_AlwaysEnabled(t *testing.T) {
	ts := Toolset{}
	assert.True(t, ts.Enabled())
	ok, msg := ts.CheckPrerequisites()
	assert.True(t, ok)
	assert.Empty(t, msg)
	assert.Equal(t, tool.ToolsetEnabled, ts.Status())
	assert.Len(t, ts.Tools(), 2)
}
