package truncation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/tokens"
	"github.com/holmesgpt/agentcore/pkg/tool"
)

func TestTruncateToolResults_UnderBudgetUnchanged(t *testing.T) {
	acc := tokens.New()
	results := []tool.StructuredToolResult{
		{Status: tool.StatusSuccess, Data: "short"},
	}
	out, err := TruncateToolResults(acc, "gpt-4o", results, 10000)
	require.NoError(t, err)
	assert.Equal(t, "short", out[0].Data)
}

func TestTruncateToolResults_OverBudgetTruncated(t *testing.T) {
	acc := tokens.New()
	big := strings.Repeat("word ", 5000)
	results := []tool.StructuredToolResult{
		{Status: tool.StatusSuccess, Data: big, Params: map[string]any{"a": 1}},
	}
	out, err := TruncateToolResults(acc, "gpt-4o", results, 100)
	require.NoError(t, err)
	assert.Less(t, len(out[0].Data), len(big))
	assert.Contains(t, out[0].Data, "TRUNCATED")
	assert.Equal(t, tool.StatusSuccess, out[0].Status)
	assert.Equal(t, map[string]any{"a": 1}, out[0].Params)
}

func TestTruncateToolResults_Idempotent(t *testing.T) {
	acc := tokens.New()
	big := strings.Repeat("word ", 5000)
	results := []tool.StructuredToolResult{{Status: tool.StatusSuccess, Data: big}}

	once, err := TruncateToolResults(acc, "gpt-4o", results, 100)
	require.NoError(t, err)

	twice, err := TruncateToolResults(acc, "gpt-4o", once, 100)
	require.NoError(t, err)

	assert.Equal(t, once[0].Data, twice[0].Data)
}

func TestTruncateToolResults_DistributesProportionally(t *testing.T) {
	acc := tokens.New()
	big := strings.Repeat("word ", 5000)
	results := []tool.StructuredToolResult{
		{Status: tool.StatusSuccess, Data: big},
		{Status: tool.StatusSuccess, Data: big},
	}
	out, err := TruncateToolResults(acc, "gpt-4o", results, 400)
	require.NoError(t, err)
	for _, r := range out {
		n, _ := acc.Count("gpt-4o", r.Data)
		assert.LessOrEqual(t, n, 400/len(results))
	}
}

func TestTruncateToolResults_ZeroByteNotAnError(t *testing.T) {
	acc := tokens.New()
	results := []tool.StructuredToolResult{{Status: tool.StatusSuccess, Data: ""}}
	out, err := TruncateToolResults(acc, "gpt-4o", results, 100)
	require.NoError(t, err)
	assert.Equal(t, tool.StatusSuccess, out[0].Status)
	assert.Empty(t, out[0].Data)
}
