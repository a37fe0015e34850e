package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/llmprovider"
)

func TestExpandEnvVars_AllThreeForms(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "MODEL" {
			return "gpt-4o", true
		}
		return "", false
	}
	assert.Equal(t, "model: gpt-4o", expandEnvVars("model: $MODEL", lookup))
	assert.Equal(t, "model: gpt-4o", expandEnvVars("model: ${MODEL}", lookup))
	assert.Equal(t, "model: fallback", expandEnvVars("model: ${MISSING:-fallback}", lookup))
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
model: ${TEST_MODEL:-gpt-4o}
max_steps: 5
tool_choice: none
repetition_cap: 2
session_idle_timeout: 30m
`), 0o644))

	opts, err := Load(cfgPath, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", opts.Model)
	assert.Equal(t, 5, opts.MaxSteps)
	assert.Equal(t, llmprovider.None, opts.ToolChoice)
	assert.Equal(t, 2, opts.RepetitionCap)
	assert.True(t, opts.CompactionEnabled)
}

func TestDefaultRunOptions(t *testing.T) {
	opts := DefaultRunOptions()
	assert.Equal(t, 10, opts.MaxSteps)
	assert.Equal(t, 3, opts.RepetitionCap)
	assert.True(t, opts.CompactionEnabled)
	assert.Equal(t, llmprovider.Auto, opts.ToolChoice)
}
