// Package config loads YAML configuration with environment-variable
// expansion and defines RunOptions, the per-call knobs spec §6
// recognizes across every entry point (CLI, REST demo, tests).
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/holmesgpt/agentcore/pkg/llmprovider"
)

// PerToolOptions holds per-tool limits read from the per_tool config
// block. RunAgent does not apply them to tool invocations.
type PerToolOptions struct {
	TimeoutMS      int `yaml:"timeout_ms"`
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// RunOptions are the options a caller supplies to RunAgent or
// InvestigateIssue. Defaults mirror spec §6 exactly.
type RunOptions struct {
	Model              string                 `yaml:"model"`
	MaxSteps           int                    `yaml:"max_steps"`
	ToolChoice         llmprovider.ToolChoice `yaml:"-"`
	ResponseFormat     json.RawMessage        `yaml:"-"`
	Temperature        *float64               `yaml:"temperature"`
	PerTool            PerToolOptions         `yaml:"per_tool"`
	CompactionEnabled  bool                   `yaml:"compaction_enabled"`
	RepetitionCap      int                    `yaml:"repetition_cap"`
	SessionIdleTimeout time.Duration          `yaml:"-"`
}

// DefaultRunOptions returns spec §6's documented defaults.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaxSteps:           10,
		ToolChoice:         llmprovider.Auto,
		CompactionEnabled:  true,
		RepetitionCap:      3,
		SessionIdleTimeout: time.Hour,
	}
}

// rawConfig is the YAML-shaped document, before env expansion, before
// decoding durations and tool-choice strings into their Go types.
type rawConfig struct {
	Model              string         `yaml:"model"`
	MaxSteps           int            `yaml:"max_steps"`
	ToolChoice         string         `yaml:"tool_choice"`
	Temperature        *float64       `yaml:"temperature"`
	PerTool            PerToolOptions `yaml:"per_tool"`
	CompactionEnabled  *bool          `yaml:"compaction_enabled"`
	RepetitionCap      int            `yaml:"repetition_cap"`
	SessionIdleTimeout string         `yaml:"session_idle_timeout"`
}

// Load reads a YAML config file at path, optionally preceded by loading
// envFile into the process environment (godotenv), expands ${VAR}-style
// references against the resulting environment, and merges the result
// onto DefaultRunOptions. A missing envFile is not an error — .env
// seeding is always optional.
func Load(path string, envFile string) (RunOptions, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return RunOptions{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RunOptions{}, err
	}

	expanded := expandEnvVars(string(data), os.LookupEnv)

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return RunOptions{}, err
	}

	opts := DefaultRunOptions()
	if raw.Model != "" {
		opts.Model = raw.Model
	}
	if raw.MaxSteps != 0 {
		opts.MaxSteps = raw.MaxSteps
	}
	if raw.ToolChoice != "" {
		opts.ToolChoice = parseToolChoice(raw.ToolChoice)
	}
	if raw.Temperature != nil {
		opts.Temperature = raw.Temperature
	}
	opts.PerTool = raw.PerTool
	if raw.CompactionEnabled != nil {
		opts.CompactionEnabled = *raw.CompactionEnabled
	}
	if raw.RepetitionCap != 0 {
		opts.RepetitionCap = raw.RepetitionCap
	}
	if raw.SessionIdleTimeout != "" {
		d, err := time.ParseDuration(raw.SessionIdleTimeout)
		if err != nil {
			return RunOptions{}, err
		}
		opts.SessionIdleTimeout = d
	}

	return opts, nil
}

func parseToolChoice(s string) llmprovider.ToolChoice {
	switch s {
	case "none":
		return llmprovider.None
	case "auto", "":
		return llmprovider.Auto
	default:
		return llmprovider.ToolChoice{Mode: "name", Name: s}
	}
}
