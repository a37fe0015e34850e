// Package llmprovider defines the LLM capability the agent core
// consumes and a concrete HTTP-backed adapter implementing it with
// retry/backoff semantics.
package llmprovider

import (
	"context"
	"encoding/json"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// Usage is the token usage a provider reports for one completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is what a Completion call returns: the assistant
// turn plus usage accounting.
type CompletionResult struct {
	Message tool.Message
	Usage   Usage
}

// ToolChoice selects how the LLM should use the supplied tool schemas.
type ToolChoice struct {
	Mode string // "auto", "none", or "name"
	Name string // only meaningful when Mode == "name"
}

// Auto is the default ToolChoice: the LLM decides whether to call a tool.
var Auto = ToolChoice{Mode: "auto"}

// None forbids tool calls for this turn.
var None = ToolChoice{Mode: "none"}

// CompletionOptions are the knobs the agent loop controls per request.
type CompletionOptions struct {
	Temperature    *float64
	ToolChoice     ToolChoice
	ResponseFormat json.RawMessage // optional JSON schema forcing structured output
}

// LLM is the only surface the core depends on from a model provider.
// Implementations MUST be safe for concurrent use — the loop itself
// only calls Completion serially, but a compaction call may race a
// cancellation-triggered abort.
type LLM interface {
	// Completion drives one model turn given the full message history
	// and the tool schemas currently registered.
	Completion(ctx context.Context, messages []tool.Message, schemas []tool.Definition, opts CompletionOptions) (CompletionResult, error)

	// Model returns the identifier this adapter is bound to, used by
	// the Token Accountant's capability lookup.
	Model() string
}

// Completer adapts an LLM to the narrower interface the compaction
// package needs (no schemas, no tool choice).
type Completer struct {
	LLM LLM
}

func (c Completer) Completion(ctx context.Context, messages []tool.Message) (tool.Message, error) {
	result, err := c.LLM.Completion(ctx, messages, nil, CompletionOptions{ToolChoice: None})
	if err != nil {
		return tool.Message{}, err
	}
	return result.Message, nil
}
