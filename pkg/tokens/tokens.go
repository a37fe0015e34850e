// Package tokens implements the Token Accountant: deterministic,
// additive token counting per model plus the per-model context-window
// and max-output capability table consulted by the agent loop's budget
// formula.
package tokens

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// SafetyMargin is reserved headroom subtracted from every budget
// computation on top of the model's declared max output, so a
// near-exact context-window estimate never causes a provider-side
// rejection at the wire level.
const SafetyMargin = 256

// Counts is the breakdown returned by CountMessages.
type Counts struct {
	Total    int
	System   int
	User     int
	Tool     int
	ToolCall int
}

// capability is one model's known context window and max output.
type capability struct {
	contextWindow int
	maxOutput     int
}

// knownModels is a small fallback table for models we haven't seen an
// explicit override for. Unknown models fall back to the "default" entry.
var knownModels = map[string]capability{
	"gpt-4o":            {contextWindow: 128000, maxOutput: 16384},
	"gpt-4o-mini":        {contextWindow: 128000, maxOutput: 16384},
	"gpt-4-turbo":        {contextWindow: 128000, maxOutput: 4096},
	"gpt-4":              {contextWindow: 8192, maxOutput: 4096},
	"gpt-3.5-turbo":      {contextWindow: 16385, maxOutput: 4096},
	"claude-3-5-sonnet":  {contextWindow: 200000, maxOutput: 8192},
	"claude-3-opus":      {contextWindow: 200000, maxOutput: 4096},
	"claude-3-haiku":     {contextWindow: 200000, maxOutput: 4096},
	"gemini-1.5-pro":     {contextWindow: 1048576, maxOutput: 8192},
	"gemini-2.0-flash":   {contextWindow: 1048576, maxOutput: 8192},
	"default":            {contextWindow: 128000, maxOutput: 4096},
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// Accountant is the Token Accountant. One instance is typically
// constructed per process; env overrides are read exactly once, at
// construction, never re-read per call.
type Accountant struct {
	overrideContextWindow int // 0 means "not set"
	overrideMaxOutput     int
}

// New reads OVERRIDE_MAX_CONTENT_SIZE and OVERRIDE_MAX_OUTPUT_TOKEN from
// the process environment once and returns an Accountant. These
// overrides, when present, take precedence over both the capability
// table and the known-model fallback for every model.
func New() *Accountant {
	a := &Accountant{}
	if v := os.Getenv("OVERRIDE_MAX_CONTENT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			a.overrideContextWindow = n
		}
	}
	if v := os.Getenv("OVERRIDE_MAX_OUTPUT_TOKEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			a.overrideMaxOutput = n
		}
	}
	return a
}

// stripModelPrefix removes a provider gateway prefix (openai/, bedrock/,
// vertex_ai/) so "openai/gpt-4o" and "gpt-4o" resolve to the same
// capability-table entry.
func stripModelPrefix(model string) string {
	for _, prefix := range []string{"openai/", "bedrock/", "vertex_ai/", "anthropic/"} {
		if strings.HasPrefix(model, prefix) {
			return strings.TrimPrefix(model, prefix)
		}
	}
	return model
}

func lookupCapability(model string) capability {
	stripped := stripModelPrefix(model)
	if cap, ok := knownModels[stripped]; ok {
		return cap
	}
	for prefix, cap := range knownModels {
		if prefix != "default" && strings.HasPrefix(stripped, prefix) {
			return cap
		}
	}
	return knownModels["default"]
}

// ContextWindow returns model's context window, honoring
// OVERRIDE_MAX_CONTENT_SIZE when set.
func (a *Accountant) ContextWindow(model string) int {
	if a.overrideContextWindow > 0 {
		return a.overrideContextWindow
	}
	return lookupCapability(model).contextWindow
}

// MaxOutput returns model's maximum output tokens, honoring
// OVERRIDE_MAX_OUTPUT_TOKEN when set.
func (a *Accountant) MaxOutput(model string) int {
	if a.overrideMaxOutput > 0 {
		return a.overrideMaxOutput
	}
	return lookupCapability(model).maxOutput
}

// encodingFor returns a cached tiktoken encoder for model, falling back
// to cl100k_base for models tiktoken doesn't recognize directly.
func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	stripped := stripModelPrefix(model)

	cacheMu.RLock()
	enc, ok := encodingCache[stripped]
	cacheMu.RUnlock()
	if ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(stripped)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[stripped] = enc
	cacheMu.Unlock()
	return enc, nil
}

// CountMessages counts tokens per OpenAI's per-message overhead
// convention (3 tokens of framing per message, plus 3 for reply
// priming), broken down by role. The count is deterministic for a given
// (model, messages) pair and additive at message granularity; it is not
// guaranteed to match a provider's exact billed count.
func (a *Accountant) CountMessages(model string, messages []tool.Message) (Counts, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return Counts{}, err
	}

	const perMessageOverhead = 3
	var c Counts

	add := func(role tool.Role, n int) {
		c.Total += n
		switch role {
		case tool.RoleSystem:
			c.System += n
		case tool.RoleUser:
			c.User += n
		case tool.RoleTool:
			c.Tool += n
		case tool.RoleAssistant:
			c.ToolCall += n
		}
	}

	for _, m := range messages {
		n := perMessageOverhead
		n += len(enc.Encode(string(m.Role), nil, nil))
		n += len(enc.Encode(m.Content, nil, nil))
		for _, tc := range m.ToolCalls {
			n += len(enc.Encode(tc.Name, nil, nil))
			n += len(enc.Encode(fmt.Sprintf("%v", tc.Arguments), nil, nil))
		}
		add(m.Role, n)
	}

	c.Total += 3 // reply priming
	return c, nil
}

// Count returns the raw token count of an arbitrary string under
// model's encoding, used by the truncator to size tool output budgets.
func (a *Accountant) Count(model, text string) (int, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Available computes the budget formula from spec: context window minus
// messages-so-far minus max output minus a fixed safety margin. This is
// the single consistent formula used everywhere in this implementation
// (the source's investigation-path and chat-path variants are collapsed
// into one, per the documented open question).
func (a *Accountant) Available(model string, messages []tool.Message) (int, error) {
	counts, err := a.CountMessages(model, messages)
	if err != nil {
		return 0, err
	}
	return a.ContextWindow(model) - counts.Total - a.MaxOutput(model) - SafetyMargin, nil
}
