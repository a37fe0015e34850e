package truncation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// compactionPrompt is the fixed instruction sent to the LLM when
// compacting a history, mirroring the Python source's templated
// "describe what was done, what was discovered, and outstanding goals"
// compaction prompt.
const compactionPrompt = `The conversation above is being compacted to free up context space.
Summarize what has been done so far, what was discovered, and what goals
remain outstanding. Be concise but keep every fact that later steps may
still need.`

const compactionNotice = "History has been compacted; continue."

// Completer is the minimal LLM surface compaction needs: a single
// completion call with no tool schema attached.
type Completer interface {
	Completion(ctx context.Context, messages []tool.Message) (tool.Message, error)
}

// Compact strips the system message, asks the LLM to summarize the
// rest, and rebuilds history as
// [system_prompt, assistant(summary), system(compactionNotice)].
//
// On LLM failure the original history is returned unchanged alongside a
// warning error the caller should log but not treat as fatal by itself
// — ContextExceededError is the caller's responsibility if the budget
// is still negative afterward.
//
// Compacting an already-compacted [system, assistant(summary),
// system(notice)] triple re-summarizes it into the same three-message
// shape. Its size is that of the summary the LLM returns: Compact does
// not check that the new summary is shorter than the one it replaces.
func Compact(ctx context.Context, llm Completer, messages []tool.Message) ([]tool.Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}

	var systemMsg tool.Message
	hasSystem := false
	rest := make([]tool.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == tool.RoleSystem && !hasSystem {
			systemMsg = m
			hasSystem = true
			continue
		}
		rest = append(rest, m)
	}

	summarizeRequest := append(append([]tool.Message{}, rest...), tool.Message{
		Role:    tool.RoleUser,
		Content: compactionPrompt,
	})

	summary, err := llm.Completion(ctx, summarizeRequest)
	if err != nil {
		slog.Warn("compaction LLM call failed, retaining original history", "error", err)
		return messages, fmt.Errorf("compaction failed: %w", err)
	}

	compacted := make([]tool.Message, 0, 3)
	if hasSystem {
		compacted = append(compacted, systemMsg)
	}
	compacted = append(compacted,
		tool.Message{Role: tool.RoleAssistant, Content: summary.Content},
		tool.Message{Role: tool.RoleSystem, Content: compactionNotice},
	)
	return compacted, nil
}

// IsCompacted reports whether messages already has the post-compaction
// shape, used to decide whether a second compaction pass in the same
// iteration would be a no-op.
func IsCompacted(messages []tool.Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == tool.RoleSystem && last.Content == compactionNotice
}
