// Package truncation implements the two context-reduction strategies:
// per-tool-result truncation and whole-history compaction.
package truncation

import (
	"fmt"

	"github.com/holmesgpt/agentcore/pkg/tool"
	"github.com/holmesgpt/agentcore/pkg/tokens"
)

// MinToolTokens is the floor every tool result is guaranteed, even when
// many tool calls are pending in the same dispatch phase.
const MinToolTokens = 200

// MaxToolTokens is the absolute cap on a single tool result's budget,
// regardless of how much headroom is available.
const MaxToolTokens = 10000

// truncationMarkerFormat is appended to data that was cut short so the LLM
// can recognize an incomplete payload rather than mistaking it for the
// whole result.
const truncationMarkerFormat = "\n…[TRUNCATED: %d more chars]"

// TruncateToolResults distributes the available-for-tools budget across
// pendingCount tool results proportionally, truncating any result whose
// data exceeds its per-tool share. Status and Params are preserved;
// only Data is shortened. Idempotent: truncating an already-truncated
// result with the same budget is a no-op.
func TruncateToolResults(acc *tokens.Accountant, model string, results []tool.StructuredToolResult, availableForTools int) ([]tool.StructuredToolResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	perTool := availableForTools / len(results)
	if perTool < MinToolTokens {
		perTool = MinToolTokens
	}
	if perTool > MaxToolTokens {
		perTool = MaxToolTokens
	}

	out := make([]tool.StructuredToolResult, len(results))
	for i, r := range results {
		truncated, n, err := truncateOne(acc, model, r, perTool)
		if err != nil {
			return nil, err
		}
		truncated.ReturnedTokenCount = n
		out[i] = truncated
	}
	return out, nil
}

func truncateOne(acc *tokens.Accountant, model string, r tool.StructuredToolResult, budget int) (tool.StructuredToolResult, int, error) {
	n, err := acc.Count(model, r.Data)
	if err != nil {
		return r, 0, err
	}
	if n <= budget {
		return r, n, nil
	}

	// Reserve headroom for the marker itself so appending it doesn't
	// push the final result back over budget; binary-search the exact
	// character boundary by repeated measurement rather than trusting a
	// fixed chars-per-token ratio.
	const markerBudgetReserve = 20
	dataBudget := budget - markerBudgetReserve
	if dataBudget < 0 {
		dataBudget = 0
	}

	lo, hi := 0, len(r.Data)
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		count, err := acc.Count(model, r.Data[:mid])
		if err != nil {
			return r, 0, err
		}
		if count <= dataBudget {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	truncatedData := r.Data[:best]
	marker := fmt.Sprintf(truncationMarkerFormat, len(r.Data)-best)
	out := r
	out.Data = truncatedData + marker
	finalCount, err := acc.Count(model, out.Data)
	if err != nil {
		return r, 0, err
	}
	return out, finalCount, nil
}
