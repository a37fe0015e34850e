// Package agentloop implements the Agent Loop state machine: the
// LLM-tool dialogue that alternates completions and tool dispatches
// until an answer is produced or a budget is exhausted.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/holmesgpt/agentcore/pkg/executor"
	"github.com/holmesgpt/agentcore/pkg/llmprovider"
	"github.com/holmesgpt/agentcore/pkg/metrics"
	"github.com/holmesgpt/agentcore/pkg/tokens"
	"github.com/holmesgpt/agentcore/pkg/tool"
	"github.com/holmesgpt/agentcore/pkg/tracing"
	"github.com/holmesgpt/agentcore/pkg/truncation"
)

// DefaultDeadline is the per-request ceiling spec §5 names.
const DefaultDeadline = 10 * time.Minute

// DefaultDispatchConcurrency bounds how many tool calls from one
// DISPATCH phase run concurrently.
const DefaultDispatchConcurrency = 16

// ContextExceededError terminates a run when the message set cannot be
// made to fit even after compaction.
type ContextExceededError struct {
	Reason string
}

func (e *ContextExceededError) Error() string {
	return fmt.Sprintf("context exceeded: %s", e.Reason)
}

// CancelledError is returned when the caller's context is cancelled or
// the per-request deadline elapses.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string { return fmt.Sprintf("run cancelled: %v", e.Cause) }
func (e *CancelledError) Unwrap() error { return e.Cause }

// Options are the per-run knobs spec §4.E and §6 name.
type Options struct {
	MaxSteps          int // default 10
	ToolChoice         llmprovider.ToolChoice
	Temperature        *float64
	ResponseFormat     json.RawMessage
	CompactionEnabled  bool // zero value disables compaction; config.DefaultRunOptions sets it true
	RepetitionCap      int  // default 3
	Deadline           time.Duration // default DefaultDeadline
	DispatchSemaphore  chan struct{} // shared per-process bound; created locally if nil

	Tracer  *tracing.Tracer
	Metrics metrics.Recorder
}

// withDefaults fills unset fields with spec-mandated defaults.
func (o Options) withDefaults() Options {
	if o.MaxSteps == 0 {
		o.MaxSteps = 10
	}
	if o.ToolChoice.Mode == "" {
		o.ToolChoice = llmprovider.Auto
	}
	if o.RepetitionCap == 0 {
		o.RepetitionCap = 3
	}
	if o.Deadline == 0 {
		o.Deadline = DefaultDeadline
	}
	if o.DispatchSemaphore == nil {
		o.DispatchSemaphore = make(chan struct{}, DefaultDispatchConcurrency)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Noop{}
	}
	return o
}

// Result is the core's public return value.
type Result struct {
	Result    string
	Messages  []tool.Message
	ToolCalls []tool.ToolCall
	Usage     llmprovider.Usage
}

// Run drives the LLM↔tool dialogue per spec §4.E's state machine until
// an answer is produced or a budget is exhausted.
func Run(ctx context.Context, llm llmprovider.LLM, schemas []tool.Definition, messages []tool.Message, exec *executor.Executor, acc *tokens.Accountant, opts Options) (Result, error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	history := append([]tool.Message{}, messages...)
	var flatToolCalls []tool.ToolCall
	fingerprints := newFingerprintTracker(opts.RepetitionCap)
	seedFingerprints(fingerprints, history)

	var usage llmprovider.Usage
	start := time.Now()

	for step := 0; step < opts.MaxSteps; step++ {
		if err := checkAborted(runCtx); err != nil {
			opts.Metrics.RecordLoopIteration("cancelled")
			return Result{Messages: history, ToolCalls: flatToolCalls}, &CancelledError{Cause: err}
		}

		var iterSpan *tracing.Span
		if opts.Tracer != nil {
			_, iterSpan = opts.Tracer.StartIteration(runCtx, "", step)
		}

		// START: ensure messages fit before calling the LLM.
		fitted, err := ensureFits(runCtx, llm, acc, history, opts)
		if err != nil {
			if iterSpan != nil {
				iterSpan.End("error", 0)
			}
			opts.Metrics.RecordLoopIteration("context_exceeded")
			return Result{Messages: history, ToolCalls: flatToolCalls}, err
		}
		history = fitted

		completion, err := llm.Completion(runCtx, history, schemas, llmprovider.CompletionOptions{
			Temperature:    opts.Temperature,
			ToolChoice:     opts.ToolChoice,
			ResponseFormat: opts.ResponseFormat,
		})
		if iterSpan != nil {
			iterSpan.End(statusOf(err), 0)
		}
		if err != nil {
			opts.Metrics.RecordLLMCall("error")
			return Result{Messages: history, ToolCalls: flatToolCalls}, err
		}
		opts.Metrics.RecordLLMCall("success")
		usage.PromptTokens += completion.Usage.PromptTokens
		usage.CompletionTokens += completion.Usage.CompletionTokens
		usage.TotalTokens += completion.Usage.TotalTokens

		assistantMsg := completion.Message

		// AWAIT_LLM: no tool calls means DONE.
		if !assistantMsg.HasToolCalls() {
			history = append(history, assistantMsg)
			opts.Metrics.RecordLoopIteration("success")
			return Result{
				Result:    assistantMsg.Content,
				Messages:  history,
				ToolCalls: flatToolCalls,
				Usage:     usage,
			}, nil
		}

		// DISPATCH
		if err := checkAborted(runCtx); err != nil {
			opts.Metrics.RecordLoopIteration("cancelled")
			return Result{Messages: history, ToolCalls: flatToolCalls}, &CancelledError{Cause: err}
		}

		results := dispatch(runCtx, exec, assistantMsg.ToolCalls, fingerprints, opts)

		if err := checkAborted(runCtx); err != nil {
			// The caller cancelled mid-dispatch: no partial assistant/tool
			// messages from this iteration are appended to history.
			opts.Metrics.RecordLoopIteration("cancelled")
			return Result{Messages: history, ToolCalls: flatToolCalls}, &CancelledError{Cause: err}
		}

		history = append(history, assistantMsg)
		toolMsgs := make([]tool.Message, len(assistantMsg.ToolCalls))
		for i, call := range assistantMsg.ToolCalls {
			r := results[call.ID]
			call.Result = &r
			flatToolCalls = append(flatToolCalls, call)
			toolMsgs[i] = tool.Message{
				Role:       tool.RoleTool,
				Content:    r.Data,
				ToolCallID: call.ID,
				Name:       call.Name,
			}
			if r.Error != "" {
				toolMsgs[i].Content = r.Error
			}
		}
		history = append(history, toolMsgs...)

		// BUDGET
		budgeted, err := applyBudget(runCtx, llm, acc, history, opts)
		if err != nil {
			opts.Metrics.RecordLoopIteration("context_exceeded")
			return Result{Messages: history, ToolCalls: flatToolCalls}, err
		}
		history = budgeted
	}

	// stepsRemaining == 0: success with a truncation note.
	history = append(history, tool.Message{
		Role:    tool.RoleSystem,
		Content: "Step budget exhausted; the investigation may be incomplete.",
	})
	opts.Metrics.RecordLoopIteration("step_budget_exceeded")
	opts.Metrics.RecordLoopDuration("step_budget_exceeded", time.Since(start).Seconds())
	return Result{
		Result:    "Step budget exhausted; the investigation may be incomplete.",
		Messages:  history,
		ToolCalls: flatToolCalls,
		Usage:     usage,
	}, nil
}

func checkAborted(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ensureFits checks the budget before an LLM call, attempting
// compaction when already over budget (e.g. the incoming history from a
// resumed session is already large).
func ensureFits(ctx context.Context, llm llmprovider.LLM, acc *tokens.Accountant, messages []tool.Message, opts Options) ([]tool.Message, error) {
	available, err := acc.Available(llm.Model(), messages)
	if err != nil {
		return nil, err
	}
	if available > 0 {
		return messages, nil
	}
	return applyBudget(ctx, llm, acc, messages, opts)
}

// applyBudget implements the BUDGET state: truncate, then compact if
// still oversize, then fail with ContextExceededError if still oversize
// after that. Compaction is attempted at most once.
func applyBudget(ctx context.Context, llm llmprovider.LLM, acc *tokens.Accountant, messages []tool.Message, opts Options) ([]tool.Message, error) {
	model := llm.Model()

	available, err := acc.Available(model, messages)
	if err != nil {
		return nil, err
	}
	if available > 0 {
		return messages, nil
	}

	// Tool-output truncation first: shrink the most recent tool results.
	truncated := truncateRecentToolMessages(acc, model, messages, opts)
	available, err = acc.Available(model, truncated)
	if err != nil {
		return nil, err
	}
	if available > 0 {
		opts.Metrics.RecordTruncation()
		return truncated, nil
	}

	if !opts.CompactionEnabled {
		return nil, &ContextExceededError{Reason: "over budget and compaction disabled"}
	}
	if truncation.IsCompacted(truncated) {
		return nil, &ContextExceededError{Reason: "already compacted and still over budget"}
	}

	compacted, err := truncation.Compact(ctx, llmprovider.Completer{LLM: llm}, truncated)
	if err != nil {
		opts.Metrics.RecordCompaction("failed")
		slog.Warn("compaction failed, history retained unchanged", "error", err)
		return nil, &ContextExceededError{Reason: "compaction failed: " + err.Error()}
	}
	opts.Metrics.RecordCompaction("success")

	available, err = acc.Available(model, compacted)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, &ContextExceededError{Reason: "still over budget after compaction"}
	}
	return compacted, nil
}

// truncateRecentToolMessages applies per-tool-result truncation to the
// tool messages belonging to the most recent assistant turn.
func truncateRecentToolMessages(acc *tokens.Accountant, model string, messages []tool.Message, opts Options) []tool.Message {
	// Find the most recent run of trailing tool messages.
	end := len(messages)
	start := end
	for start > 0 && messages[start-1].Role == tool.RoleTool {
		start--
	}
	if start == end {
		return messages
	}

	results := make([]tool.StructuredToolResult, end-start)
	for i, m := range messages[start:end] {
		results[i] = tool.StructuredToolResult{Status: tool.StatusSuccess, Data: m.Content}
	}

	available, err := acc.Available(model, messages[:start])
	if err != nil || available <= 0 {
		available = truncation.MinToolTokens * (end - start)
	}

	shrunk, err := truncation.TruncateToolResults(acc, model, results, available)
	if err != nil {
		return messages
	}

	out := append([]tool.Message{}, messages[:start]...)
	for i, r := range shrunk {
		m := messages[start+i]
		m.Content = r.Data
		out = append(out, m)
	}
	return out
}

// dispatch executes every tool call in an assistant turn concurrently,
// bounded by opts.DispatchSemaphore, and returns results keyed by call
// id so the caller can reorder them back into emission order — the
// parallel fan-out itself never reorders the final history.
func dispatch(ctx context.Context, exec *executor.Executor, calls []tool.ToolCall, fp *fingerprintTracker, opts Options) map[string]tool.StructuredToolResult {
	results := make(map[string]tool.StructuredToolResult, len(calls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for _, call := range calls {
		call := call
		g.Go(func() error {
			select {
			case opts.DispatchSemaphore <- struct{}{}:
			case <-gctx.Done():
				mu.Lock()
				results[call.ID] = tool.StructuredToolResult{Status: tool.StatusError, Error: "dispatch cancelled"}
				mu.Unlock()
				return nil
			}
			defer func() { <-opts.DispatchSemaphore }()

			key := fingerprint(call.Name, call.Arguments)
			if fp.shouldShortCircuit(key) {
				opts.Metrics.RecordRepetitionCapHit(call.Name)
				mu.Lock()
				results[call.ID] = tool.StructuredToolResult{
					Status: tool.StatusError,
					Error:  fmt.Sprintf("repetition: %s has been called with these arguments too many times, try a different approach", call.Name),
					Params: call.Arguments,
				}
				mu.Unlock()
				return nil
			}

			var toolSpan *tracing.Span
			if opts.Tracer != nil {
				_, toolSpan = opts.Tracer.StartToolCall(gctx, call.Name, call.Arguments)
			}
			result, duration := exec.Invoke(call.Name, call.Arguments)
			opts.Metrics.RecordToolCall(call.Name, string(result.Status))
			opts.Metrics.RecordToolDuration(call.Name, duration.Seconds())
			if toolSpan != nil {
				toolSpan.End(string(result.Status), len(result.Data))
			}

			mu.Lock()
			results[call.ID] = result
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // errors are carried in per-call results, never aborting siblings

	return results
}

// fingerprint canonicalizes a tool call into a stable dedup key by
// name and sorted-key JSON of its arguments.
func fingerprint(name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canon := make(map[string]any, len(args))
	for _, k := range keys {
		canon[k] = args[k]
	}
	data, _ := json.Marshal(canon)
	return name + "|" + string(data)
}

type fingerprintTracker struct {
	mu    sync.Mutex
	cap   int
	counts map[string]int
}

func newFingerprintTracker(cap int) *fingerprintTracker {
	return &fingerprintTracker{cap: cap, counts: make(map[string]int)}
}

// shouldShortCircuit increments the fingerprint's count and reports
// whether this occurrence is beyond the repetition cap.
func (t *fingerprintTracker) shouldShortCircuit(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key] > t.cap
}

// seedFingerprints pre-populates counts from tool calls already present
// in history, so the cap is enforced across a session's full lifetime,
// not just within one Run.
func seedFingerprints(t *fingerprintTracker, history []tool.Message) {
	for _, m := range history {
		for _, call := range m.ToolCalls {
			key := fingerprint(call.Name, call.Arguments)
			t.mu.Lock()
			t.counts[key]++
			t.mu.Unlock()
		}
	}
}
