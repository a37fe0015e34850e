// Package runtime wires the Tool Registry, Executor, Token Accountant,
// Truncator/Compactor, Session Manager, and Agent Loop into a single
// explicit handle. There is deliberately no package-level global state
// here beyond what each wired package itself reads once at
// construction — every caller holds and passes its own *AgentRuntime.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/holmesgpt/agentcore/pkg/agentloop"
	"github.com/holmesgpt/agentcore/pkg/config"
	"github.com/holmesgpt/agentcore/pkg/executor"
	"github.com/holmesgpt/agentcore/pkg/llmprovider"
	"github.com/holmesgpt/agentcore/pkg/metrics"
	"github.com/holmesgpt/agentcore/pkg/registry"
	"github.com/holmesgpt/agentcore/pkg/session"
	"github.com/holmesgpt/agentcore/pkg/tokens"
	"github.com/holmesgpt/agentcore/pkg/tool"
	"github.com/holmesgpt/agentcore/pkg/toolsetcache"
	"github.com/holmesgpt/agentcore/pkg/tracing"
)

// defaultSystemPrompt is rendered when a caller doesn't supply one.
const defaultSystemPrompt = "You are a helpful assistant with access to tools. Use them when they help answer the user's question."

// registryHandle lets the background refresh swap the active
// ToolRegistry/Executor pair atomically; an in-flight run that already
// loaded the old pair keeps using it.
type registryHandle struct {
	reg  *registry.ToolRegistry
	exec *executor.Executor
}

// AgentRuntime is the single wiring point every entry point (CLI, REST
// demo, tests) constructs and holds.
type AgentRuntime struct {
	llm        llmprovider.LLM
	toolsets   []tool.Toolset
	sessions   *session.Manager
	accountant *tokens.Accountant
	cache      *toolsetcache.Store
	tracer     *tracing.Tracer
	metrics    metrics.Recorder
	semaphore  chan struct{}

	current atomic.Pointer[registryHandle]
}

// Config collects the construction-time knobs AgentRuntime needs.
type Config struct {
	LLM                llmprovider.LLM
	Toolsets           []tool.Toolset
	ToolsetCachePath   string // optional; "" disables persistence
	SessionIdleTimeout time.Duration
	DispatchConcurrency int // default agentloop.DefaultDispatchConcurrency
	Tracer             *tracing.Tracer // optional; nil means no-op
	Metrics            metrics.Recorder // optional; nil means Noop
}

// New constructs an AgentRuntime, running every toolset's
// CheckPrerequisites once (consulting and then updating the optional
// on-disk cache) and building the initial Tool Registry.
func New(cfg Config) (*AgentRuntime, error) {
	cache, err := toolsetcache.Load(cfg.ToolsetCachePath)
	if err != nil {
		return nil, fmt.Errorf("loading toolset cache: %w", err)
	}

	checkToolsetPrerequisites(cfg.Toolsets, cache)
	if err := cache.Save(); err != nil {
		return nil, fmt.Errorf("saving toolset cache: %w", err)
	}

	concurrency := cfg.DispatchConcurrency
	if concurrency <= 0 {
		concurrency = agentloop.DefaultDispatchConcurrency
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.Noop{}
	}

	rt := &AgentRuntime{
		llm:        cfg.LLM,
		toolsets:   cfg.Toolsets,
		sessions:   session.NewManager(cfg.SessionIdleTimeout),
		accountant: tokens.New(),
		cache:      cache,
		tracer:     cfg.Tracer,
		metrics:    m,
		semaphore:  make(chan struct{}, concurrency),
	}

	rt.swapRegistry()
	return rt, nil
}

// checkToolsetPrerequisites runs CheckPrerequisites on every toolset
// whose cached entry is stale (or absent), recording the fresh result
// in cache. An up-to-date cache entry is trusted without re-checking.
func checkToolsetPrerequisites(toolsets []tool.Toolset, cache *toolsetcache.Store) {
	const cacheTTL = 10 * time.Minute

	for _, ts := range toolsets {
		if !ts.Enabled() {
			continue
		}
		if entry, ok := cache.Get(ts.Name()); ok && !entry.Stale(cacheTTL) {
			continue
		}
		ok, _ := ts.CheckPrerequisites()
		status := tool.ToolsetFailed
		if ok {
			status = tool.ToolsetEnabled
		}
		cache.Set(ts.Name(), status, time.Now())
	}
}

// swapRegistry builds a fresh ToolRegistry/Executor pair from the
// runtime's current toolsets and atomically publishes it. In-flight
// runs that already captured the previous pointer are unaffected.
func (rt *AgentRuntime) swapRegistry() {
	reg := registry.Register(rt.toolsets)
	rt.current.Store(&registryHandle{reg: reg, exec: executor.New(reg)})
}

// RefreshToolsets re-runs CheckPrerequisites on every enabled toolset,
// whatever the age of its cache entry, and atomically swaps in the
// resulting registry. Intended to be called from a background goroutine
// the caller owns; AgentRuntime does not spawn its own timers.
func (rt *AgentRuntime) RefreshToolsets() {
	for _, ts := range rt.toolsets {
		if !ts.Enabled() {
			continue
		}
		ok, _ := ts.CheckPrerequisites()
		status := tool.ToolsetFailed
		if ok {
			status = tool.ToolsetEnabled
		}
		rt.cache.Set(ts.Name(), status, time.Now())
	}
	_ = rt.cache.Save()
	rt.swapRegistry()
}

// EvictIdleSessions drops session references idle past the configured
// timeout; callers typically invoke this periodically from their own
// scheduler.
func (rt *AgentRuntime) EvictIdleSessions() int {
	n := rt.sessions.EvictIdle()
	rt.metrics.SetActiveSessions(rt.sessions.Count())
	return n
}

// RunAgent is the single main entry point: build the turn's message
// history from the session (or start a fresh one), run the agent loop,
// and commit the newly produced messages back to the session.
func (rt *AgentRuntime) RunAgent(ctx context.Context, sessionID string, ask string, opts config.RunOptions) (agentloop.Result, string, error) {
	handle := rt.current.Load()

	sid, messages := rt.sessions.Build(sessionID, defaultSystemPrompt, ask)

	loopOpts := agentloop.Options{
		MaxSteps:          opts.MaxSteps,
		ToolChoice:        opts.ToolChoice,
		Temperature:       opts.Temperature,
		ResponseFormat:    opts.ResponseFormat,
		CompactionEnabled: opts.CompactionEnabled,
		RepetitionCap:     opts.RepetitionCap,
		DispatchSemaphore: rt.semaphore,
		Tracer:            rt.tracer,
		Metrics:           rt.metrics,
	}

	result, err := agentloop.Run(ctx, rt.llm, handle.reg.Schemas(), messages, handle.exec, rt.accountant, loopOpts)

	// Session.Build returns [system, ...previously appended, user(ask)]
	// but never persists that output itself — only Append writes to the
	// session. So the new user turn (the last message Build produced)
	// has not been stored yet, and must be committed here alongside
	// whatever the loop appended beyond it.
	if len(result.Messages) >= len(messages) {
		if appendErr := rt.sessions.Append(sid, result.Messages[len(messages)-1:]); appendErr != nil {
			if err == nil {
				err = appendErr
			}
		}
	}

	return result, sid, err
}

// InvestigateIssue is a thin specialization of RunAgent that renders the
// issue, the resource instructions and the caller-nominated report
// sections into the user turn (see buildInvestigationPrompt) before
// delegating. The system prompt is the same default one RunAgent uses;
// no investigation-specific system prompt is built. sessionID is always
// fresh: an investigation does not resume a prior conversational session.
func (rt *AgentRuntime) InvestigateIssue(ctx context.Context, issue string, resourceInstructions string, sections []string, opts config.RunOptions) (agentloop.Result, string, error) {
	ask := buildInvestigationPrompt(issue, resourceInstructions, sections)
	result, sid, err := rt.RunAgent(ctx, "", ask, opts)
	return result, sid, err
}

// buildInvestigationPrompt renders the issue, any resource-specific
// instructions, and the requested report-section skeleton into a single
// user turn, so the LLM is asked to organize its findings the way the
// caller wants them structured.
func buildInvestigationPrompt(issue, resourceInstructions string, sections []string) string {
	var b strings.Builder
	b.WriteString("Investigate the following issue:\n\n")
	b.WriteString(issue)
	b.WriteString("\n")

	if resourceInstructions != "" {
		b.WriteString("\nResource-specific instructions:\n")
		b.WriteString(resourceInstructions)
		b.WriteString("\n")
	}

	if len(sections) > 0 {
		b.WriteString("\nStructure your final answer using exactly these sections, in this order:\n")
		for _, s := range sections {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Sessions exposes the Session Manager for callers that need direct
// Clear/EvictIdle access (e.g. a CLI "/reset" command).
func (rt *AgentRuntime) Sessions() *session.Manager { return rt.sessions }

// ToolCount reports how many tools the currently active registry holds,
// useful for a CLI's startup banner.
func (rt *AgentRuntime) ToolCount() int {
	return rt.current.Load().reg.Count()
}
