package llmprovider

import (
	"context"
	"sync"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// Mock is an in-memory LLM that plays back a scripted sequence of
// responses, one per Completion call, used by agent-loop tests to drive
// scenarios deterministically without a network dependency.
type Mock struct {
	mu        sync.Mutex
	model     string
	Responses []CompletionResult
	Errors    []error // parallel to Responses; non-nil entries are returned instead
	calls     int

	// Calls records every invocation for assertions.
	Calls []MockCall
}

// MockCall captures one Completion invocation for later inspection.
type MockCall struct {
	Messages []tool.Message
	Schemas  []tool.Definition
	Options  CompletionOptions
}

// NewMock builds a Mock bound to model with a scripted response list.
func NewMock(model string, responses ...CompletionResult) *Mock {
	return &Mock{model: model, Responses: responses}
}

func (m *Mock) Model() string { return m.model }

func (m *Mock) Completion(ctx context.Context, messages []tool.Message, schemas []tool.Definition, opts CompletionOptions) (CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Messages: messages, Schemas: schemas, Options: opts})

	idx := m.calls
	m.calls++

	if idx < len(m.Errors) && m.Errors[idx] != nil {
		return CompletionResult{}, m.Errors[idx]
	}
	if idx >= len(m.Responses) {
		// Default to a content-only termination if the script runs out,
		// so a runaway loop fails the test loudly instead of panicking.
		return CompletionResult{Message: tool.Message{Role: tool.RoleAssistant, Content: "mock exhausted"}}, nil
	}
	return m.Responses[idx], nil
}

// CallCount returns how many times Completion has been invoked so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
