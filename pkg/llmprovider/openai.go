package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/holmesgpt/agentcore/pkg/httpclient"
	"github.com/holmesgpt/agentcore/pkg/tool"
)

// OpenAIAdapter implements LLM against any OpenAI-compatible
// chat-completions endpoint (OpenAI itself, and the many gateways —
// Azure OpenAI, LiteLLM proxies, local vLLM servers — that mirror its
// wire format). Retry/backoff is delegated to the shared httpclient
// client configured with httpclient.DefaultStrategy: SmartRetry for
// 429/503 and ConservativeRetry for 408/500/502/504.
type OpenAIAdapter struct {
	model   string
	baseURL string
	apiKey  string
	client  *httpclient.Client
}

// NewOpenAIAdapter builds an adapter bound to model, talking to
// baseURL (e.g. "https://api.openai.com/v1") with apiKey as a bearer
// token.
func NewOpenAIAdapter(model, baseURL, apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: httpclient.New(
			httpclient.WithMaxRetries(3),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
			httpclient.WithRetryStrategy(httpclient.DefaultStrategy),
		),
	}
}

func (a *OpenAIAdapter) Model() string { return a.model }

type wireMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string         `json:"type"`
	Function tool.Definition `json:"function"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	Tools          []wireTool      `json:"tools,omitempty"`
	ToolChoice     any             `json:"tool_choice,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func toWireMessages(messages []tool.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			wtc := wireToolCall{ID: tc.ID, Type: "function"}
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = string(args)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out = append(out, wm)
	}
	return out
}

func toWireToolChoice(tc ToolChoice) any {
	switch tc.Mode {
	case "none":
		return "none"
	case "name":
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.Name},
		}
	default:
		return "auto"
	}
}

func fromWireMessage(m wireMessage) tool.Message {
	out := tool.Message{
		Role:       tool.Role(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	for _, wtc := range m.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(wtc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, tool.ToolCall{
			ID:        wtc.ID,
			Name:      wtc.Function.Name,
			Arguments: args,
		})
	}
	return out
}

func (a *OpenAIAdapter) Completion(ctx context.Context, messages []tool.Message, schemas []tool.Definition, opts CompletionOptions) (CompletionResult, error) {
	req := chatRequest{
		Model:          a.model,
		Messages:       toWireMessages(messages),
		Temperature:    opts.Temperature,
		ResponseFormat: opts.ResponseFormat,
	}
	if opts.ToolChoice.Mode != "none" || len(schemas) > 0 {
		req.ToolChoice = toWireToolChoice(opts.ToolChoice)
	}
	for _, s := range schemas {
		req.Tools = append(req.Tools, wireTool{Type: "function", Function: s})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return CompletionResult{}, &ProviderError{Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, &ProviderError{Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		return CompletionResult{}, &ProviderError{
			StatusCode: statusCode,
			Message:    err.Error(),
			Transient:  classifyStatus(statusCode),
			Err:        err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResult{}, &ProviderError{Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CompletionResult{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(data)),
			Transient:  classifyStatus(resp.StatusCode),
		}
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return CompletionResult{}, &ProviderError{Message: "malformed response body", Err: err}
	}
	if cr.Error != nil {
		return CompletionResult{}, &ProviderError{Message: cr.Error.Message, Transient: false}
	}
	if len(cr.Choices) == 0 {
		return CompletionResult{}, &ProviderError{Message: "response had no choices", Transient: false}
	}

	return CompletionResult{
		Message: fromWireMessage(cr.Choices[0].Message),
		Usage: Usage{
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			TotalTokens:      cr.Usage.TotalTokens,
		},
	}, nil
}
