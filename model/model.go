package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/callcentre/core"
)

// Tool exposes a named, described, single-string-argument callable to the
// completion service. The handler returns plain text; usage accounting flows
// through whatever accumulator the handler captured at registration time,
// there is no side channel.
type Tool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, input string) (string, error)
}

// ResponseSchema requests structured output shaped by a JSON schema.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolInvocation records a tool the completion service chose to invoke during
// a call, together with the result the handler produced.
type ToolInvocation struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
}

// Request captures the normalized completion-service input.
type Request struct {
	Instructions   string          // fixed instructions for this call
	History        []core.Turn     // prior conversation context, already filtered
	Prompt         string          // current user input
	Tools          []Tool          // optional invocable tools
	ResponseSchema *ResponseSchema // optional structured output request
	Stream         bool
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry an incremental text fragment; the final chunk carries the assembled
// text, any structured payload, the tool invocations that ran and the usage
// delta covering every underlying request the call issued.
type Response struct {
	Partial         bool             `json:"partial"`
	Text            string           `json:"text"`
	Structured      json.RawMessage  `json:"structured,omitempty"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
	FinishReason    string           `json:"finish_reason,omitempty"`
	Usage           core.Delta       `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Consume drains a Generate channel pair into the final response. Partial
// fragments are forwarded to onDelta when non-nil. It returns the first error
// observed, or the context error if the stream ends without a final chunk.
func Consume(ctx context.Context, respCh <-chan Response, errCh <-chan error, onDelta func(string)) (Response, error) {
	var final Response
	sawFinal := false
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if onDelta != nil {
					onDelta(resp.Text)
				}
				continue
			}
			final = resp
			sawFinal = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !sawFinal {
		return Response{}, fmt.Errorf("stream ended without final response")
	}
	return final, nil
}

var _ Model = (*StubModel)(nil)

// StubModel is a lightweight in-memory Model useful for tests. Behavior is
// keyed on the request prompt: canned text, canned structured payloads, a
// forced tool invocation or an injected error.
type StubModel struct {
	mu         sync.Mutex
	info       Info
	responses  map[string]string
	structured map[string]json.RawMessage
	invoke     map[string]string // prompt -> tool name to invoke
	err        error
	delta      core.Delta
	calls      int
}

// NewStubModel constructs a StubModel whose every call costs one request and
// ten tokens unless overridden with SetDelta.
func NewStubModel(name string) *StubModel {
	return &StubModel{
		info:       Info{Name: name, Provider: "stub", SupportsTools: true},
		responses:  make(map[string]string),
		structured: make(map[string]json.RawMessage),
		invoke:     make(map[string]string),
		delta:      core.Delta{Requests: 1, PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *StubModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddStructured registers a canned structured payload for a prompt.
func (m *StubModel) AddStructured(prompt string, payload any) {
	raw, _ := json.Marshal(payload)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured[prompt] = raw
}

// AddToolInvocation makes the stub invoke the named tool with the prompt as
// argument when the prompt arrives with a matching tool attached.
func (m *StubModel) AddToolInvocation(prompt, toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoke[prompt] = toolName
}

// SetError makes every subsequent call fail with err.
func (m *StubModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelta overrides the usage delta reported per call.
func (m *StubModel) SetDelta(d core.Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delta = d
}

// Info returns the stub's metadata.
func (m *StubModel) Info() Info { return m.info }

// Calls returns the number of Generate invocations so far.
func (m *StubModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model; emits optional streaming fragments then the
// final response.
func (m *StubModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	err := m.err
	full, hasText := m.responses[req.Prompt]
	structured := m.structured[req.Prompt]
	toolName := m.invoke[req.Prompt]
	delta := m.delta
	m.mu.Unlock()

	if toolName != "" && !hasTool(req.Tools, toolName) {
		toolName = ""
	}

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err != nil {
			errCh <- err
			return
		}

		if toolName != "" {
			m.generateToolCall(ctx, req, toolName, delta, respCh, errCh)
			return
		}

		final := Response{FinishReason: "stop", Usage: delta}
		if structured != nil {
			final.Structured = structured
		}
		if !hasText {
			if structured == nil {
				full = fmt.Sprintf("Stub response to: %s", req.Prompt)
			}
		}
		final.Text = full

		if req.Stream && full != "" {
			for _, word := range strings.SplitAfter(full, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: word}:
				}
			}
		}
		respCh <- final
	}()

	return respCh, errCh
}

func hasTool(tools []Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// generateToolCall runs the configured tool handler and reports the result as
// the final text, mimicking a service-side function-calling loop.
func (m *StubModel) generateToolCall(ctx context.Context, req Request, toolName string, delta core.Delta, respCh chan<- Response, errCh chan<- error) {
	var target *Tool
	for i := range req.Tools {
		if req.Tools[i].Name == toolName {
			target = &req.Tools[i]
			break
		}
	}
	if target == nil {
		errCh <- fmt.Errorf("stub configured to invoke unknown tool %q", toolName)
		return
	}

	inv := ToolInvocation{Name: toolName, Arguments: req.Prompt}
	result, err := target.Handler(ctx, req.Prompt)
	if err != nil {
		inv.Error = err.Error()
	}
	inv.Result = result

	// Tool loop costs a second underlying request.
	respCh <- Response{
		Text:            result,
		ToolInvocations: []ToolInvocation{inv},
		FinishReason:    "stop",
		Usage:           delta.Add(delta),
	}
}
