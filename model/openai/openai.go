// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including streaming, structured output and
// function/tool calling). It adapts the normalized Request/Response
// structures into the SDK's message format and back. Tool handlers run
// inside the adapter: a single logical Generate call may issue several
// underlying requests, all reflected in the final usage delta.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/internal/util"
	"github.com/hupe1980/callcentre/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete calls when a finish reason is emitted.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// MaxToolIterations bounds the internal function-calling loop.
	MaxToolIterations int
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		MaxToolIterations:   4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation with an
// internal tool-execution loop.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		m.run(ctx, req, out, errCh)
	}()
	return out, errCh
}

// run drives up to MaxToolIterations model calls, executing tool handlers
// between calls, and emits exactly one final response on success.
func (m *Model) run(ctx context.Context, req model.Request, out chan<- model.Response, errCh chan<- error) {
	messages := buildMessages(req)
	var usage core.Delta
	var invocations []model.ToolInvocation

	for iteration := 0; iteration <= m.opts.MaxToolIterations; iteration++ {
		params := m.buildParams(req, messages)

		var text, finishReason string
		var calls []aggCall
		var err error
		if req.Stream {
			text, finishReason, calls, err = m.callStreaming(ctx, params, &usage, out)
		} else {
			text, finishReason, calls, err = m.callOnce(ctx, params, &usage)
		}
		if err != nil {
			errCh <- err
			return
		}

		if len(calls) == 0 {
			final := model.Response{
				Text:            text,
				ToolInvocations: invocations,
				FinishReason:    finishReason,
				Usage:           usage,
			}
			if req.ResponseSchema != nil && json.Valid([]byte(text)) {
				final.Structured = json.RawMessage(text)
			}
			select {
			case out <- final:
			case <-ctx.Done():
				errCh <- ctx.Err()
			}
			return
		}

		messages = append(messages, assistantToolCallMessage(calls))
		for _, call := range calls {
			inv := executeTool(ctx, req.Tools, call)
			invocations = append(invocations, inv)
			content := inv.Result
			if inv.Error != "" {
				content = fmt.Sprintf("error: %s", inv.Error)
			}
			messages = append(messages, openai.ToolMessage(content, call.id))
		}
	}

	errCh <- fmt.Errorf("tool iteration limit (%d) exceeded", m.opts.MaxToolIterations)
}

// executeTool dispatches a single aggregated call to the matching handler.
// Tools accept one string argument named "prompt".
func executeTool(ctx context.Context, tools []model.Tool, call aggCall) model.ToolInvocation {
	inv := model.ToolInvocation{Name: call.name, Arguments: call.args}
	var target *model.Tool
	for i := range tools {
		if tools[i].Name == call.name {
			target = &tools[i]
			break
		}
	}
	if target == nil {
		inv.Error = fmt.Sprintf("unknown tool %q", call.name)
		return inv
	}

	prompt, err := util.ParseToolArgs([]byte(call.args))
	if err != nil {
		inv.Error = err.Error()
		return inv
	}

	result, err := target.Handler(ctx, prompt)
	if err != nil {
		inv.Error = err.Error()
		return inv
	}
	inv.Result = result
	return inv
}

// buildMessages converts the normalized request into OpenAI chat messages.
// The call's own instructions become the sole system message; system turns in
// the history were filtered by the caller and are skipped defensively here.
// Tool-result turns are replayed as assistant context because persisted turns
// carry no provider call ids.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, t := range req.History {
		switch t.Role {
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		case core.RoleTool:
			messages = append(messages, openai.AssistantMessage(fmt.Sprintf("[%s] %s", t.ToolName, t.Content)))
		}
	}
	if req.Prompt != "" {
		messages = append(messages, openai.UserMessage(req.Prompt))
	}
	return messages
}

// assistantToolCallMessage rebuilds the assistant turn that requested the
// aggregated tool calls so follow-up tool messages attach correctly.
func assistantToolCallMessage(calls []aggCall) openai.ChatCompletionMessageParamUnion {
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, call := range calls {
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   call.id,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.name,
				Arguments: call.args,
			},
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}}
}

// buildParams assembles the OpenAI request parameters including tool
// definitions and an optional JSON schema response format.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  util.ToolArgsSchema(),
				},
			}
		}
		params.Tools = tools
	}
	if req.ResponseSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.ResponseSchema.Name,
					Description: openai.String(req.ResponseSchema.Description),
					Schema:      req.ResponseSchema.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}
	return params
}

// callOnce performs one non-streaming completion, merging its usage into the
// running delta and returning text plus any requested tool calls.
func (m *Model) callOnce(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	usage *core.Delta,
) (string, string, []aggCall, error) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", "", nil, fmt.Errorf("openai api error: %w", err)
	}
	*usage = usage.Add(core.Delta{
		Requests:         1,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	})
	if len(resp.Choices) == 0 {
		return "", "", nil, fmt.Errorf("no choices returned")
	}
	ch0 := resp.Choices[0]
	calls := make([]aggCall, 0, len(ch0.Message.ToolCalls))
	for _, tc := range ch0.Message.ToolCalls {
		calls = append(calls, aggCall{id: tc.ID, name: tc.Function.Name, args: tc.Function.Arguments})
	}
	return ch0.Message.Content, ch0.FinishReason, calls, nil
}

// callStreaming performs one streaming completion, forwarding text fragments
// as partial responses and aggregating tool call deltas.
func (m *Model) callStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	usage *core.Delta,
	out chan<- model.Response,
) (string, string, []aggCall, error) {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var textBuilder strings.Builder
	var finishReason string
	toolAgg := map[int64]*aggCall{}
	order := []int64{}

	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.TotalTokens > 0 {
			*usage = usage.Add(core.Delta{
				Requests:         1,
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			})
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				if !sendPartial(ctx, out, ch.Delta.Content) {
					return "", "", nil, ctx.Err()
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					ac.args += tc.Function.Arguments
				}
			}
			if ch.FinishReason != "" {
				finishReason = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", "", nil, fmt.Errorf("openai streaming error: %w", err)
	}

	calls := make([]aggCall, 0, len(order))
	for _, idx := range order {
		calls = append(calls, *toolAgg[idx])
	}
	return textBuilder.String(), finishReason, calls, nil
}

// sendPartial forwards one text fragment without blocking past cancellation;
// an abandoned consumer must not pin the producer goroutine.
func sendPartial(ctx context.Context, out chan<- model.Response, text string) bool {
	select {
	case out <- model.Response{Partial: true, Text: text}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
