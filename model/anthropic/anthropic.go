// Package anthropic provides a model wrapper for the Anthropic Claude API.
// Tool handlers run inside the adapter; structured output is emulated by
// instructing the model to answer with JSON matching the requested schema.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/internal/util"
	"github.com/hupe1980/callcentre/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// MaxToolIterations bounds the internal tool-use loop.
	MaxToolIterations int
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:             anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:       0.7,
		MaxTokens:         4096,
		MaxToolIterations: 4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:             anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:       0.7,
		MaxTokens:         4096,
		MaxToolIterations: 4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements model.Model for the Anthropic Messages API.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if req.Stream {
			// TODO: translate anthropic.MessageStreamEvent into partial
			// responses once the tool-use loop supports mid-stream results.
			errCh <- fmt.Errorf("streaming not yet implemented for Anthropic model")
			return
		}

		m.run(ctx, req, out, errCh)
	}()

	return out, errCh
}

// run drives up to MaxToolIterations message calls, executing tool handlers
// between calls, and emits exactly one final response on success.
func (m *Model) run(ctx context.Context, req model.Request, out chan<- model.Response, errCh chan<- error) {
	messages := buildMessages(req)
	var usage core.Delta
	var invocations []model.ToolInvocation

	for iteration := 0; iteration <= m.opts.MaxToolIterations; iteration++ {
		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    messages,
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if system := systemBlocks(req); len(system) > 0 {
			params.System = system
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}
		usage = usage.Add(core.Delta{
			Requests:         1,
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		})

		text, toolUses := splitContent(resp.Content)

		if len(toolUses) == 0 {
			final := model.Response{
				Text:            text,
				ToolInvocations: invocations,
				FinishReason:    string(resp.StopReason),
				Usage:           usage,
			}
			if req.ResponseSchema != nil && json.Valid([]byte(text)) {
				final.Structured = json.RawMessage(text)
			}
			out <- final
			return
		}

		// Replay the assistant turn, then answer each tool_use block with a
		// tool_result block in a single user message.
		assistantBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(toolUses)+1)
		if text != "" {
			assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(text))
		}
		resultBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(toolUses))
		for _, tu := range toolUses {
			var input any
			if err := json.Unmarshal(tu.args, &input); err != nil {
				input = string(tu.args)
			}
			assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(tu.id, input, tu.name))

			inv := executeTool(ctx, req.Tools, tu)
			invocations = append(invocations, inv)
			content := inv.Result
			if inv.Error != "" {
				content = fmt.Sprintf("error: %s", inv.Error)
			}
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(tu.id, content, inv.Error != ""))
		}
		messages = append(messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(resultBlocks...),
		)
	}

	errCh <- fmt.Errorf("tool iteration limit (%d) exceeded", m.opts.MaxToolIterations)
}

// toolUse captures a tool_use block surfaced by the API.
type toolUse struct {
	id, name string
	args     json.RawMessage
}

// splitContent separates response blocks into joined text and tool uses.
func splitContent(blocks []anthropic.ContentBlockUnion) (string, []toolUse) {
	var text string
	var uses []toolUse
	for _, block := range blocks {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			tb := block.AsToolUse()
			args, err := json.Marshal(tb.Input)
			if err != nil {
				args = nil
			}
			uses = append(uses, toolUse{id: tb.ID, name: tb.Name, args: args})
		}
	}
	return text, uses
}

// executeTool dispatches one tool_use block to the matching handler. Tools
// accept one string argument named "prompt".
func executeTool(ctx context.Context, tools []model.Tool, tu toolUse) model.ToolInvocation {
	inv := model.ToolInvocation{Name: tu.name, Arguments: string(tu.args)}
	var target *model.Tool
	for i := range tools {
		if tools[i].Name == tu.name {
			target = &tools[i]
			break
		}
	}
	if target == nil {
		inv.Error = fmt.Sprintf("unknown tool %q", tu.name)
		return inv
	}

	prompt, err := util.ParseToolArgs(tu.args)
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

// buildMessages converts the normalized request into Anthropic messages.
// System turns were filtered by the caller; tool-result turns are replayed as
// assistant context because persisted turns carry no provider call ids.
func buildMessages(req model.Request) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, t := range req.History {
		switch t.Role {
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		case core.RoleTool:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(fmt.Sprintf("[%s] %s", t.ToolName, t.Content))))
		}
	}
	if req.Prompt != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	}
	return messages
}

// systemBlocks assembles the system prompt, appending a JSON instruction when
// structured output was requested (the Messages API has no response_format).
func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	if req.ResponseSchema != nil {
		schema, err := json.Marshal(req.ResponseSchema.Schema)
		if err == nil {
			blocks = append(blocks, anthropic.TextBlockParam{
				Text: fmt.Sprintf(
					"Respond with a single JSON object matching this schema, without markdown fences:\n%s",
					string(schema),
				),
			})
		}
	}
	return blocks
}

// buildTools converts normalized tools to the Anthropic tool format.
func buildTools(tools []model.Tool) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	schema := util.ToolArgsSchema()
	properties, _ := schema["properties"].(map[string]any)
	required, _ := schema["required"].([]string)
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: properties,
			Required:   required,
		}
		tu := anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		tu.OfTool.Description = anthropic.String(t.Description)
		anthropicTools[i] = tu
	}
	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
