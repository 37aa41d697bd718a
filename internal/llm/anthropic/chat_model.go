package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultMaxTokens = 1024

// Config for one Claude handle.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float32
}

// ChatModel adapts the Anthropic Messages API to eino's ToolCallingChatModel.
type ChatModel struct {
	client *anthropic.Client
	cfg    Config
	tools  []anthropic.ToolUnionParam
}

var _ einomodel.ToolCallingChatModel = (*ChatModel)(nil)

// NewChatModel builds a client from cfg. Extra request options are appended
// after the ones derived from cfg.
func NewChatModel(cfg Config, opts ...option.RequestOption) (*ChatModel, error) {
	if cfg.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	client := anthropic.NewClient(clientOpts...)
	return &ChatModel{client: &client, cfg: cfg}, nil
}

func (m *ChatModel) GetType() string { return "Anthropic" }

// WithTools returns a copy of the model with the tools bound; m is unchanged.
func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	converted, err := convertTools(tools)
	if err != nil {
		return nil, err
	}
	out := *m
	out.tools = converted
	return &out, nil
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	params, err := m.buildParams(input, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &schema.Message{Role: schema.Assistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args := string(tu.Input)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID:       tu.ID,
				Function: schema.FunctionCall{Name: tu.Name, Arguments: args},
			})
		}
	}
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.StopReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	return out, nil
}

// Stream emits the whole Generate result as a single chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) buildParams(input []*schema.Message, opts ...einomodel.Option) (anthropic.MessageNewParams, error) {
	maxTokens := m.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	common := einomodel.GetCommonOptions(&einomodel.Options{
		MaxTokens:   &maxTokens,
		Temperature: m.cfg.Temperature,
	}, opts...)

	system, messages := convertMessages(input)
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, errors.New("anthropic: no user or assistant messages")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.cfg.Model),
		Messages:  messages,
		MaxTokens: int64(*common.MaxTokens),
		System:    system,
		Tools:     m.tools,
	}
	if common.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*common.Temperature))
	}
	if len(common.Tools) > 0 {
		tools, err := convertTools(common.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// convertMessages splits out system text and folds tool results into user
// turns. Consecutive turns of the same role are merged because the API
// expects strict alternation.
func convertMessages(input []*schema.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system []anthropic.TextBlockParam
		out    []anthropic.MessageParam
	)
	push := func(role anthropic.MessageParamRole, blocks []anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		if role == anthropic.MessageParamRoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}

	for _, m := range input {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			if m.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case schema.Tool:
			push(anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			})
		case schema.Assistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Function.Arguments), tc.Function.Name))
			}
			push(anthropic.MessageParamRoleAssistant, blocks)
		default:
			if m.Content != "" {
				push(anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)})
			}
		}
	}
	return system, out
}

func toolInput(arguments string) any {
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	return map[string]any{}
}

type objectSchema struct {
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

func convertTools(tools []*schema.ToolInfo) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: map[string]any{},
		}
		if t.ParamsOneOf != nil {
			js, err := t.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("anthropic: schema for tool %s: %w", t.Name, err)
			}
			raw, err := json.Marshal(js)
			if err != nil {
				return nil, fmt.Errorf("anthropic: schema for tool %s: %w", t.Name, err)
			}
			var obj objectSchema
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("anthropic: schema for tool %s: %w", t.Name, err)
			}
			if obj.Properties != nil {
				inputSchema.Properties = obj.Properties
			}
			inputSchema.Required = obj.Required
		}

		u := anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if t.Desc != "" {
			u.OfTool.Description = anthropic.String(t.Desc)
		}
		out = append(out, u)
	}
	return out, nil
}
