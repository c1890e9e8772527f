// Package anthropic implements the reasoning backend on the Claude Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/nim-rag/backend"
	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/engine"
)

// DefaultMaxTokens caps each Claude response.
const DefaultMaxTokens = 4096

var _ backend.Provider = (*Provider)(nil)

// Provider builds Claude backends.
type Provider struct {
	APIKey    string
	BaseURL   string
	MaxTokens int64

	// Options are appended to the client options, after the API key and base URL.
	Options []option.RequestOption
}

// Family returns backend.FamilyAnthropic.
func (p *Provider) Family() backend.Family {
	return backend.FamilyAnthropic
}

// New creates a backend for the given Claude model.
func (p *Provider) New(ctx context.Context, model string) (engine.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(p.APIKey)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	opts = append(opts, p.Options...)

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Backend{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Backend calls Claude.
type Backend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Model returns the Claude model name.
func (b *Backend) Model() string {
	return b.model
}

// Complete sends the transcript and returns Claude's next message.
func (b *Backend) Complete(ctx context.Context, req *engine.Request) (*core.Message, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   b.maxTokens,
		Messages:    toMessageParams(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &core.BackendError{Provider: string(backend.FamilyAnthropic), Op: "complete", Err: err}
	}
	return fromResponse(resp), nil
}

// toMessageParams converts the transcript. Consecutive tool results are
// grouped into one user message, as the Messages API requires.
func toMessageParams(messages []core.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case core.RoleTool:
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Text, m.IsError))

		case core.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Text) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			for _, call := range m.ToolCalls {
				input := call.Input
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	flush()
	return out
}

func toToolParams(defs []core.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		tool := &anthropic.ToolParam{
			Name: d.ToolName,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: d.Properties(),
				Required:   d.Required(),
			},
		}
		if d.ToolDescription != "" {
			tool.Description = anthropic.String(d.ToolDescription)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out
}

func fromResponse(resp *anthropic.Message) *core.Message {
	msg := &core.Message{Role: core.RoleAssistant}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			input, err := json.Marshal(block.Input)
			if err != nil || len(input) == 0 || string(input) == "null" {
				input = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	msg.Text = text.String()
	return msg
}
