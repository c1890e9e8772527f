// Package openai implements the reasoning backend on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-rag/backend"
	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/engine"
)

// DefaultMaxTokens caps each GPT response.
const DefaultMaxTokens = 2000

var _ backend.Provider = (*Provider)(nil)

// Provider builds OpenAI chat backends.
type Provider struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// Family returns backend.FamilyOpenAI.
func (p *Provider) Family() backend.Family {
	return backend.FamilyOpenAI
}

// New creates a backend for the given chat model.
func (p *Provider) New(ctx context.Context, model string) (engine.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := openai.DefaultConfig(p.APIKey)
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Backend{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Backend calls an OpenAI chat model.
type Backend struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// Model returns the chat model name.
func (b *Backend) Model() string {
	return b.model
}

// Complete sends the transcript and returns the model's next message.
func (b *Backend) Complete(ctx context.Context, req *engine.Request) (*core.Message, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    toChatMessages(req.System, req.Messages),
		MaxTokens:   b.maxTokens,
		Temperature: wireTemperature(req.Temperature),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toTools(req.Tools)
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, &core.BackendError{Provider: string(backend.FamilyOpenAI), Op: "complete", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &core.BackendError{Provider: string(backend.FamilyOpenAI), Op: "complete", Err: errors.New("no choices returned")}
	}
	return fromChatMessage(resp.Choices[0].Message), nil
}

// wireTemperature converts t for the request. go-openai omits a zero
// temperature, which the API reads as 1, so 0 is sent as the smallest
// positive float32.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toChatMessages(system string, messages []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range messages {
		switch m.Role {
		case core.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Text,
				ToolCallID: m.ToolCallID,
			})
		case core.RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Text,
			}
			for _, call := range m.ToolCalls {
				args := string(call.Input)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, msg)
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Text,
			})
		}
	}
	return out
}

func toTools(defs []core.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.ToolName,
				Description: d.ToolDescription,
				Parameters:  d.InputSchema,
			},
		})
	}
	return out
}

func fromChatMessage(m openai.ChatCompletionMessage) *core.Message {
	msg := &core.Message{Role: core.RoleAssistant, Text: m.Content}
	for _, call := range m.ToolCalls {
		input := json.RawMessage(call.Function.Arguments)
		if !json.Valid(input) {
			// Invalid arguments are passed on as a JSON string.
			quoted, _ := json.Marshal(call.Function.Arguments)
			input = quoted
		}
		msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return msg
}
