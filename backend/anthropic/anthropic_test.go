package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/engine"
)

type wireRequest struct {
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string `json:"type"`
			ToolUseID string `json:"tool_use_id"`
			IsError   bool   `json:"is_error"`
		} `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

func TestBackend_Complete(t *testing.T) {
	var got wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-opus-4-6",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Searching."},
				{"type": "tool_use", "id": "tu_2", "name": "document_retriever", "input": {"query": "fees"}}
			],
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	p := &Provider{APIKey: "test", BaseURL: server.URL, Options: []option.RequestOption{option.WithMaxRetries(0)}}
	b, err := p.New(context.Background(), "claude-opus-4-6")
	require.NoError(t, err)

	msg, err := b.Complete(context.Background(), &engine.Request{
		System:      "sys",
		Temperature: 0.2,
		Messages: []core.Message{
			{Role: core.RoleUser, Text: "q"},
			{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{
				{ID: "a", Name: "document_retriever", Input: json.RawMessage(`{"query":"x"}`)},
				{ID: "b", Name: "conversation_memory", Input: json.RawMessage(`{"query":"y"}`)},
			}},
			{Role: core.RoleTool, ToolCallID: "a", Text: "found"},
			{Role: core.RoleTool, ToolCallID: "b", Text: "Error: boom", IsError: true},
		},
		Tools: []core.ToolDefinition{{
			ToolName:        "document_retriever",
			ToolDescription: "search",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
				"required":   []string{"query"},
			},
		}},
	})
	require.NoError(t, err)

	require.Equal(t, "Searching.", msg.Text)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "tu_2", msg.ToolCalls[0].ID)
	require.JSONEq(t, `{"query":"fees"}`, string(msg.ToolCalls[0].Input))

	require.Equal(t, "claude-opus-4-6", got.Model)
	require.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	require.InDelta(t, 0.2, *got.Temperature, 1e-9)
	require.Len(t, got.Tools, 1)

	// Both tool results travel in a single user message.
	require.Len(t, got.Messages, 3)
	require.Equal(t, "user", got.Messages[2].Role)
	require.Len(t, got.Messages[2].Content, 2)
	require.Equal(t, "tool_result", got.Messages[2].Content[0].Type)
	require.Equal(t, "a", got.Messages[2].Content[0].ToolUseID)
	require.Equal(t, "b", got.Messages[2].Content[1].ToolUseID)
	require.True(t, got.Messages[2].Content[1].IsError)
}

func TestBackend_ErrorIsBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	p := &Provider{APIKey: "test", BaseURL: server.URL, Options: []option.RequestOption{option.WithMaxRetries(0)}}
	b, err := p.New(context.Background(), "claude-opus-4-6")
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), &engine.Request{
		Messages: []core.Message{{Role: core.RoleUser, Text: "q"}},
	})
	var be *core.BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "anthropic", be.Provider)
}

func TestToMessageParams_SkipsEmptyAssistant(t *testing.T) {
	params := toMessageParams([]core.Message{
		{Role: core.RoleUser, Text: "q"},
		{Role: core.RoleAssistant},
	})
	require.Len(t, params, 1)
}

func TestProvider_RequiresKey(t *testing.T) {
	_, err := (&Provider{}).New(context.Background(), "claude-opus-4-6")
	require.Error(t, err)
}
