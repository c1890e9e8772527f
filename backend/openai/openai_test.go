package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/engine"
)

func TestToChatMessages(t *testing.T) {
	msgs := toChatMessages("be brief", []core.Message{
		{Role: core.RoleUser, Text: "q"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{
			{ID: "a", Name: "document_retriever", Input: json.RawMessage(`{"query":"x"}`)},
			{ID: "b", Name: "summarizer"},
		}},
		{Role: core.RoleTool, ToolCallID: "a", Text: "found"},
		{Role: core.RoleTool, ToolCallID: "b", Text: "Error: boom", IsError: true},
	})

	require.Len(t, msgs, 5)
	require.Equal(t, "system", msgs[0].Role)
	require.Equal(t, "user", msgs[1].Role)
	require.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 2)
	require.Equal(t, `{"query":"x"}`, msgs[2].ToolCalls[0].Function.Arguments)
	require.Equal(t, "{}", msgs[2].ToolCalls[1].Function.Arguments)
	require.Equal(t, "tool", msgs[3].Role)
	require.Equal(t, "a", msgs[3].ToolCallID)
	require.Equal(t, "b", msgs[4].ToolCallID)
}

func TestBackend_Complete(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o",
			"choices": []interface{}{map[string]interface{}{
				"index":         0,
				"finish_reason": "tool_calls",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "",
					"tool_calls": []interface{}{map[string]interface{}{
						"id":   "call_1",
						"type": "function",
						"function": map[string]interface{}{
							"name":      "document_retriever",
							"arguments": `{"query":"refunds"}`,
						},
					}},
				},
			}},
		})
	}))
	defer server.Close()

	p := &Provider{APIKey: "test", BaseURL: server.URL + "/v1"}
	b, err := p.New(context.Background(), "gpt-4o")
	require.NoError(t, err)

	msg, err := b.Complete(context.Background(), &engine.Request{
		System:      "sys",
		Messages:    []core.Message{{Role: core.RoleUser, Text: "How long do refunds take?"}},
		Temperature: 0.5,
		Tools: []core.ToolDefinition{{
			ToolName:    "document_retriever",
			InputSchema: map[string]interface{}{"type": "object"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "call_1", msg.ToolCalls[0].ID)
	require.JSONEq(t, `{"query":"refunds"}`, string(msg.ToolCalls[0].Input))

	require.Equal(t, "gpt-4o", got["model"])
	require.EqualValues(t, DefaultMaxTokens, got["max_tokens"])
	require.Len(t, got["tools"], 1)
	require.InDelta(t, 0.5, got["temperature"], 1e-6)
}

func TestBackend_ZeroTemperatureIsSent(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-2",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []interface{}{map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": "30 days."},
			}},
		})
	}))
	defer server.Close()

	p := &Provider{APIKey: "test", BaseURL: server.URL + "/v1"}
	b, err := p.New(context.Background(), "gpt-4o")
	require.NoError(t, err)

	msg, err := b.Complete(context.Background(), &engine.Request{
		Messages:    []core.Message{{Role: core.RoleUser, Text: "How long do refunds take?"}},
		Temperature: 0,
	})
	require.NoError(t, err)
	require.Equal(t, "30 days.", msg.Text)

	temp, ok := got["temperature"]
	require.True(t, ok, "temperature missing from request")
	require.InDelta(t, 0, temp, 1e-6)
}

func TestBackend_ErrorIsBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := &Provider{APIKey: "test", BaseURL: server.URL + "/v1"}
	b, err := p.New(context.Background(), "gpt-4o")
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), &engine.Request{
		Messages: []core.Message{{Role: core.RoleUser, Text: "q"}},
	})
	var be *core.BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "openai", be.Provider)
}

func TestFromChatMessage_InvalidArguments(t *testing.T) {
	msg := fromChatMessage(goopenai.ChatCompletionMessage{
		Role: goopenai.ChatMessageRoleAssistant,
		ToolCalls: []goopenai.ToolCall{{
			ID:       "call_1",
			Type:     goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{Name: "document_retriever", Arguments: `{"query":`},
		}},
	})
	require.Len(t, msg.ToolCalls, 1)
	require.JSONEq(t, `"{\"query\":"`, string(msg.ToolCalls[0].Input))
}

func TestProvider_RequiresKey(t *testing.T) {
	_, err := (&Provider{}).New(context.Background(), "gpt-4o")
	require.Error(t, err)
}
