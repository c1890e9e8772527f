package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-rag/core"
)

// Tool names as the model sees them.
const (
	RetrieverToolName  = "document_retriever"
	SummarizerToolName = "summarizer"
	MemoryToolName     = "conversation_memory"
)

// summarizeInputLimit caps the runes of text sent to the model for summarization.
const summarizeInputLimit = 2000

// DocumentSearcher renders retrieval results for a query as text.
// retrieval.Retriever satisfies it.
type DocumentSearcher interface {
	Format(ctx context.Context, query string) string
}

// HistorySearcher looks up past exchanges by keyword.
// memory.Conversation satisfies it.
type HistorySearcher interface {
	SearchHistory(keyword string) string
}

// Completer produces a single completion for a prompt with the current model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Deps are the collaborators the RAG tools need.
type Deps struct {
	Documents DocumentSearcher
	History   HistorySearcher
	Completer Completer
}

// RAGTools returns the retriever, summarizer and conversation memory tools.
// Tools whose dependency is nil are omitted.
func RAGTools(deps Deps) []core.Tool {
	var out []core.Tool
	if deps.Documents != nil {
		out = append(out, NewRetrieverTool(deps.Documents))
	}
	if deps.Completer != nil {
		out = append(out, NewSummarizerTool(deps.Completer))
	}
	if deps.History != nil {
		out = append(out, NewMemoryTool(deps.History))
	}
	return out
}

// NewRetrieverTool searches the ingested document.
func NewRetrieverTool(docs DocumentSearcher) core.Tool {
	return New(RetrieverToolName).
		Description("Search the document database for relevant information. " +
			"Use this when you need to find specific information from the uploaded documents. " +
			"Input should be a clear search query or question. " +
			"Returns relevant document excerpts.").
		Schema(BuildSchemaWithThought(map[string]interface{}{
			"query": StringProperty("A clear search query or question"),
		}, false, "query")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input core.QueryInput
			if err := decode(params, &input, &input.Query); err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &core.ToolResult{Success: true, Data: docs.Format(ctx, input.Query)}, nil
		}).
		Build()
}

// NewSummarizerTool condenses text with the current model.
func NewSummarizerTool(c Completer) core.Tool {
	return New(SummarizerToolName).
		Description("Summarize long text into concise points. " +
			"Use this when you need to condense retrieved information. " +
			"Input should be the text to summarize. " +
			"Returns a concise summary.").
		Schema(BuildSchemaWithThought(map[string]interface{}{
			"text": StringProperty("The text to summarize"),
		}, false, "text")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input core.TextInput
			if err := decode(params, &input, &input.Text); err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			summary, err := c.Complete(ctx, SummaryPrompt(input.Text))
			if err != nil {
				return &core.ToolResult{Success: true, Data: fmt.Sprintf("Error summarizing: %v", err)}, nil
			}
			return &core.ToolResult{Success: true, Data: strings.TrimSpace(summary)}, nil
		}).
		Build()
}

// NewMemoryTool searches earlier questions and answers of this conversation.
func NewMemoryTool(h HistorySearcher) core.Tool {
	return New(MemoryToolName).
		Description("Access previous conversation history. " +
			"Use this when the user references something from earlier in the conversation, " +
			"or when context from previous Q&As would be helpful. " +
			"Input should be a keyword or topic to search for. " +
			"Returns relevant past exchanges.").
		Schema(BuildSchemaWithThought(map[string]interface{}{
			"query": StringProperty("A keyword or topic to look for in earlier exchanges"),
		}, false, "query")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input core.QueryInput
			if err := decode(params, &input, &input.Query); err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &core.ToolResult{Success: true, Data: h.SearchHistory(input.Query)}, nil
		}).
		Build()
}

// SummaryPrompt builds the summarization prompt over the first part of text.
func SummaryPrompt(text string) string {
	runes := []rune(text)
	if len(runes) > summarizeInputLimit {
		runes = runes[:summarizeInputLimit]
	}
	return fmt.Sprintf("Summarize the following text concisely in 2-3 sentences:\n\n%s\n\nSummary:", string(runes))
}

// decode unmarshals the tool input into v. Models sometimes send a bare JSON
// string instead of an object; that string is stored in fallback.
func decode(params *core.ToolParams, v interface{}, fallback *string) error {
	if params == nil || len(params.Input) == 0 {
		return fmt.Errorf("missing input")
	}
	if err := json.Unmarshal(params.Input, v); err == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(params.Input, &s); err == nil {
		*fallback = s
		return nil
	}
	return fmt.Errorf("invalid input: %s", string(params.Input))
}
