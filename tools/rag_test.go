package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/tools"
)

type fakeDocs struct{ lastQuery string }

func (f *fakeDocs) Format(ctx context.Context, query string) string {
	f.lastQuery = query
	return "Found 1 relevant documents:\n\n[Document 1]\nrefunds take 30 days...\n"
}

type fakeHistory struct{}

func (fakeHistory) SearchHistory(keyword string) string { return "history for " + keyword }

type fakeCompleter struct {
	prompt string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return "  A short summary.  ", nil
}

func run(t *testing.T, tool core.Tool, input string) *core.ToolResult {
	t.Helper()
	res, err := tool.Execute(context.Background(), &core.ToolParams{Input: json.RawMessage(input)})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	return res
}

func TestRAGTools_Names(t *testing.T) {
	ts := tools.RAGTools(tools.Deps{
		Documents: &fakeDocs{},
		History:   fakeHistory{},
		Completer: &fakeCompleter{},
	})

	var names []string
	for _, tool := range ts {
		names = append(names, tool.Name())
	}
	want := []string{"document_retriever", "summarizer", "conversation_memory"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("Expected %v, got %v", want, names)
	}
}

func TestRAGTools_SkipsMissingDeps(t *testing.T) {
	ts := tools.RAGTools(tools.Deps{Documents: &fakeDocs{}})
	if len(ts) != 1 || ts[0].Name() != tools.RetrieverToolName {
		t.Fatalf("Expected only the retriever, got %d tools", len(ts))
	}
}

func TestRetrieverTool(t *testing.T) {
	docs := &fakeDocs{}
	tool := tools.NewRetrieverTool(docs)

	res := run(t, tool, `{"query":"refund policy","thought":"need the policy"}`)
	if !res.Success {
		t.Fatalf("Expected success, got error %q", res.Error)
	}
	if docs.lastQuery != "refund policy" {
		t.Errorf("Expected query to be forwarded, got %q", docs.lastQuery)
	}
	if !strings.HasPrefix(res.Data.(string), "Found 1 relevant documents:") {
		t.Errorf("Unexpected output: %v", res.Data)
	}
}

func TestRetrieverTool_AcceptsBareString(t *testing.T) {
	docs := &fakeDocs{}
	run(t, tools.NewRetrieverTool(docs), `"refund policy"`)
	if docs.lastQuery != "refund policy" {
		t.Errorf("Expected bare string input to be used as query, got %q", docs.lastQuery)
	}
}

func TestRetrieverTool_InvalidInput(t *testing.T) {
	res := run(t, tools.NewRetrieverTool(&fakeDocs{}), `not json`)
	if res.Success {
		t.Fatalf("Expected failure for invalid input")
	}
}

func TestSummarizerTool(t *testing.T) {
	c := &fakeCompleter{}
	long := strings.Repeat("a", 2500)

	res := run(t, tools.NewSummarizerTool(c), `{"text":"`+long+`"}`)
	if res.Data != "A short summary." {
		t.Errorf("Expected trimmed summary, got %q", res.Data)
	}
	if !strings.HasPrefix(c.prompt, "Summarize the following text concisely in 2-3 sentences:\n\n") {
		t.Errorf("Unexpected prompt: %q", c.prompt)
	}
	if strings.Contains(c.prompt, strings.Repeat("a", 2001)) {
		t.Errorf("Expected input to be cut to 2000 characters")
	}
	if !strings.HasSuffix(c.prompt, "\n\nSummary:") {
		t.Errorf("Expected prompt to end with Summary:, got %q", c.prompt[len(c.prompt)-20:])
	}
}

func TestSummarizerTool_ErrorBecomesText(t *testing.T) {
	c := &fakeCompleter{err: errors.New("rate limited")}

	res := run(t, tools.NewSummarizerTool(c), `{"text":"something"}`)
	if res.Data != "Error summarizing: rate limited" {
		t.Errorf("Unexpected output: %v", res.Data)
	}
}

func TestMemoryTool(t *testing.T) {
	res := run(t, tools.NewMemoryTool(fakeHistory{}), `{"query":"refund"}`)
	if res.Data != "history for refund" {
		t.Errorf("Unexpected output: %v", res.Data)
	}
}

func TestWithThought_DoesNotMutateInput(t *testing.T) {
	props := map[string]interface{}{"query": tools.StringProperty("q")}
	schema := tools.ObjectSchema(props, "query")

	out := tools.WithThought(schema, true)

	if _, ok := props["thought"]; ok {
		t.Errorf("Input properties were modified")
	}
	outProps := out["properties"].(map[string]interface{})
	if _, ok := outProps["thought"]; !ok {
		t.Errorf("Expected thought property in output")
	}
	req := out["required"].([]string)
	if len(req) != 2 || req[1] != "thought" {
		t.Errorf("Expected thought to be required, got %v", req)
	}
}
