package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/becomeliminal/nim-rag/agent"
	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/retrieval"
)

var (
	errorColor  = color.New(color.FgRed, color.Bold)
	promptColor = color.New(color.FgGreen, color.Bold)
	answerColor = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.Faint)
	headerColor = color.New(color.FgYellow, color.Bold)
)

// reasoningInputPreview caps the tool input shown per reasoning step.
const reasoningInputPreview = 100

func printAnswer(ans *agent.Answer) {
	if ans.Err != nil {
		fmt.Println(errorColor.Sprint(ans.Text))
		return
	}
	fmt.Printf("%s %s\n", answerColor.Sprint("Assistant:"), ans.Text)
}

func printReasoning(traces []*core.Trace) {
	if len(traces) == 0 {
		fmt.Println(dimColor.Sprint("(answered without tools)"))
		return
	}
	headerColor.Println("Reasoning steps:")
	for i, t := range traces {
		fmt.Printf("  %d. %s\n", i+1, t.Action)
		if t.Thought != "" {
			fmt.Printf("     thought: %s\n", t.Thought)
		}
		fmt.Printf("     input:   %s\n", clip(string(t.ActionInput), reasoningInputPreview))
		status := "ok"
		if !t.Success {
			status = "failed"
		}
		fmt.Printf("     %s (%dms)\n", dimColor.Sprint(status), t.DurationMs)
	}
}

func printScores(scored []core.ScoredChunk) {
	if len(scored) == 0 {
		fmt.Println(dimColor.Sprint(retrieval.NoDocumentsFound))
		return
	}
	headerColor.Println("Retrieved chunks:")
	for i, s := range scored {
		fmt.Printf("  %d. [%.4f] %s p.%d: %s\n", i+1, s.Score, s.Source, s.Page,
			retrieval.Excerpt(s.Text, 120))
	}
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
