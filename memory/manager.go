package memory

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/becomeliminal/nim-rag/core"
)

const (
	contextAnswerPreview = 200
	searchAnswerPreview  = 150
	searchMaxResults     = 3
)

// Conversation is the in-memory conversation log.
// It is safe for concurrent use; readers never observe a turn without the
// pair it produced.
type Conversation struct {
	mu    sync.RWMutex
	turns []core.Turn
	pairs []core.Pair
}

// NewConversation creates an empty conversation log.
func NewConversation() *Conversation {
	return &Conversation{}
}

// AddUser appends a user turn.
func (c *Conversation) AddUser(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addUser(text)
}

func (c *Conversation) addUser(text string) {
	c.turns = append(c.turns, core.Turn{Role: core.RoleUser, Text: text})
}

// AddAssistant appends an assistant turn and pairs it with the nearest
// preceding user turn.
//
// Only the nearest user turn is paired: with two user turns in a row the
// earlier one never gets a pair. An assistant turn with no non-empty user
// turn before it produces no pair.
func (c *Conversation) AddAssistant(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addAssistant(text)
}

func (c *Conversation) addAssistant(text string) {
	c.turns = append(c.turns, core.Turn{Role: core.RoleAssistant, Text: text})

	for i := len(c.turns) - 2; i >= 0; i-- {
		if c.turns[i].Role != core.RoleUser {
			continue
		}
		if c.turns[i].Text != "" {
			c.pairs = append(c.pairs, core.Pair{Question: c.turns[i].Text, Answer: text})
		}
		return
	}
}

// RecordConversation appends the question and its answer as one step.
func (c *Conversation) RecordConversation(question, answer string) {
	c.mu.Lock()
	c.addUser(question)
	c.addAssistant(answer)
	n := len(c.pairs)
	c.mu.Unlock()
	log.Printf("[MEMORY] Recorded exchange #%d: %q", n, truncateLog(question, 50))
}

// RecentContext renders the last n pairs as numbered Q/A blocks.
// Answers are cut to a short preview.
func (c *Conversation) RecentContext(n int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.pairs) == 0 || n <= 0 {
		return ""
	}
	recent := c.pairs
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	var parts []string
	for i, p := range recent {
		parts = append(parts,
			fmt.Sprintf("Turn %d:", i+1),
			"Q: "+p.Question,
			"A: "+preview(p.Answer, contextAnswerPreview),
			"",
		)
	}
	return strings.Join(parts, "\n")
}

// Summary describes the conversation in one line.
func (c *Conversation) Summary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.pairs) == 0 {
		return NoHistoryYet
	}
	return fmt.Sprintf("Conversation has %d turns. Last question: %s", len(c.pairs), c.pairs[len(c.pairs)-1].Question)
}

// SearchHistory finds pairs whose question or answer contains keyword,
// ignoring case, and renders the most recent few.
func (c *Conversation) SearchHistory(keyword string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.pairs) == 0 {
		return NoHistoryToSearch
	}

	needle := strings.ToLower(keyword)
	var matches []core.Pair
	for _, p := range c.pairs {
		if strings.Contains(strings.ToLower(p.Question), needle) ||
			strings.Contains(strings.ToLower(p.Answer), needle) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return "No relevant history found for: " + keyword
	}
	if len(matches) > searchMaxResults {
		matches = matches[len(matches)-searchMaxResults:]
	}

	parts := []string{"Found relevant conversation history:"}
	for _, p := range matches {
		parts = append(parts, "\nQ: "+p.Question, "A: "+preview(p.Answer, searchAnswerPreview))
	}
	return strings.Join(parts, "\n")
}

// Turns returns a copy of the turn log.
func (c *Conversation) Turns() []core.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Turn(nil), c.turns...)
}

// Pairs returns a copy of the question/answer pairs.
func (c *Conversation) Pairs() []core.Pair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Pair(nil), c.pairs...)
}

// Len returns the number of pairs.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pairs)
}

// Clear drops turns and pairs together.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.pairs = nil
	log.Printf("[MEMORY] Cleared conversation")
}
