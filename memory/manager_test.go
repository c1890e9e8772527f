package memory_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/becomeliminal/nim-rag/memory"
)

func TestConversation_PairsAssistantWithNearestUser(t *testing.T) {
	c := memory.NewConversation()

	c.AddUser("What is chromem?")
	c.AddAssistant("An embedded vector database.")

	pairs := c.Pairs()
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Question != "What is chromem?" || pairs[0].Answer != "An embedded vector database." {
		t.Errorf("Unexpected pair: %+v", pairs[0])
	}
	if got := len(c.Turns()); got != 2 {
		t.Errorf("Expected 2 turns, got %d", got)
	}
}

func TestConversation_ConsecutiveUserTurnsPairOnlyNearest(t *testing.T) {
	c := memory.NewConversation()

	c.AddUser("first")
	c.AddUser("second")
	c.AddAssistant("answer")

	pairs := c.Pairs()
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Question != "second" {
		t.Errorf("Expected nearest user turn to be paired, got %q", pairs[0].Question)
	}
}

func TestConversation_AssistantWithoutUserProducesNoPair(t *testing.T) {
	c := memory.NewConversation()

	c.AddAssistant("hello")

	if c.Len() != 0 {
		t.Fatalf("Expected no pairs, got %d", c.Len())
	}
	if len(c.Turns()) != 1 {
		t.Fatalf("Expected the assistant turn to be logged")
	}
}

func TestConversation_PairsNeverExceedAssistantTurns(t *testing.T) {
	c := memory.NewConversation()

	c.AddUser("q1")
	c.AddAssistant("a1")
	c.AddAssistant("a1 again")
	c.AddUser("q2")

	assistant := 0
	for _, turn := range c.Turns() {
		if turn.Role == "assistant" {
			assistant++
		}
	}
	if c.Len() > assistant {
		t.Fatalf("pairs (%d) exceed assistant turns (%d)", c.Len(), assistant)
	}
}

func TestConversation_RecentContext(t *testing.T) {
	c := memory.NewConversation()

	if got := c.RecentContext(2); got != "" {
		t.Fatalf("Expected empty context, got %q", got)
	}

	c.RecordConversation("q1", "a1")
	c.RecordConversation("q2", strings.Repeat("x", 300))
	c.RecordConversation("q3", "a3")

	got := c.RecentContext(2)
	if strings.Contains(got, "q1") {
		t.Errorf("Expected only the last 2 pairs, got %q", got)
	}
	if !strings.HasPrefix(got, "Turn 1:\nQ: q2\nA: ") {
		t.Errorf("Unexpected context layout: %q", got)
	}
	if !strings.Contains(got, "A: "+strings.Repeat("x", 200)+"...\n") {
		t.Errorf("Expected answer preview of 200 chars, got %q", got)
	}
	if !strings.Contains(got, "Turn 2:\nQ: q3\nA: a3...") {
		t.Errorf("Expected second turn, got %q", got)
	}
}

func TestConversation_Summary(t *testing.T) {
	c := memory.NewConversation()

	if got := c.Summary(); got != memory.NoHistoryYet {
		t.Fatalf("Expected %q, got %q", memory.NoHistoryYet, got)
	}

	c.RecordConversation("What is the refund policy?", "30 days.")
	c.RecordConversation("Who approves refunds?", "The finance team.")

	want := "Conversation has 2 turns. Last question: Who approves refunds?"
	if got := c.Summary(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestConversation_SearchHistory(t *testing.T) {
	c := memory.NewConversation()

	if got := c.SearchHistory("anything"); got != memory.NoHistoryToSearch {
		t.Fatalf("Expected %q, got %q", memory.NoHistoryToSearch, got)
	}

	c.RecordConversation("What is the REFUND policy?", "Refunds within 30 days.")
	c.RecordConversation("What about shipping?", "Free over $50.")

	got := c.SearchHistory("refund")
	if !strings.HasPrefix(got, "Found relevant conversation history:\n") {
		t.Fatalf("Unexpected search output: %q", got)
	}
	if !strings.Contains(got, "Q: What is the REFUND policy?") {
		t.Errorf("Expected case-insensitive match, got %q", got)
	}
	if strings.Contains(got, "shipping") {
		t.Errorf("Did not expect unrelated pair, got %q", got)
	}

	if got := c.SearchHistory("warranty"); got != "No relevant history found for: warranty" {
		t.Errorf("Unexpected miss output: %q", got)
	}
}

func TestConversation_SearchHistoryKeepsLastThree(t *testing.T) {
	c := memory.NewConversation()
	for _, q := range []string{"topic one", "topic two", "topic three", "topic four"} {
		c.RecordConversation(q, "answer about "+q)
	}

	got := c.SearchHistory("topic")
	if strings.Contains(got, "Q: topic one") {
		t.Errorf("Expected oldest match to be dropped, got %q", got)
	}
	if strings.Count(got, "\nQ: ") != 3 {
		t.Errorf("Expected 3 matches, got %q", got)
	}
}

func TestConversation_Clear(t *testing.T) {
	c := memory.NewConversation()
	c.RecordConversation("q", "a")

	c.Clear()

	if c.Len() != 0 || len(c.Turns()) != 0 {
		t.Fatalf("Expected empty log after Clear")
	}
	if got := c.Summary(); got != memory.NoHistoryYet {
		t.Errorf("Expected %q, got %q", memory.NoHistoryYet, got)
	}
}

func TestConversation_ConcurrentReaders(t *testing.T) {
	c := memory.NewConversation()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.RecordConversation("q", "a")
		}()
		go func() {
			defer wg.Done()
			_ = c.SearchHistory("q")
			_ = c.RecentContext(2)
		}()
	}
	wg.Wait()

	if c.Len() != 8 {
		t.Errorf("Expected 8 pairs, got %d", c.Len())
	}
}
