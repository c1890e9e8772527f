package memory

import (
	"github.com/becomeliminal/nim-rag/core"
)

// Manager is what the reasoning loop needs from conversation memory.
//
// The loop is opinionated about WHEN memory is used: context is read before
// the first model call and the exchange is recorded once the answer is final.
// Implementations decide how much context to render and how to store it.
type Manager interface {
	// RecentContext renders the last n exchanges for prompt injection.
	// It returns "" when there is nothing to show.
	RecentContext(n int) string

	// RecordConversation stores a question and the answer produced for it.
	RecordConversation(question, answer string)
}

// Store is the read side of the conversation log used by tools and transports.
type Store interface {
	Manager

	Turns() []core.Turn
	Pairs() []core.Pair
	Summary() string
	SearchHistory(keyword string) string
	Clear()
}

// Sentinel texts returned when the log has nothing to offer.
const (
	NoHistoryYet      = "No conversation history yet."
	NoHistoryToSearch = "No conversation history to search."
)

var _ Store = (*Conversation)(nil)
