package engine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-rag/core"
)

// NoAnswer is returned when the model never produced any text.
const NoAnswer = "I couldn't generate an answer."

// Session is the transcript and trace of one question.
// It is owned by a single Run call and is not safe for concurrent use.
type Session struct {
	ID        string
	TurnCount int
	Traces    []*core.Trace

	messages []core.Message
}

// NewSession creates an empty session with a fresh ID.
func NewSession() *Session {
	return &Session{ID: uuid.New().String()}
}

// AddUserMessage appends a user message.
func (s *Session) AddUserMessage(text string) {
	s.messages = append(s.messages, core.Message{Role: core.RoleUser, Text: text})
}

// AddAssistantMessage appends a model message, including its tool calls.
func (s *Session) AddAssistantMessage(msg core.Message) {
	msg.Role = core.RoleAssistant
	s.messages = append(s.messages, msg)
}

// AddToolResults appends one tool message per observation, in call order.
func (s *Session) AddToolResults(results []core.Message) {
	for _, r := range results {
		r.Role = core.RoleTool
		s.messages = append(s.messages, r)
	}
}

// AddTrace records a completed tool step.
func (s *Session) AddTrace(t *core.Trace) {
	s.Traces = append(s.Traces, t)
}

// IncrementTurnCount marks the start of a model call.
func (s *Session) IncrementTurnCount() {
	s.TurnCount++
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []core.Message {
	return append([]core.Message(nil), s.messages...)
}

// FinalAnswer returns the text of the last assistant message with content,
// searching backward, or NoAnswer.
func (s *Session) FinalAnswer() string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Role == core.RoleAssistant && strings.TrimSpace(m.Text) != "" {
			return m.Text
		}
	}
	return NoAnswer
}
