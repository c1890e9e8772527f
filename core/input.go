package core

// BaseInput provides common fields for all tool inputs.
// Tools embed this struct so the model's stated reason for a call ends up in the trace.
type BaseInput struct {
	// Thought contains the model's reasoning about why it is calling the tool.
	// Always optional: every tool in this module is read-only.
	Thought string `json:"thought,omitempty"`
}

// QueryInput is the input of tools that take a single free-text query.
type QueryInput struct {
	BaseInput
	Query string `json:"query"`
}

// TextInput is the input of tools that operate on a block of text.
type TextInput struct {
	BaseInput
	Text string `json:"text"`
}
