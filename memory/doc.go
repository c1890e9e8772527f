// Package memory keeps the conversation log of a single chat session.
//
// The log is append-only. Every assistant turn is paired with the nearest
// preceding user turn. When several user turns arrive back to back, only the
// last of them is paired; the earlier ones stay in Turns but never appear in
// a pair. The question/answer pairs back three views:
//   - RecentContext: the last few pairs, prepended to the next question
//   - Summary: a one-line description of the session
//   - SearchHistory: case-insensitive keyword recall, exposed as a tool
//
// The reasoning loop writes to memory exactly once per answered question,
// after the answer is final. Failed questions leave no trace.
package memory
