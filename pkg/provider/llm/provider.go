// Package llm defines the Provider interface for language model backends.
//
// A provider wraps a remote or local chat-completion API (a hosted OpenAI
// endpoint, or a local Ollama instance serving the "large" and "small" call
// models) and exposes a uniform interface for the conversation core and the
// date reasoner. Both components submit a full ordered history on every call;
// providers hold no conversational state of their own.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is a single entry in a chat history submitted to a provider.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Well-known role values.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is the abstraction over any chat-completion backend.
//
// Complete sends the full message history and waits for the model's reply.
// The returned string may be empty if the model produced no content; callers
// decide whether an empty reply is an error. Implementations must return an
// error when ctx is cancelled or its deadline expires before a reply arrives.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
