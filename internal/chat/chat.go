// Package chat maintains an ordered message history on top of an
// llm.Provider and enforces the system-prompt invariant: the first message
// submitted on every inference is the component's own system prompt, exactly
// once. Pruning or contamination of the history is repaired before the next
// model call, never after.
//
// Each Chat owns its history exclusively. The conversation core and the date
// reasoner hold separate Chat instances and must never share one.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/helpathands/shiftline/pkg/provider/llm"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 30 * time.Second

// ErrEmptyReply is returned when the model produced no content. Callers
// treat it like any other transport failure.
var ErrEmptyReply = errors.New("chat: model returned an empty reply")

// Option is a functional option for configuring a Chat.
type Option func(*Chat)

// WithTimeout sets the per-call deadline. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Chat) {
		c.timeout = d
	}
}

// Chat is a stateful dialogue with one model. It is safe for concurrent
// use, though sessions serialize calls per utterance anyway.
type Chat struct {
	mu       sync.Mutex
	provider llm.Provider
	system   string
	history  []llm.Message
	timeout  time.Duration
}

// New creates a Chat seeded with the given system prompt.
func New(provider llm.Provider, systemPrompt string, opts ...Option) *Chat {
	c := &Chat{
		provider: provider,
		system:   systemPrompt,
		history:  []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}},
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ask appends text as a user message, submits the full history, and appends
// the assistant's reply. On any failure the user message is rolled back so
// a retried Ask submits a clean history.
func (c *Chat) Ask(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureSystemLocked()
	c.history = append(c.history, llm.Message{Role: llm.RoleUser, Content: text})

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.provider.Complete(callCtx, c.snapshotLocked())
	if err != nil {
		c.history = c.history[:len(c.history)-1]
		return "", fmt.Errorf("chat: complete: %w", err)
	}
	if reply == "" {
		c.history = c.history[:len(c.history)-1]
		return "", ErrEmptyReply
	}

	c.history = append(c.history, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// ClearHistory drops all messages. With keepSystem the system prompt is
// retained as the sole remaining message.
func (c *Chat) ClearHistory(keepSystem bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if keepSystem {
		c.history = []llm.Message{{Role: llm.RoleSystem, Content: c.system}}
		return
	}
	c.history = nil
}

// History returns a copy of the current message history.
func (c *Chat) History() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetHistory replaces the history wholesale. Intended for tests that need
// to simulate external pruning.
func (c *Chat) SetHistory(messages []llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = make([]llm.Message, len(messages))
	copy(c.history, messages)
}

// ensureSystemLocked repairs the system-prompt invariant: the first message
// must be this Chat's system prompt and no other system message may exist.
func (c *Chat) ensureSystemLocked() {
	filtered := c.history[:0]
	for _, m := range c.history {
		if m.Role == llm.RoleSystem {
			continue
		}
		filtered = append(filtered, m)
	}
	c.history = append([]llm.Message{{Role: llm.RoleSystem, Content: c.system}}, filtered...)
}

func (c *Chat) snapshotLocked() []llm.Message {
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}
