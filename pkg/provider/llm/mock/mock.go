// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to script model replies and to inspect the
// message histories the conversation core and date reasoner submitted,
// without a live model backend.
//
// Example:
//
//	p := &mock.Provider{Replies: []string{"<GETSHIFTS>tomorrow"}}
//	reply, err := p.Complete(ctx, messages)
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/helpathands/shiftline/pkg/provider/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Messages is a copy of the history passed to Complete.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider.
//
// Replies are returned in order, one per Complete call; once exhausted,
// Complete returns an error unless RepeatLast is set, in which case the final
// reply is returned for every subsequent call. Set Err to fail every call
// instead. All methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Replies is the scripted sequence of model replies.
	Replies []string

	// RepeatLast keeps returning the last reply after Replies is exhausted.
	RepeatLast bool

	// Err, if non-nil, is returned from every Complete call.
	Err error

	// Calls records every invocation of Complete in order.
	Calls []Call

	next int
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.Calls = append(p.Calls, Call{Ctx: ctx, Messages: msgs})

	if p.Err != nil {
		return "", p.Err
	}
	if p.next >= len(p.Replies) {
		if p.RepeatLast && len(p.Replies) > 0 {
			return p.Replies[len(p.Replies)-1], nil
		}
		return "", fmt.Errorf("mock: no reply scripted for call %d", p.next+1)
	}
	reply := p.Replies[p.next]
	p.next++
	return reply, nil
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastMessages returns the history submitted on the most recent call, or nil.
func (p *Provider) LastMessages() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return nil
	}
	return p.Calls[len(p.Calls)-1].Messages
}
