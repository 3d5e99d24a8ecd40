package resilience

import (
	"context"

	"github.com/helpathands/shiftline/pkg/provider/llm"
)

// GuardedProvider implements [llm.Provider] behind a circuit breaker. While
// the breaker is open, Complete fails immediately with [ErrCircuitOpen]; the
// conversation layer turns that into a spoken apology instead of dead air.
type GuardedProvider struct {
	inner   llm.Provider
	breaker *CircuitBreaker
}

var _ llm.Provider = (*GuardedProvider)(nil)

// GuardLLM wraps provider in a breaker named name with default tuning.
func GuardLLM(name string, provider llm.Provider) *GuardedProvider {
	return GuardLLMWith(provider, Config{Name: name})
}

// GuardLLMWith wraps provider in a breaker built from cfg.
func GuardLLMWith(provider llm.Provider, cfg Config) *GuardedProvider {
	return &GuardedProvider{
		inner:   provider,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Complete implements llm.Provider.
func (g *GuardedProvider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	var reply string
	err := g.breaker.Execute(func() error {
		var err error
		reply, err = g.inner.Complete(ctx, messages)
		return err
	})
	return reply, err
}

// Breaker exposes the underlying breaker, mainly for health reporting.
func (g *GuardedProvider) Breaker() *CircuitBreaker {
	return g.breaker
}
