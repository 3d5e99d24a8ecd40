package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/helpathands/shiftline/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLLM] when no
// factory exists under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMFactory builds a chat-completion provider for one model. The registry
// calls it twice per boot, once for the large conversation model and once
// for the small date-reasoning model.
type LLMFactory func(cfg LLMConfig, model string) (llm.Provider, error)

// Registry maps LLM provider names to their factories. Safe for concurrent
// use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]LLMFactory
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{llm: make(map[string]LLMFactory)}
}

// RegisterLLM registers factory under name, overwriting any previous
// registration.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// LLMNames returns the registered provider names, for error messages.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for name := range r.llm {
		names = append(names, name)
	}
	return names
}

// CreateLLM builds a provider for model using the factory registered under
// cfg.Provider.
func (r *Registry) CreateLLM(cfg LLMConfig, model string) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm %q (registered: %v)", ErrProviderNotRegistered, cfg.Provider, r.LLMNames())
	}
	return factory(cfg, model)
}
