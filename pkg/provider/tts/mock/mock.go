// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer in unit tests to capture what the assistant said without
// synthesizing or playing any audio.
package mock

import (
	"context"
	"sync"

	"github.com/helpathands/shiftline/pkg/provider/tts"
)

// Synthesizer is a mock implementation of tts.Synthesizer.
//
// Every Speak call records its text in Spoken. Set Err to make Speak fail.
// All methods are safe for concurrent use.
type Synthesizer struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Speak call.
	Err error

	// Spoken records the text of every Speak call in order.
	Spoken []string

	closed bool
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Speak records text and returns Err.
func (s *Synthesizer) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spoken = append(s.Spoken, text)
	return s.Err
}

// Close marks the synthesizer closed.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Synthesizer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SpokenTexts returns a copy of everything spoken so far.
func (s *Synthesizer) SpokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	copy(out, s.Spoken)
	return out
}
