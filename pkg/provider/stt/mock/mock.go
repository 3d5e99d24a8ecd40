// Package mock provides a test double for the stt.Transcriber interface.
//
// Use Transcriber to drive the session loop from a test: Emit injects
// utterances as if the caller had spoken them, and the Paused state records
// whether delivery is currently suppressed.
//
// Example:
//
//	tr := mock.NewTranscriber()
//	_ = tr.Start(ctx, handler)
//	tr.Emit(stt.Utterance{Text: "what shifts do I have tomorrow"})
package mock

import (
	"context"
	"sync"

	"github.com/helpathands/shiftline/pkg/provider/stt"
)

// Transcriber is a mock implementation of stt.Transcriber.
//
// Emit delivers an utterance synchronously to the handler registered via
// Start, honoring the paused state: utterances emitted while paused are
// dropped and counted in DroppedCount. All methods are safe for
// concurrent use.
type Transcriber struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// CloseErr, if non-nil, is returned from Close.
	CloseErr error

	handler func(stt.Utterance)
	paused  bool
	started bool
	closed  bool
	dropped int

	done chan error
}

// NewTranscriber returns a ready-to-use mock Transcriber.
func NewTranscriber() *Transcriber {
	return &Transcriber{done: make(chan error, 1)}
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Start records the handler and returns StartErr.
func (t *Transcriber) Start(_ context.Context, onUtterance func(stt.Utterance)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.StartErr != nil {
		return t.StartErr
	}
	t.handler = onUtterance
	t.started = true
	return nil
}

// Done implements stt.Transcriber.
func (t *Transcriber) Done() <-chan error { return t.done }

// Pause implements stt.Transcriber.
func (t *Transcriber) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

// Resume implements stt.Transcriber.
func (t *Transcriber) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

// Close marks the transcriber closed and completes Done.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.done <- nil
		close(t.done)
	}
	return t.CloseErr
}

// Emit delivers u to the registered handler, synchronously, unless delivery
// is paused or the transcriber is closed. It returns true when the handler
// was invoked.
func (t *Transcriber) Emit(u stt.Utterance) bool {
	t.mu.Lock()
	handler := t.handler
	deliver := t.started && !t.closed && !t.paused && handler != nil
	if !deliver && t.started && !t.closed {
		t.dropped++
	}
	t.mu.Unlock()

	if deliver {
		handler(u)
	}
	return deliver
}

// Fail completes Done with err, simulating a stream failure.
func (t *Transcriber) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.done <- err
		close(t.done)
	}
}

// Paused reports whether delivery is currently suppressed.
func (t *Transcriber) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// DroppedCount returns how many utterances were dropped while paused.
func (t *Transcriber) DroppedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}
