// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A Transcriber wraps a real-time transcription service for one call leg and
// emits utterance events: each event is one completed phrase, delimited by a
// silence timeout or a hard duration cap. Pause and Resume suppress delivery
// without stopping capture; they are the serialization mechanism the session
// uses to guarantee that one utterance is fully processed before the next is
// dispatched.
//
// Events are delivered on a single goroutine per Transcriber, so the handler
// never observes concurrent utterances for one call.
package stt

import (
	"context"
	"time"
)

// Default phrase segmentation parameters.
const (
	// DefaultSilenceTimeout is the gap of silence that completes a phrase.
	DefaultSilenceTimeout = 5 * time.Second

	// DefaultMaxPhrase is the hard cap on a single phrase's duration; a
	// phrase still being spoken at the cap is flushed as complete.
	DefaultMaxPhrase = 15 * time.Second
)

// Utterance is one completed phrase produced by a Transcriber.
type Utterance struct {
	// Text is the transcribed phrase, trimmed.
	Text string

	// Confidence is the overall confidence score (0.0–1.0); zero when the
	// backend does not report one.
	Confidence float64

	// Start marks when the phrase began, relative to stream start.
	Start time.Duration

	// Duration is the length of the phrase.
	Duration time.Duration
}

// Config describes phrase segmentation for a new transcription stream.
// Zero values select the package defaults.
type Config struct {
	// SilenceTimeout is the silence gap that completes a phrase.
	SilenceTimeout time.Duration

	// MaxPhrase is the hard duration cap per phrase.
	MaxPhrase time.Duration

	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// Empty lets the backend auto-detect, if supported.
	Language string
}

// Transcriber is the abstraction over any streaming STT backend.
//
// Start begins producing utterance events and returns once the stream is
// established; events are then delivered to onUtterance from a single
// internal goroutine until ctx is cancelled or Close is called. Done is
// closed when the stream ends and yields the terminal error, if any; a
// receive on Done after closure returns nil for a clean shutdown.
//
// Pause and Resume are idempotent. While paused, utterance delivery is
// suppressed; implementations may keep capturing and discard or buffer
// audio as they see fit.
//
// Close terminates the stream and releases resources. It is safe to call
// more than once.
type Transcriber interface {
	Start(ctx context.Context, onUtterance func(Utterance)) error
	Done() <-chan error
	Pause()
	Resume()
	Close() error
}
