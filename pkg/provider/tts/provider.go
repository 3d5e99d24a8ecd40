// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A Synthesizer converts assistant text into audible speech on the call's
// output device. Speak is synchronous: it returns once playback has finished
// (or failed), which lets the session hold the transcriber paused for exactly
// as long as the assistant is talking.
package tts

import "context"

// Synthesizer is the abstraction over any TTS backend plus its playback path.
//
// Speak synthesizes text and plays it to completion. Implementations must
// honor ctx cancellation by aborting synthesis and playback. Close releases
// any held resources and is safe to call more than once.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	Close() error
}
