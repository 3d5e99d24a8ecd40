// Package app owns the lifetime of voice-call sessions. A [Session] ties one
// phone call's transcriber, conversation core, and speech synthesizer
// together and runs the listen/think/speak loop until the caller hangs up or
// the assistant ends the call. The [Manager] keeps the registry of live
// sessions for the telephony webhooks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/helpathands/shiftline/internal/convo"
	"github.com/helpathands/shiftline/internal/observe"
	"github.com/helpathands/shiftline/pkg/provider/stt"
	"github.com/helpathands/shiftline/pkg/provider/tts"
)

// SessionConfig carries the per-call components a Session needs. All fields
// except Logger and Metrics are required.
type SessionConfig struct {
	// CallID is the telephony platform's identifier for this call.
	CallID string

	// CallerPhone is the caller's number as reported by the platform. May
	// be empty when the caller withholds their number.
	CallerPhone string

	// Transcriber delivers caller utterances. The session takes ownership
	// and closes it on teardown.
	Transcriber stt.Transcriber

	// Synth renders assistant replies to audio. The session takes
	// ownership and closes it on teardown.
	Synth tts.Synthesizer

	// Core drives the conversation.
	Core *convo.Core

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional; when nil no instruments are recorded.
	Metrics *observe.Metrics
}

// Session is one live phone call. Create it with [NewSession]; the Manager
// starts and supervises it.
type Session struct {
	callID      string
	callerPhone string
	startedAt   time.Time

	transcriber stt.Transcriber
	synth       tts.Synthesizer
	core        *convo.Core
	log         *slog.Logger
	metrics     *observe.Metrics

	ctx      context.Context
	cancel   context.CancelFunc
	finished chan struct{}
	teardown sync.Once
}

// NewSession validates cfg and builds a Session. The session does nothing
// until the Manager starts it.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.CallID == "" {
		return nil, errors.New("app: CallID must not be empty")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("app: Transcriber must not be nil")
	}
	if cfg.Synth == nil {
		return nil, errors.New("app: Synth must not be nil")
	}
	if cfg.Core == nil {
		return nil, errors.New("app: Core must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The platform may reuse call IDs across restarts; the session ID
	// keeps log streams distinguishable either way.
	return &Session{
		callID:      cfg.CallID,
		callerPhone: cfg.CallerPhone,
		transcriber: cfg.Transcriber,
		synth:       cfg.Synth,
		core:        cfg.Core,
		log:         cfg.Logger.With("call_id", cfg.CallID, "session_id", uuid.NewString()),
		metrics:     cfg.Metrics,
		finished:    make(chan struct{}),
	}, nil
}

// CallID returns the telephony identifier of this session.
func (s *Session) CallID() string { return s.callID }

// StartedAt returns when the session started listening.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Finished is closed once the session has fully torn down.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// start connects the transcriber. The session lives on its own context so it
// survives the webhook request that created it; ctx only contributes values
// such as the active trace.
func (s *Session) start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.startedAt = time.Now()

	if err := s.transcriber.Start(s.ctx, s.onUtterance); err != nil {
		s.cancel()
		return fmt.Errorf("app: start transcriber for call %s: %w", s.callID, err)
	}
	return nil
}

// run greets the caller and then blocks until the transcriber terminates or
// the session is stopped. Utterances arrive through onUtterance on the
// transcriber's delivery goroutine.
func (s *Session) run() {
	defer close(s.finished)
	defer s.release()

	s.speak(s.ctx, convo.Greeting)

	select {
	case err := <-s.transcriber.Done():
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("transcription stream failed", "error", err)
		}
	case <-s.ctx.Done():
	}
}

// onUtterance handles one caller phrase. Listening pauses while the
// assistant thinks and speaks so the reply's own audio is never transcribed.
func (s *Session) onUtterance(u stt.Utterance) {
	if s.ctx.Err() != nil {
		return
	}
	s.transcriber.Pause()

	s.log.Info("utterance received", "text", u.Text, "confidence", u.Confidence)
	if s.metrics != nil {
		s.metrics.Utterances.Add(s.ctx, 1)
		if u.Duration > 0 {
			s.metrics.STTDuration.Record(s.ctx, u.Duration.Seconds())
		}
	}

	start := time.Now()
	turn, err := s.core.Process(s.ctx, u.Text)
	if s.metrics != nil {
		s.metrics.TurnDuration.Record(s.ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.log.Error("turn failed", "error", err)
		if s.metrics != nil {
			s.metrics.TurnErrors.Add(s.ctx, 1)
		}
		s.core.Reset()
		s.speak(s.ctx, convo.Apology)
		s.transcriber.Resume()
		return
	}

	if turn.Reply != "" {
		s.speak(s.ctx, turn.Reply)
	}
	if turn.EndCall {
		s.log.Info("assistant ended the call")
		s.stop()
		return
	}
	s.transcriber.Resume()
}

// speak renders text through the synthesizer and blocks until playback
// completes. Synthesis failures degrade the call but never abort it.
func (s *Session) speak(ctx context.Context, text string) {
	start := time.Now()
	err := s.synth.Speak(ctx, text)
	if s.metrics != nil {
		s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.StatusAttr(err)))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("speech synthesis failed", "error", err)
	}
}

// stop asks the run loop to wind down.
func (s *Session) stop() {
	s.cancel()
}

// release closes the audio providers exactly once, transcriber first so no
// further utterances arrive while the synthesizer goes away.
func (s *Session) release() {
	s.teardown.Do(func() {
		s.cancel()
		if err := s.transcriber.Close(); err != nil {
			s.log.Warn("closing transcriber", "error", err)
		}
		if err := s.synth.Close(); err != nil {
			s.log.Warn("closing synthesizer", "error", err)
		}
		s.log.Info("session released", "duration", time.Since(s.startedAt))
	})
}
